package order

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mrbekdev/OPPBackend/model"
	orderrepo "github.com/mrbekdev/OPPBackend/repository/order"
	"github.com/mrbekdev/OPPBackend/service/billing"
)

// ----- store mocks -----

type clientStoreMock struct {
	byPhoneFn      func(ctx context.Context, phone string) (*model.Client, error)
	byIDTxFn       func(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error)
	byPhoneTxFn    func(ctx context.Context, tx *sql.Tx, phone string) (*model.Client, error)
	createTxFn     func(ctx context.Context, tx *sql.Tx, c *model.Client) error
	updateNameTxFn func(ctx context.Context, tx *sql.Tx, id int64, firstName, lastName string) error
}

func (m *clientStoreMock) ByPhone(ctx context.Context, phone string) (*model.Client, error) {
	return m.byPhoneFn(ctx, phone)
}
func (m *clientStoreMock) ByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error) {
	return m.byIDTxFn(ctx, tx, id)
}
func (m *clientStoreMock) ByPhoneTx(ctx context.Context, tx *sql.Tx, phone string) (*model.Client, error) {
	return m.byPhoneTxFn(ctx, tx, phone)
}
func (m *clientStoreMock) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Client) error {
	return m.createTxFn(ctx, tx, c)
}
func (m *clientStoreMock) UpdateNameTx(ctx context.Context, tx *sql.Tx, id int64, firstName, lastName string) error {
	return m.updateNameTxFn(ctx, tx, id, firstName, lastName)
}

type productStoreMock struct {
	byIDForUpdateFn  func(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error)
	decrementCountFn func(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error)
	incrementCountFn func(ctx context.Context, tx *sql.Tx, id, qty int64) error
}

func (m *productStoreMock) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error) {
	return m.byIDForUpdateFn(ctx, tx, id)
}
func (m *productStoreMock) DecrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error) {
	return m.decrementCountFn(ctx, tx, id, qty)
}
func (m *productStoreMock) IncrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) error {
	return m.incrementCountFn(ctx, tx, id, qty)
}

type orderStoreMock struct {
	getFn                func(ctx context.Context, id int64) (*model.OrderDetail, error)
	listFn               func(ctx context.Context) ([]model.OrderDetail, error)
	listByClientFn       func(ctx context.Context, clientID int64) ([]model.OrderDetail, error)
	listReturnRecordsFn  func(ctx context.Context, orderID int64) ([]model.ReturnRecord, error)
	updateStatusFn       func(ctx context.Context, id int64, status model.OrderStatus) error
	insertOrderFn        func(ctx context.Context, tx *sql.Tx, o *model.Order) error
	insertItemFn         func(ctx context.Context, tx *sql.Tx, it *model.OrderItem) error
	getForUpdateFn       func(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error)
	itemsForUpdateFn     func(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.OrderItem, error)
	addReturnedFn        func(ctx context.Context, tx *sql.Tx, itemID, qty int64) (bool, error)
	insertReturnRecordFn func(ctx context.Context, tx *sql.Tx, rec *model.ReturnRecord) error
	itemTotalsFn         func(ctx context.Context, tx *sql.Tx, orderID int64) (int64, int64, error)
	sumReturnAmountsFn   func(ctx context.Context, tx *sql.Tx, orderID int64) (int64, error)
	updateTotalsFn       func(ctx context.Context, tx *sql.Tx, u orderrepo.TotalsUpdate) error
	updateStartAtFn      func(ctx context.Context, tx *sql.Tx, id int64, startAt time.Time) error
	deleteFn             func(ctx context.Context, tx *sql.Tx, id int64) error
}

func (m *orderStoreMock) Get(ctx context.Context, id int64) (*model.OrderDetail, error) {
	return m.getFn(ctx, id)
}
func (m *orderStoreMock) List(ctx context.Context) ([]model.OrderDetail, error) {
	return m.listFn(ctx)
}
func (m *orderStoreMock) ListByClient(ctx context.Context, clientID int64) ([]model.OrderDetail, error) {
	return m.listByClientFn(ctx, clientID)
}
func (m *orderStoreMock) ListReturnRecords(ctx context.Context, orderID int64) ([]model.ReturnRecord, error) {
	return m.listReturnRecordsFn(ctx, orderID)
}
func (m *orderStoreMock) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	return m.updateStatusFn(ctx, id, status)
}
func (m *orderStoreMock) InsertOrder(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	return m.insertOrderFn(ctx, tx, o)
}
func (m *orderStoreMock) InsertItem(ctx context.Context, tx *sql.Tx, it *model.OrderItem) error {
	return m.insertItemFn(ctx, tx, it)
}
func (m *orderStoreMock) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
	return m.getForUpdateFn(ctx, tx, id)
}
func (m *orderStoreMock) ItemsForUpdate(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.OrderItem, error) {
	return m.itemsForUpdateFn(ctx, tx, orderID)
}
func (m *orderStoreMock) AddReturned(ctx context.Context, tx *sql.Tx, itemID, qty int64) (bool, error) {
	return m.addReturnedFn(ctx, tx, itemID, qty)
}
func (m *orderStoreMock) InsertReturnRecord(ctx context.Context, tx *sql.Tx, rec *model.ReturnRecord) error {
	return m.insertReturnRecordFn(ctx, tx, rec)
}
func (m *orderStoreMock) ItemTotals(ctx context.Context, tx *sql.Tx, orderID int64) (int64, int64, error) {
	return m.itemTotalsFn(ctx, tx, orderID)
}
func (m *orderStoreMock) SumReturnAmounts(ctx context.Context, tx *sql.Tx, orderID int64) (int64, error) {
	return m.sumReturnAmountsFn(ctx, tx, orderID)
}
func (m *orderStoreMock) UpdateTotals(ctx context.Context, tx *sql.Tx, u orderrepo.TotalsUpdate) error {
	return m.updateTotalsFn(ctx, tx, u)
}
func (m *orderStoreMock) UpdateStartAt(ctx context.Context, tx *sql.Tx, id int64, startAt time.Time) error {
	return m.updateStartAtFn(ctx, tx, id, startAt)
}
func (m *orderStoreMock) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	return m.deleteFn(ctx, tx, id)
}

func newTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// ----- create -----

func TestCreate(t *testing.T) {
	start := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("reserves stock and prices the order", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		var insertedOrder *model.Order
		var insertedItems []model.OrderItem
		var decremented []int64

		os := &orderStoreMock{
			insertOrderFn: func(ctx context.Context, tx *sql.Tx, o *model.Order) error {
				o.ID = 7
				insertedOrder = o
				return nil
			},
			insertItemFn: func(ctx context.Context, tx *sql.Tx, it *model.OrderItem) error {
				insertedItems = append(insertedItems, *it)
				return nil
			},
			getFn: func(ctx context.Context, id int64) (*model.OrderDetail, error) {
				require.Equal(t, int64(7), id)
				return &model.OrderDetail{Order: model.Order{ID: 7, Status: model.OrderPending}}, nil
			},
		}
		ps := &productStoreMock{
			byIDForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error) {
				return &model.Product{ID: id, Name: "chair", Price: 10000, Count: 5}, nil
			},
			decrementCountFn: func(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error) {
				decremented = append(decremented, qty)
				return true, nil
			},
		}
		cs := &clientStoreMock{
			byIDTxFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error) {
				return &model.Client{ID: id}, nil
			},
		}

		svc := New(db, os, ps, cs, billing.PolicyLinear)
		got, err := svc.Create(context.Background(), 3, []CreateItem{{ProductID: 1, Quantity: 1}}, start, 10, 5000)
		require.NoError(t, err)
		require.Equal(t, int64(7), got.ID)

		require.Equal(t, []int64{1}, decremented)
		require.Equal(t, int64(3), insertedOrder.ClientID)
		require.Equal(t, model.OrderPending, insertedOrder.Status)
		require.Equal(t, int64(10000), insertedOrder.Subtotal)
		require.Equal(t, int64(1000), insertedOrder.Tax)
		require.Equal(t, int64(11000), insertedOrder.Total)
		require.Equal(t, int64(5000), insertedOrder.AdvancePayment)
		require.Len(t, insertedItems, 1)
		require.Equal(t, int64(7), insertedItems[0].OrderID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown client rolls back", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		cs := &clientStoreMock{
			byIDTxFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error) {
				return nil, sql.ErrNoRows
			},
		}
		svc := New(db, &orderStoreMock{}, &productStoreMock{}, cs, billing.PolicyLinear)

		_, err := svc.Create(context.Background(), 99, []CreateItem{{ProductID: 1, Quantity: 1}}, start, 10, 0)
		require.Error(t, err)
		require.Equal(t, ErrNotFound, Code(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		ps := &productStoreMock{
			byIDForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error) {
				return &model.Product{ID: id, Name: "tent", Price: 2000, Count: 1}, nil
			},
			decrementCountFn: func(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error) {
				return false, nil
			},
		}
		cs := &clientStoreMock{
			byIDTxFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error) {
				return &model.Client{ID: id}, nil
			},
		}
		svc := New(db, &orderStoreMock{}, ps, cs, billing.PolicyLinear)

		_, err := svc.Create(context.Background(), 3, []CreateItem{{ProductID: 1, Quantity: 4}}, start, 10, 0)
		require.Error(t, err)
		require.Equal(t, ErrNoStock, Code(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects bad input before opening a transaction", func(t *testing.T) {
		db, mock := newTestDB(t)
		svc := New(db, &orderStoreMock{}, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)

		_, err := svc.Create(context.Background(), 3, nil, start, 10, 0)
		require.Equal(t, ErrInvalidInput, Code(err))

		_, err = svc.Create(context.Background(), 3, []CreateItem{{ProductID: 1, Quantity: 0}}, start, 10, 0)
		require.Equal(t, ErrInvalidInput, Code(err))

		_, err = svc.Create(context.Background(), 3, []CreateItem{{ProductID: 1, Quantity: 1}}, start, 10, -1)
		require.Equal(t, ErrInvalidInput, Code(err))

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateWithCustomer(t *testing.T) {
	start := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	base := func() (*orderStoreMock, *productStoreMock) {
		os := &orderStoreMock{
			insertOrderFn: func(ctx context.Context, tx *sql.Tx, o *model.Order) error {
				o.ID = 11
				return nil
			},
			insertItemFn: func(ctx context.Context, tx *sql.Tx, it *model.OrderItem) error { return nil },
			getFn: func(ctx context.Context, id int64) (*model.OrderDetail, error) {
				return &model.OrderDetail{Order: model.Order{ID: id}}, nil
			},
		}
		ps := &productStoreMock{
			byIDForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error) {
				return &model.Product{ID: id, Price: 1000, Count: 10}, nil
			},
			decrementCountFn: func(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error) {
				return true, nil
			},
		}
		return os, ps
	}

	t.Run("creates the client on a phone miss", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		os, ps := base()
		var created *model.Client
		cs := &clientStoreMock{
			byPhoneTxFn: func(ctx context.Context, tx *sql.Tx, phone string) (*model.Client, error) {
				return nil, nil
			},
			createTxFn: func(ctx context.Context, tx *sql.Tx, c *model.Client) error {
				c.ID = 42
				created = c
				return nil
			},
		}
		svc := New(db, os, ps, cs, billing.PolicyLinear)

		got, err := svc.CreateWithCustomer(context.Background(),
			Customer{FirstName: "Ava", LastName: "Lin", Phone: "+100200300"},
			[]CreateItem{{ProductID: 1, Quantity: 2}}, start, 0, 0)
		require.NoError(t, err)
		require.Equal(t, int64(11), got.ID)
		require.NotNil(t, created)
		require.Equal(t, "+100200300", created.Phone)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refreshes the name on a phone hit", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		os, ps := base()
		renamed := false
		cs := &clientStoreMock{
			byPhoneTxFn: func(ctx context.Context, tx *sql.Tx, phone string) (*model.Client, error) {
				return &model.Client{ID: 42, FirstName: "A", LastName: "L", Phone: phone}, nil
			},
			updateNameTxFn: func(ctx context.Context, tx *sql.Tx, id int64, firstName, lastName string) error {
				renamed = true
				require.Equal(t, int64(42), id)
				require.Equal(t, "Ava", firstName)
				return nil
			},
		}
		svc := New(db, os, ps, cs, billing.PolicyLinear)

		_, err := svc.CreateWithCustomer(context.Background(),
			Customer{FirstName: "Ava", LastName: "Lin", Phone: "+100200300"},
			[]CreateItem{{ProductID: 1, Quantity: 1}}, start, 0, 0)
		require.NoError(t, err)
		require.True(t, renamed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires a phone", func(t *testing.T) {
		db, _ := newTestDB(t)
		svc := New(db, &orderStoreMock{}, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)
		_, err := svc.CreateWithCustomer(context.Background(), Customer{FirstName: "Ava"},
			[]CreateItem{{ProductID: 1, Quantity: 1}}, start, 0, 0)
		require.Equal(t, ErrInvalidInput, Code(err))
	})
}

// ----- returns -----

func returnFixture(advance, used int64, items []model.OrderItem, start time.Time) (*orderStoreMock, *productStoreMock, *[]model.ReturnRecord, *orderrepo.TotalsUpdate) {
	records := &[]model.ReturnRecord{}
	var totals orderrepo.TotalsUpdate

	os := &orderStoreMock{
		getForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
			return &model.Order{ID: id, StartAt: start, AdvancePayment: advance, AdvanceUsed: used}, nil
		},
		itemsForUpdateFn: func(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.OrderItem, error) {
			out := make([]model.OrderItem, len(items))
			copy(out, items)
			return out, nil
		},
		addReturnedFn: func(ctx context.Context, tx *sql.Tx, itemID, qty int64) (bool, error) {
			for i := range items {
				if items[i].ID == itemID {
					if items[i].Returned+qty > items[i].Quantity {
						return false, nil
					}
					items[i].Returned += qty
					return true, nil
				}
			}
			return false, nil
		},
		insertReturnRecordFn: func(ctx context.Context, tx *sql.Tx, rec *model.ReturnRecord) error {
			*records = append(*records, *rec)
			return nil
		},
		itemTotalsFn: func(ctx context.Context, tx *sql.Tx, orderID int64) (int64, int64, error) {
			var rented, returned int64
			for _, it := range items {
				rented += it.Quantity
				returned += it.Returned
			}
			return rented, returned, nil
		},
		sumReturnAmountsFn: func(ctx context.Context, tx *sql.Tx, orderID int64) (int64, error) {
			var sum int64
			for _, r := range *records {
				sum += r.Amount
			}
			return sum, nil
		},
		updateTotalsFn: func(ctx context.Context, tx *sql.Tx, u orderrepo.TotalsUpdate) error {
			totals = u
			return nil
		},
	}
	ps := &productStoreMock{
		incrementCountFn: func(ctx context.Context, tx *sql.Tx, id, qty int64) error { return nil },
	}
	return os, ps, records, &totals
}

func TestReturnItems(t *testing.T) {
	start := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("full return settles the order", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		items := []model.OrderItem{{ID: 1, OrderID: 5, ProductID: 2, Quantity: 1, ProductPrice: 10000}}
		os, ps, records, totals := returnFixture(5000, 0, items, start)
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		now := start.Add(48 * time.Hour)
		res, err := svc.ReturnItems(context.Background(), 5, []ReturnLine{{OrderItemID: 1, Quantity: 1}}, now)
		require.NoError(t, err)

		// 10000 * 1 * 2.0 gross, minus the 5000 advance.
		require.Equal(t, model.OrderReturned, res.Status)
		require.Equal(t, int64(20000), res.Total+res.AdvanceUsed)
		require.Equal(t, int64(5000), res.AdvanceUsed)
		require.Equal(t, int64(5000), res.AdvanceApplied)
		require.Equal(t, int64(15000), res.Total)
		require.Equal(t, int64(2), res.RentalDays)
		require.Equal(t, int64(0), res.RentalHours)
		require.NotNil(t, res.ReturnedAt)
		require.Equal(t, now, *res.ReturnedAt)

		require.Len(t, *records, 1)
		require.Equal(t, int64(20000), (*records)[0].Amount)
		require.Equal(t, model.OrderReturned, totals.Status)
		require.Equal(t, int64(15000), totals.Total)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial return keeps the order open", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		items := []model.OrderItem{{ID: 1, OrderID: 5, ProductID: 2, Quantity: 3, ProductPrice: 1000}}
		os, ps, _, totals := returnFixture(0, 0, items, start)
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		res, err := svc.ReturnItems(context.Background(), 5, []ReturnLine{{OrderItemID: 1, Quantity: 2}}, start.Add(24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, model.OrderPartiallyReturned, res.Status)
		require.Nil(t, res.ReturnedAt)
		require.Nil(t, totals.ReturnedAt)
		// 1000 * 2 * 1.0 at exactly one day.
		require.Equal(t, int64(2000), res.Total)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("over-return rejects the whole batch", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		items := []model.OrderItem{
			{ID: 1, OrderID: 5, ProductID: 2, Quantity: 2, Returned: 1, ProductPrice: 1000},
			{ID: 2, OrderID: 5, ProductID: 3, Quantity: 1, ProductPrice: 500},
		}
		os, ps, records, _ := returnFixture(0, 0, items, start)
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		_, err := svc.ReturnItems(context.Background(), 5, []ReturnLine{
			{OrderItemID: 2, Quantity: 1},
			{OrderItemID: 1, Quantity: 2},
		}, start.Add(time.Hour))
		require.Equal(t, ErrOverReturn, Code(err))
		require.Empty(t, *records)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("item from another order is not found", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		items := []model.OrderItem{{ID: 1, OrderID: 5, ProductID: 2, Quantity: 1, ProductPrice: 1000}}
		os, ps, _, _ := returnFixture(0, 0, items, start)
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		_, err := svc.ReturnItems(context.Background(), 5, []ReturnLine{{OrderItemID: 77, Quantity: 1}}, start.Add(time.Hour))
		require.Equal(t, ErrNotFound, Code(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("per-line multiplier override wins", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		items := []model.OrderItem{{ID: 1, OrderID: 5, ProductID: 2, Quantity: 1, ProductPrice: 1000}}
		os, ps, records, _ := returnFixture(0, 0, items, start)
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		override := 3.0
		res, err := svc.ReturnItems(context.Background(), 5,
			[]ReturnLine{{OrderItemID: 1, Quantity: 1, Multiplier: &override}}, start.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(3000), res.Items[0].Amount)
		require.Equal(t, 3.0, (*records)[0].Multiplier)
		// The order-level multiplier still reflects elapsed time.
		require.Equal(t, 1.0, res.Multiplier)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returned_at is written once", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		first := start.Add(2 * time.Hour)
		items := []model.OrderItem{{ID: 1, OrderID: 5, ProductID: 2, Quantity: 1, Returned: 0, ProductPrice: 1000}}
		os, ps, _, totals := returnFixture(0, 0, items, start)
		os.getForUpdateFn = func(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
			return &model.Order{ID: id, StartAt: start, ReturnedAt: &first}, nil
		}
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		res, err := svc.ReturnItems(context.Background(), 5, []ReturnLine{{OrderItemID: 1, Quantity: 1}}, start.Add(5*time.Hour))
		require.NoError(t, err)
		require.Equal(t, first, *res.ReturnedAt)
		require.Equal(t, first, *totals.ReturnedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("advance never exceeds the gross", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		items := []model.OrderItem{{ID: 1, OrderID: 5, ProductID: 2, Quantity: 1, ProductPrice: 1000}}
		os, ps, _, _ := returnFixture(50000, 0, items, start)
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		res, err := svc.ReturnItems(context.Background(), 5, []ReturnLine{{OrderItemID: 1, Quantity: 1}}, start.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(1000), res.AdvanceUsed)
		require.Equal(t, int64(0), res.Total)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is invalid", func(t *testing.T) {
		db, _ := newTestDB(t)
		svc := New(db, &orderStoreMock{}, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)
		_, err := svc.ReturnItems(context.Background(), 5, nil, time.Now())
		require.Equal(t, ErrInvalidInput, Code(err))
	})
}

// ----- remove -----

func TestRemove(t *testing.T) {
	t.Run("releases only outstanding units", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		released := map[int64]int64{}
		deleted := false
		os := &orderStoreMock{
			getForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
				return &model.Order{ID: id}, nil
			},
			itemsForUpdateFn: func(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.OrderItem, error) {
				return []model.OrderItem{
					{ID: 1, ProductID: 2, Quantity: 3, Returned: 1},
					{ID: 2, ProductID: 4, Quantity: 2, Returned: 2},
				}, nil
			},
			deleteFn: func(ctx context.Context, tx *sql.Tx, id int64) error {
				deleted = true
				return nil
			},
		}
		ps := &productStoreMock{
			incrementCountFn: func(ctx context.Context, tx *sql.Tx, id, qty int64) error {
				released[id] += qty
				return nil
			},
		}
		svc := New(db, os, ps, &clientStoreMock{}, billing.PolicyLinear)

		require.NoError(t, svc.Remove(context.Background(), 5))
		require.True(t, deleted)
		require.Equal(t, map[int64]int64{2: 2}, released)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		os := &orderStoreMock{
			getForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
				return nil, sql.ErrNoRows
			},
		}
		svc := New(db, os, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)
		err := svc.Remove(context.Background(), 5)
		require.Equal(t, ErrNotFound, Code(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// ----- small operations -----

func TestUpdateStatus(t *testing.T) {
	db, _ := newTestDB(t)
	called := false
	os := &orderStoreMock{
		updateStatusFn: func(ctx context.Context, id int64, status model.OrderStatus) error {
			called = true
			return nil
		},
	}
	svc := New(db, os, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)

	err := svc.UpdateStatus(context.Background(), 5, "SHIPPED")
	require.Equal(t, ErrInvalidInput, Code(err))
	require.False(t, called)

	require.NoError(t, svc.UpdateStatus(context.Background(), 5, model.OrderPartiallyReturned))
	require.True(t, called)
}

func TestAdjustStartAt(t *testing.T) {
	start := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("rejects a settled order", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		os := &orderStoreMock{
			getForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
				return &model.Order{ID: id, Status: model.OrderReturned}, nil
			},
		}
		svc := New(db, os, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)
		err := svc.AdjustStartAt(context.Background(), 5, start)
		require.Equal(t, ErrConflict, Code(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("moves the clock on an open order", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		var moved time.Time
		os := &orderStoreMock{
			getForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
				return &model.Order{ID: id, Status: model.OrderPending}, nil
			},
			updateStartAtFn: func(ctx context.Context, tx *sql.Tx, id int64, startAt time.Time) error {
				moved = startAt
				return nil
			},
		}
		svc := New(db, os, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)
		require.NoError(t, svc.AdjustStartAt(context.Background(), 5, start))
		require.Equal(t, start, moved)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckClientStanding(t *testing.T) {
	db, _ := newTestDB(t)

	t.Run("unknown phone", func(t *testing.T) {
		cs := &clientStoreMock{
			byPhoneFn: func(ctx context.Context, phone string) (*model.Client, error) { return nil, nil },
		}
		svc := New(db, &orderStoreMock{}, &productStoreMock{}, cs, billing.PolicyLinear)
		st, err := svc.CheckClientStanding(context.Background(), "+1")
		require.NoError(t, err)
		require.False(t, st.Exists)
		require.Nil(t, st.Client)
	})

	t.Run("rated client", func(t *testing.T) {
		cs := &clientStoreMock{
			byPhoneFn: func(ctx context.Context, phone string) (*model.Client, error) {
				return &model.Client{ID: 1, Phone: phone, Rating: "VIP"}, nil
			},
		}
		svc := New(db, &orderStoreMock{}, &productStoreMock{}, cs, billing.PolicyLinear)
		st, err := svc.CheckClientStanding(context.Background(), "+1")
		require.NoError(t, err)
		require.True(t, st.Exists)
		require.True(t, st.Rated)
		require.Equal(t, "VIP", st.Rating)
	})

	t.Run("empty phone", func(t *testing.T) {
		svc := New(db, &orderStoreMock{}, &productStoreMock{}, &clientStoreMock{}, billing.PolicyLinear)
		_, err := svc.CheckClientStanding(context.Background(), "")
		require.Equal(t, ErrInvalidInput, Code(err))
	})
}
