package order

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/mrbekdev/OPPBackend/app/echoServer/jwtx"
	"github.com/mrbekdev/OPPBackend/model"
	ordersvc "github.com/mrbekdev/OPPBackend/service/order"
)

type Controller struct {
	Svc ordersvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/orders
func (h *Controller) Create(c echo.Context) error {
	var req CreateOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid start_at, expected RFC3339"})
	}

	out, err := h.Svc.Create(c.Request().Context(), req.ClientID, toItems(req.Items), startAt, req.TaxPercent, req.AdvancePayment)
	if err != nil {
		return h.fail(c, "order create", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "order created", "order": out})
}

// POST /v1/orders/with-customer
func (h *Controller) CreateWithCustomer(c echo.Context) error {
	var req CreateWithCustomerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid start_at, expected RFC3339"})
	}

	cust := ordersvc.Customer{
		FirstName: req.Customer.FirstName,
		LastName:  req.Customer.LastName,
		Phone:     req.Customer.Phone,
	}
	out, err := h.Svc.CreateWithCustomer(c.Request().Context(), cust, toItems(req.Items), startAt, req.TaxPercent, req.AdvancePayment)
	if err != nil {
		return h.fail(c, "order create with customer", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "order created", "order": out})
}

// GET /v1/orders
func (h *Controller) List(c echo.Context) error {
	orders, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "order list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders, "total": len(orders)})
}

// GET /v1/orders/:id
func (h *Controller) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	out, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "order get", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": out})
}

// GET /v1/orders/client/:clientId
func (h *Controller) ByClient(c echo.Context) error {
	id, ok := pathID(c, "clientId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid client id"})
	}
	orders, err := h.Svc.ListByClient(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "orders by client", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders, "total": len(orders)})
}

// GET /v1/orders/check-client/:phone
func (h *Controller) CheckClient(c echo.Context) error {
	standing, err := h.Svc.CheckClientStanding(c.Request().Context(), c.Param("phone"))
	if err != nil {
		return h.fail(c, "check client", err)
	}
	return c.JSON(http.StatusOK, standing)
}

// PATCH /v1/orders/:id/status
func (h *Controller) UpdateStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req UpdateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	if err := h.Svc.UpdateStatus(c.Request().Context(), id, model.OrderStatus(req.Status)); err != nil {
		return h.fail(c, "order status update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "status updated"})
}

// PATCH /v1/orders/:id/start-at
func (h *Controller) AdjustStartAt(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req AdjustStartAtReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid start_at, expected RFC3339"})
	}
	if err := h.Svc.AdjustStartAt(c.Request().Context(), id, startAt); err != nil {
		return h.fail(c, "order start-at adjust", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "start time updated"})
}

// POST /v1/orders/:id/return
func (h *Controller) Return(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ReturnItemsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}

	lines := make([]ordersvc.ReturnLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, ordersvc.ReturnLine{
			OrderItemID: it.OrderItemID,
			Quantity:    it.ReturnQuantity,
			Multiplier:  it.Multiplier,
		})
	}

	out, err := h.Svc.ReturnItems(c.Request().Context(), id, lines, time.Now().UTC())
	if err != nil {
		return h.fail(c, "order return", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "items returned", "result": out})
}

// GET /v1/orders/:id/returns
func (h *Controller) Returns(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	recs, err := h.Svc.ListReturnRecords(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "order returns list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"returns": recs, "total": len(recs)})
}

// DELETE /v1/orders/:id
func (h *Controller) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.Remove(c.Request().Context(), id); err != nil {
		return h.fail(c, "order delete", err)
	}
	if uid, err := jwtx.UserIDFromContext(c); err == nil {
		h.Log.Info("order deleted", "order_id", id, "user_id", uid)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "order deleted"})
}

func (h *Controller) fail(c echo.Context, op string, err error) error {
	switch ordersvc.Code(err) {
	case ordersvc.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": err.Error()})
	case ordersvc.ErrInvalidInput:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	case ordersvc.ErrNoStock, ordersvc.ErrOverReturn, ordersvc.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"message": err.Error()})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}

func toItems(reqs []CreateItemReq) []ordersvc.CreateItem {
	items := make([]ordersvc.CreateItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, ordersvc.CreateItem{ProductID: r.ProductID, Quantity: r.Quantity})
	}
	return items
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
