package client

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	clientsvc "github.com/mrbekdev/OPPBackend/service/client"
	ordersvc "github.com/mrbekdev/OPPBackend/service/order"
)

type Controller struct {
	Svc    clientsvc.Service
	Orders ordersvc.Service
	V      *validator.Validate
	Log    *slog.Logger
}

type ClientReq struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

type RatingReq struct {
	Rating string `json:"rating"`
}

// POST /v1/clients
func (h *Controller) Create(c echo.Context) error {
	var req ClientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	out, err := h.Svc.Create(c.Request().Context(), req.FirstName, req.LastName, req.Phone)
	if err != nil {
		return h.fail(c, "client create", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "client created", "client": out})
}

// GET /v1/clients
func (h *Controller) List(c echo.Context) error {
	clients, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "client list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"clients": clients, "total": len(clients)})
}

// GET /v1/clients/:id
func (h *Controller) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	out, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "client get", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"client": out})
}

// GET /v1/clients/:id/orders
func (h *Controller) ClientOrders(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if _, err := h.Svc.Get(c.Request().Context(), id); err != nil {
		return h.fail(c, "client get", err)
	}
	orders, err := h.Orders.ListByClient(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("client orders", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders, "total": len(orders)})
}

// PATCH /v1/clients/:id
func (h *Controller) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ClientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	out, err := h.Svc.Update(c.Request().Context(), id, req.FirstName, req.LastName, req.Phone)
	if err != nil {
		return h.fail(c, "client update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "client updated", "client": out})
}

// PATCH /v1/clients/:id/rating
func (h *Controller) UpdateRating(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req RatingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.Svc.UpdateRating(c.Request().Context(), id, req.Rating); err != nil {
		return h.fail(c, "client rating update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "rating updated"})
}

// DELETE /v1/clients/:id
func (h *Controller) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, "client delete", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "client deleted"})
}

func (h *Controller) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, clientsvc.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "client not found"})
	case errors.Is(err, clientsvc.ErrPhoneTaken):
		return c.JSON(http.StatusConflict, echo.Map{"message": "phone already registered"})
	case errors.Is(err, clientsvc.ErrBadInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad input"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
