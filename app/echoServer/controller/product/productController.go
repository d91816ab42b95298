package product

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/mrbekdev/OPPBackend/app/echoServer/jwtx"
	"github.com/mrbekdev/OPPBackend/model"
	productsvc "github.com/mrbekdev/OPPBackend/service/product"
)

type Controller struct {
	Svc productsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

type ProductReq struct {
	Name   string  `json:"name" validate:"required"`
	Size   string  `json:"size"`
	Price  int64   `json:"price" validate:"gte=0"`
	Weight float64 `json:"weight" validate:"gte=0"`
	Count  int64   `json:"count" validate:"gte=0"`
}

func isAdmin(c echo.Context) bool {
	role, err := jwtx.RoleFromContext(c)
	return err == nil && role == "admin"
}

// POST /v1/products  (admin)
func (h *Controller) Create(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	var req ProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	out, err := h.Svc.Create(c.Request().Context(), &model.Product{
		Name: req.Name, Size: req.Size, Price: req.Price, Weight: req.Weight, Count: req.Count,
	})
	if err != nil {
		return h.fail(c, "product create", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "product created", "product": out})
}

// GET /v1/products
func (h *Controller) List(c echo.Context) error {
	products, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "product list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products, "total": len(products)})
}

// GET /v1/products/:id
func (h *Controller) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	out, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "product get", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"product": out})
}

// PATCH /v1/products/:id  (admin)
func (h *Controller) Update(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	out, err := h.Svc.Update(c.Request().Context(), &model.Product{
		ID: id, Name: req.Name, Size: req.Size, Price: req.Price, Weight: req.Weight, Count: req.Count,
	})
	if err != nil {
		return h.fail(c, "product update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "product updated", "product": out})
}

// DELETE /v1/products/:id  (admin)
func (h *Controller) Delete(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, "product delete", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}

func (h *Controller) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, productsvc.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "product not found"})
	case errors.Is(err, productsvc.ErrBadInput):
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
