package echoServer

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/mrbekdev/OPPBackend/app/echoServer/controller/auth"
	"github.com/mrbekdev/OPPBackend/app/echoServer/controller/client"
	"github.com/mrbekdev/OPPBackend/app/echoServer/controller/order"
	"github.com/mrbekdev/OPPBackend/app/echoServer/controller/product"
)

type C struct {
	Auth      *auth.Controller
	Client    *client.Controller
	Product   *product.Controller
	Order     *order.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)

	// Auth
	api := e.Group("/v1")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization",
	}))
	api.Use(claimsToContext)

	// Clients
	api.POST("/clients", c.Client.Create)
	api.GET("/clients", c.Client.List)
	api.GET("/clients/:id", c.Client.Get)
	api.GET("/clients/:id/orders", c.Client.ClientOrders)
	api.PATCH("/clients/:id", c.Client.Update)
	api.PATCH("/clients/:id/rating", c.Client.UpdateRating)
	api.DELETE("/clients/:id", c.Client.Delete)

	// Products
	api.POST("/products", c.Product.Create)
	api.GET("/products", c.Product.List)
	api.GET("/products/:id", c.Product.Get)
	api.PATCH("/products/:id", c.Product.Update)
	api.DELETE("/products/:id", c.Product.Delete)

	// Orders
	api.POST("/orders", c.Order.Create)
	api.POST("/orders/with-customer", c.Order.CreateWithCustomer)
	api.GET("/orders", c.Order.List)
	api.GET("/orders/check-client/:phone", c.Order.CheckClient)
	api.GET("/orders/client/:clientId", c.Order.ByClient)
	api.GET("/orders/:id", c.Order.Get)
	api.PATCH("/orders/:id/status", c.Order.UpdateStatus)
	api.PATCH("/orders/:id/start-at", c.Order.AdjustStartAt)
	api.POST("/orders/:id/return", c.Order.Return)
	api.GET("/orders/:id/returns", c.Order.Returns)
	api.DELETE("/orders/:id", c.Order.Delete)
}

// claimsToContext pulls sub/role out of the verified token so handlers
// can read user_id and role without touching the raw claims.
func claimsToContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		tokenObj := ctx.Get("user")
		claims, ok := tokenObj.(jwt.MapClaims)
		if !ok {
			if tok, isTok := tokenObj.(*jwt.Token); isTok {
				claims, ok = tok.Claims.(jwt.MapClaims)
			}
		}
		if !ok {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}

		sub, ok := claims["sub"].(float64)
		if !ok {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		ctx.Set("user_id", int64(sub))
		if role, ok := claims["role"].(string); ok {
			ctx.Set("role", role)
		}
		return next(ctx)
	}
}
