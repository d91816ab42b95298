// Package main rental orders API.
//
// @title           Rental Orders API
// @version         1.0
// @description     Rental order lifecycle: clients, products, orders, returns.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/mrbekdev/OPPBackend/app/echoServer"
	authctrl "github.com/mrbekdev/OPPBackend/app/echoServer/controller/auth"
	clientctrl "github.com/mrbekdev/OPPBackend/app/echoServer/controller/client"
	orderctrl "github.com/mrbekdev/OPPBackend/app/echoServer/controller/order"
	productctrl "github.com/mrbekdev/OPPBackend/app/echoServer/controller/product"
	"github.com/mrbekdev/OPPBackend/app/echoServer/validation"
	"github.com/mrbekdev/OPPBackend/config"
	authrepo "github.com/mrbekdev/OPPBackend/repository/auth"
	clientrepo "github.com/mrbekdev/OPPBackend/repository/client"
	orderrepo "github.com/mrbekdev/OPPBackend/repository/order"
	productrepo "github.com/mrbekdev/OPPBackend/repository/product"
	authsvc "github.com/mrbekdev/OPPBackend/service/auth"
	"github.com/mrbekdev/OPPBackend/service/billing"
	clientsvc "github.com/mrbekdev/OPPBackend/service/client"
	ordersvc "github.com/mrbekdev/OPPBackend/service/order"
	productsvc "github.com/mrbekdev/OPPBackend/service/product"
	"github.com/mrbekdev/OPPBackend/util/database"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB over pgx
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ar := authrepo.New(db)
	cr := clientrepo.New(db)
	pr := productrepo.New(db)
	or := orderrepo.New(db)

	// services
	as := authsvc.New(ar, cfg.JWTSecret)
	cs := clientsvc.New(cr)
	ps := productsvc.New(pr)
	osvc := ordersvc.New(db, or, pr, cr, billing.ParsePolicy(cfg.BillingPolicy))

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	clientC := &clientctrl.Controller{Svc: cs, Orders: osvc, V: v, Log: log}
	productC := &productctrl.Controller{Svc: ps, V: v, Log: log}
	orderC := &orderctrl.Controller{Svc: osvc, V: v, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:      authC,
		Client:    clientC,
		Product:   productC,
		Order:     orderC,
		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	log.Info("starting server", "port", port, "env", cfg.Env, "billing_policy", cfg.BillingPolicy)

	e.Logger.Fatal(e.Start(":" + port))
}
