package server

import (
	"app/internal/config"
	"app/internal/handler"
	"app/internal/middleware"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func New(
	cfg config.Config,
	log *zap.Logger,
	authH *handler.AuthHandler,
	productH *handler.ProductHandler,
	orderH *handler.OrderHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLogger(log))

	RegisterRoutes(e, cfg, authH, productH, orderH)
	return e
}

func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}
