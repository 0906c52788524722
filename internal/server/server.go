package server

import (
	"app/internal/config"
	"app/internal/handler"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
)

// echoを組み立てて返す。起動はmain側
func New(
	cfg config.Config,
	tokens repository.TokenRecordRepository,
	authH *handler.AuthHandler,
	adminH *handler.AdminUserHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	RegisterRoutes(e, cfg, tokens, authH, adminH)

	return e
}
