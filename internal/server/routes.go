package server

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/middleware"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
)

// 全ルートを登録する。AuthJWTは全リクエストに掛かる
// （ヘッダ無しは匿名で通るので、公開ルートもこの下でよい）
func RegisterRoutes(
	e *echo.Echo,
	cfg config.Config,
	tokens repository.TokenRecordRepository,
	authH *handler.AuthHandler,
	adminH *handler.AdminUserHandler,
) {
	e.Use(middleware.AuthJWT(cfg, tokens))

	auth := e.Group("/auth")
	auth.POST("/invitado", authH.CreateInvitado)
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)
	auth.POST("/logout-all", authH.LogoutAll)
	auth.GET("/me", authH.Me)

	//管理系はadministradorのみ
	admin := e.Group("/admin", middleware.RoleGuard(model.RoleAdministrador))
	admin.POST("/users/:id/force-logout", adminH.ForceLogout)
}
