package handler

import (
	"net/http"
	"strconv"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	auth *usecase.AuthUsecase
}

func NewAdminUserHandler(auth *usecase.AuthUsecase) *AdminUserHandler {
	return &AdminUserHandler{auth: auth}
}

// POST /admin/users/:id/force-logout のハンドラ
// 対象ユーザーのtokenを全失効させる。administrador限定（RoleGuardは routes 側）
func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	idStr := c.Param("id")
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error"})
	}

	res, uerr := h.auth.ForceLogout(c.Request().Context(), userID)
	if uerr != nil {
		return writeError(c, uerr)
	}

	return c.JSON(http.StatusOK, res)
}
