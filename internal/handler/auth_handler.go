package handler

import (
	"errors"
	"net/http"

	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	auth *usecase.AuthUsecase
}

// DIコンストラクタ
func NewAuthHandler(auth *usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type errorResponse struct {
	Error string `json:"error"`
}

// POST /auth/invitado のハンドラ。ゲストを作ってtokenを返す
func (h *AuthHandler) CreateInvitado(c echo.Context) error {
	res, err := h.auth.CreateInvitado(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, res)
}

// POST /auth/register のハンドラ
func (h *AuthHandler) Register(c echo.Context) error {
	var req usecase.AuthRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error"})
	}

	res, err := h.auth.Register(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, res)
}

// POST /auth/login のハンドラ
func (h *AuthHandler) Login(c echo.Context) error {
	var req usecase.AuthLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error"})
	}

	res, err := h.auth.Login(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// POST /auth/refresh のハンドラ。bodyのrefresh tokenからaccessを再発行
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req usecase.AuthRefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error"})
	}

	res, err := h.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// POST /auth/logout のハンドラ。提示tokenだけ失効
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
	}

	res, err := h.auth.Logout(c.Request().Context(), p)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// POST /auth/logout-all のハンドラ。所有者のtokenを全失効
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
	}

	res, err := h.auth.LogoutAll(c.Request().Context(), p)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// GET /auth/me のハンドラ
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
	}

	res, err := h.auth.Me(c.Request().Context(), p)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// usecaseのsentinel errorをHTTPステータスに対応付ける
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error"})
	case errors.Is(err, usecase.ErrTokenInvalid):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "token_invalid"})
	case errors.Is(err, usecase.ErrTokenRevoked):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "token_revoked"})
	case errors.Is(err, usecase.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, usecase.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}
