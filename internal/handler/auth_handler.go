package handler

import (
	"net/http"
	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
)

// AuthHandler serves login and token refresh
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login exchanges username and password for an access/refresh token pair
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	pair, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"refresh_token": pair.RefreshToken,
		"access_token":  pair.AccessToken,
		"access_exp":    pair.AccessExpiresAt.Unix(),
		"message":       "login success",
	})
}

// RefreshToken issues a new access token from a refresh token
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	token, exp, err := h.auth.Refresh(c.Request().Context(), req.Refresh)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"access_exp":   exp.Unix(),
	})
}
