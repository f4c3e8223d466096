package handler

import (
	"net/http"
	"shop-service/internal/service"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OrderHandler serves the order endpoints
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler creates an order handler
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListOrders returns every order with its products nested
func (h *OrderHandler) ListOrders(c echo.Context) error {
	views, err := h.orders.ListOrders(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	logger.FromContext(c).Info("Orders retrieved", zap.Int("count", len(views)))
	return c.JSON(http.StatusOK, views)
}

// GetOrder returns one order with its products nested
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	view, err := h.orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// CreateOrder places an order
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req service.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	logger.FromContext(c).Info("Order placement request",
		zap.Int("lines", len(req.OrderedProducts)),
		zap.String("name", req.Name))

	order, err := h.orders.PlaceOrder(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, order)
}

// UpdateOrder handles PUT and PATCH of the customer contact fields
func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req service.OrderContactInput
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	order, err := h.orders.UpdateContact(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, order)
}

// DeleteOrder removes an order and its lines
func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.orders.DeleteOrder(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
