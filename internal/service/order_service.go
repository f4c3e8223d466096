package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"shop-service/internal/model"
	"shop-service/prometheus"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderLineRequest asks for quantity units of one product
type OrderLineRequest struct {
	ProductID uint `json:"product" validate:"required"`
	Quantity  int  `json:"quantity" validate:"min=1"`
}

// PlaceOrderRequest is the payload for creating an order
type PlaceOrderRequest struct {
	Name            string             `json:"name" validate:"max=100"`
	Phone           string             `json:"phone" validate:"max=20"`
	Address         string             `json:"address" validate:"max=255"`
	OrderedProducts []OrderLineRequest `json:"ordered_products" validate:"required,min=1,dive"`
}

// OrderContactInput updates the customer fields of an order
type OrderContactInput struct {
	Name    *string `json:"name" validate:"omitnil,max=100"`
	Phone   *string `json:"phone" validate:"omitnil,max=20"`
	Address *string `json:"address" validate:"omitnil,max=255"`
}

// OrderProductView is a line item flattened with its product's current data
type OrderProductView struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Type     string `json:"type"`
	Brand    string `json:"brand"`
	Quantity int    `json:"quantity"`
}

// OrderView is the read shape of an order
type OrderView struct {
	Products   []OrderProductView `json:"products"`
	ID         uint               `json:"id"`
	CreatedAt  time.Time          `json:"created_at"`
	TotalPrice int64              `json:"total_price"`
	Name       string             `json:"name"`
	Address    string             `json:"address"`
	Phone      string             `json:"phone"`
}

// OrderService places and reads orders
type OrderService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewOrderService creates an order service
func NewOrderService(db *gorm.DB, log *zap.Logger) *OrderService {
	return &OrderService{db: db, log: log}
}

// PlaceOrder creates an order and its line items and decrements stock, all in
// one transaction. Each product row is locked before its stock is checked, so
// concurrent orders cannot oversell. Any failing line rolls back everything.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*model.Order, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("order_place")(time.Now())

	var (
		order    model.Order
		touched  []model.Product
		rejected uint
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order = model.Order{
			Name:       req.Name,
			Phone:      req.Phone,
			Address:    req.Address,
			TotalPrice: 0,
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		var total int64
		for i, line := range req.OrderedProducts {
			var product model.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, line.ProductID).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("product %d: %w", line.ProductID, ErrNotFound)
				}
				return fmt.Errorf("load product %d: %w", line.ProductID, err)
			}

			if product.Quantity == 0 || product.Quantity < line.Quantity {
				rejected = product.ID
				return insufficientStock(i, product)
			}

			res := tx.Model(&model.Product{}).
				Where("id = ? AND quantity >= ?", product.ID, line.Quantity).
				Update("quantity", gorm.Expr("quantity - ?", line.Quantity))
			if res.Error != nil {
				return fmt.Errorf("decrement stock of product %d: %w", product.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				// stock moved since the read; report what is left now
				rejected = product.ID
				if err := tx.Select("quantity").First(&product, product.ID).Error; err != nil {
					return fmt.Errorf("reload product %d: %w", product.ID, err)
				}
				return insufficientStock(i, product)
			}
			product.Quantity -= line.Quantity

			subtotal, ok := lineTotal(line.Quantity, product.Price, total)
			if !ok {
				return invalid(fmt.Sprintf("ordered_products[%d].quantity", i),
					"order total for product %d is too large", product.ID)
			}
			total = subtotal

			item := model.OrderedProduct{
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  line.Quantity,
			}
			if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
				return fmt.Errorf("create order line: %w", err)
			}

			touched = append(touched, product)
		}

		order.TotalPrice = total
		if err := tx.Model(&order).Update("total_price", total).Error; err != nil {
			return fmt.Errorf("set order total: %w", err)
		}
		return nil
	})
	if err != nil {
		if rejected != 0 {
			prometheus.RecordStockRejection(rejected)
		}
		s.log.Warn("Order rejected", zap.Error(err))
		return nil, err
	}

	prometheus.RecordOrderPlaced(order.TotalPrice)
	for _, p := range touched {
		prometheus.UpdateProductInventory(p.ID, p.Name, p.Category, p.Quantity)
	}
	s.log.Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.Int("lines", len(req.OrderedProducts)),
		zap.Int64("total_price", order.TotalPrice))

	return &order, nil
}

// lineTotal adds quantity*price to total, reporting false on int64 overflow
func lineTotal(quantity int, price, total int64) (int64, bool) {
	q := int64(quantity)
	if price != 0 && q > (math.MaxInt64-total)/price {
		return 0, false
	}
	return total + q*price, true
}

func insufficientStock(line int, p model.Product) error {
	return invalid(fmt.Sprintf("ordered_products[%d].quantity", line),
		"invalid quantity for product %d: %d in stock", p.ID, p.Quantity)
}

// GetOrder returns one order with its products resolved
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*OrderView, error) {
	defer prometheus.TrackDBOperation("order_get")(time.Now())

	var order model.Order
	if err := s.withLines(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	view := newOrderView(order)
	return &view, nil
}

// ListOrders returns all orders with their products resolved, oldest first
func (s *OrderService) ListOrders(ctx context.Context) ([]OrderView, error) {
	defer prometheus.TrackDBOperation("order_list")(time.Now())

	var orders []model.Order
	if err := s.withLines(ctx).Order("id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views, nil
}

func (s *OrderService) withLines(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("OrderedProducts", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Preload("OrderedProducts.Product")
}

func newOrderView(o model.Order) OrderView {
	products := make([]OrderProductView, 0, len(o.OrderedProducts))
	for _, line := range o.OrderedProducts {
		products = append(products, OrderProductView{
			Name:     line.Product.Name,
			Price:    line.Product.Price,
			Type:     line.Product.Category,
			Brand:    line.Product.Brand,
			Quantity: line.Quantity,
		})
	}

	return OrderView{
		Products:   products,
		ID:         o.ID,
		CreatedAt:  o.CreatedAt,
		TotalPrice: o.TotalPrice,
		Name:       o.Name,
		Address:    o.Address,
		Phone:      o.Phone,
	}
}

// UpdateContact changes the customer fields of an order. Totals and line
// items cannot be changed after placement.
func (s *OrderService) UpdateContact(ctx context.Context, id uint, in OrderContactInput) (*model.Order, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("order_update")(time.Now())

	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", id, ErrNotFound)
			}
			return err
		}

		updates := map[string]interface{}{}
		if in.Name != nil {
			updates["name"] = *in.Name
			order.Name = *in.Name
		}
		if in.Phone != nil {
			updates["phone"] = *in.Phone
			order.Phone = *in.Phone
		}
		if in.Address != nil {
			updates["address"] = *in.Address
			order.Address = *in.Address
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&model.Order{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update order %d: %w", id, err)
	}

	s.log.Info("Order contact updated", zap.Uint("order_id", id))
	return &order, nil
}

// DeleteOrder removes an order and its line items. Stock is not returned.
func (s *OrderService) DeleteOrder(ctx context.Context, id uint) error {
	defer prometheus.TrackDBOperation("order_delete")(time.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", id, ErrNotFound)
			}
			return err
		}

		if err := tx.Where("order_id = ?", id).Delete(&model.OrderedProduct{}).Error; err != nil {
			return err
		}
		return tx.Delete(&order).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete order %d: %w", id, err)
	}

	s.log.Info("Order deleted", zap.Uint("order_id", id))
	return nil
}
