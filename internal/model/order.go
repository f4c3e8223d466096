package model

import "time"

// Order is a customer order. TotalPrice is derived from its line items when the
// order is placed and is not changed afterwards.
type Order struct {
	ID              uint             `json:"id" gorm:"primarykey"`
	Name            string           `json:"name" gorm:"type:varchar(100)"`
	Phone           string           `json:"phone" gorm:"type:varchar(20)"`
	Address         string           `json:"address" gorm:"type:varchar(255)"`
	TotalPrice      int64            `json:"total_price" gorm:"not null;default:0"`
	CreatedAt       time.Time        `json:"created_at"`
	OrderedProducts []OrderedProduct `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// OrderedProduct is one line item of an order. Products referenced here cannot
// be deleted.
type OrderedProduct struct {
	ID        uint    `json:"id" gorm:"primarykey"`
	OrderID   uint    `json:"order" gorm:"not null;index"`
	ProductID uint    `json:"product" gorm:"not null;index"`
	Product   Product `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
	Quantity  int     `json:"quantity" gorm:"not null;check:quantity > 0"`
}
