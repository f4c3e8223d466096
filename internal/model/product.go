package model

// Product represents a catalog item. Brand and Category hold canonical labels,
// never wire codes.
type Product struct {
	ID          uint    `json:"id" gorm:"primarykey"`
	Name        string  `json:"name" gorm:"type:varchar(100);not null"`
	Brand       string  `json:"brand" gorm:"type:varchar(100);not null;index"`
	Category    string  `json:"type" gorm:"column:category;type:varchar(10);not null;index"`
	Price       int64   `json:"price" gorm:"not null"`
	Quantity    int     `json:"quantity" gorm:"not null;default:0;check:quantity >= 0"`
	Img         string  `json:"img" gorm:"type:varchar(255);not null"`
	Description *string `json:"description" gorm:"type:text"`
}
