package model

import "time"

// User represents an account that can obtain tokens
type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	Password    string    `json:"-" gorm:"type:varchar(255);not null"`
	IsSuperuser bool      `json:"is_superuser" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AllModels lists every persisted model in migration order
func AllModels() []interface{} {
	return []interface{}{&User{}, &Product{}, &Order{}, &OrderedProduct{}}
}
