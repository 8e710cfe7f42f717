package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderMessage represents a note in a manufacturing order's conversation
// thread between the practice and the lab.
type OrderMessage struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	OrderID   uint               `gorm:"not null;index" json:"order_id"` // foreign key to manufacturing_orders
	Order     ManufacturingOrder `gorm:"foreignKey:OrderID" json:"-"`    // don't include full order in JSON
	SenderID  uint               `gorm:"not null;index" json:"sender_id"` // foreign key to users table
	Sender    User               `gorm:"foreignKey:SenderID" json:"sender"`
	Text      string             `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	DeletedAt gorm.DeletedAt     `gorm:"index" json:"-"`
}

// TableName specifies the table name for the OrderMessage model
func (OrderMessage) TableName() string {
	return "order_messages"
}
