package models

import "time"

// Notification is an append-only message for one user
type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index"`      // recipient
	ActorID   string    `json:"actor_id,omitempty" gorm:"type:uuid"` // who triggered it
	Type      string    `json:"type" gorm:"size:30;index"`           // like, comment, follow
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (*Notification) TableName() string  { return TypeNotification.Table() }
func (*Notification) EntityType() Type   { return TypeNotification }
func (n *Notification) EntityID() string { return n.ID }
func (n *Notification) Stamp() time.Time { return n.CreatedAt }
