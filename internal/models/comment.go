package models

import "time"

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	PostID    string    `json:"post_id" gorm:"type:uuid;index"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index"`
	Content   string    `json:"content" validate:"required,min=1,max=500"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (*Comment) TableName() string  { return TypeComment.Table() }
func (*Comment) EntityType() Type   { return TypeComment }
func (c *Comment) EntityID() string { return c.ID }
func (c *Comment) Stamp() time.Time { return c.CreatedAt }

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
