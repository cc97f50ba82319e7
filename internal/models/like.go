package models

import "time"

// Like represents a like on a post. At most one per user per post.
type Like struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	PostID    string    `json:"post_id" gorm:"type:uuid;index;uniqueIndex:idx_post_user_like"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index;uniqueIndex:idx_post_user_like"`
	CreatedAt time.Time `json:"created_at"`
}

func (*Like) TableName() string  { return TypeLike.Table() }
func (*Like) EntityType() Type   { return TypeLike }
func (l *Like) EntityID() string { return l.ID }
func (l *Like) Stamp() time.Time { return l.CreatedAt }
