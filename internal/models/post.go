package models

import "time"

// Post represents a feed post
type Post struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        string    `json:"user_id" gorm:"type:uuid;index"` // author
	Content       string    `json:"content" validate:"required,min=1,max=3000"`
	ImageURL      string    `json:"image_url,omitempty" validate:"omitempty,url"`
	LikesCount    int       `json:"likes_count" gorm:"-"`
	CommentsCount int       `json:"comments_count" gorm:"-"`
	IsLiked       bool      `json:"is_liked" gorm:"-"` // relative to the session user
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (*Post) TableName() string  { return TypePost.Table() }
func (*Post) EntityType() Type   { return TypePost }
func (p *Post) EntityID() string { return p.ID }
func (p *Post) Stamp() time.Time { return latest(p.UpdatedAt, p.CreatedAt) }

// Clone returns a copy safe to mutate in an optimistic updater.
func (p *Post) Clone() *Post {
	cp := *p
	return &cp
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=3000"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// CarryFrom keeps the aggregate and viewer-relative fields of prev. Change
// events only carry table columns.
func (p *Post) CarryFrom(prev Entity) {
	old, ok := prev.(*Post)
	if !ok {
		return
	}
	p.LikesCount = old.LikesCount
	p.CommentsCount = old.CommentsCount
	p.IsLiked = old.IsLiked
}
