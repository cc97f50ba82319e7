package models

import "time"

// Connection is a directed follow edge. The pair is unique and a user cannot follow themselves.
type Connection struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	FollowerID  string    `json:"follower_id" gorm:"type:uuid;index;uniqueIndex:idx_follower_following" validate:"required"`
	FollowingID string    `json:"following_id" gorm:"type:uuid;index;uniqueIndex:idx_follower_following;check:chk_no_self_follow,follower_id <> following_id" validate:"required,nefield=FollowerID"`
	CreatedAt   time.Time `json:"created_at"`
}

func (*Connection) TableName() string  { return TypeConnection.Table() }
func (*Connection) EntityType() Type   { return TypeConnection }
func (c *Connection) EntityID() string { return c.ID }
func (c *Connection) Stamp() time.Time { return c.CreatedAt }
