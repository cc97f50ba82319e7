package models

import "time"

// User is a LinkUp profile row
type User struct {
	ID              string    `json:"id" gorm:"primaryKey;type:uuid"`
	FullName        string    `json:"full_name" gorm:"index"`
	Username        string    `json:"username,omitempty" gorm:"uniqueIndex"`
	Headline        string    `json:"headline,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	Location        string    `json:"location,omitempty"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (*User) TableName() string  { return TypeUser.Table() }
func (*User) EntityType() Type   { return TypeUser }
func (u *User) EntityID() string { return u.ID }
func (u *User) Stamp() time.Time { return latest(u.UpdatedAt, u.CreatedAt) }

// UserCompact is the author card shown next to posts, comments and notifications
type UserCompact struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Headline        string `json:"headline,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// ToCompact converts a profile into its card form
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:              u.ID,
		FullName:        u.FullName,
		Headline:        u.Headline,
		ProfileImageURL: u.ProfileImageURL,
	}
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// UpdateProfileRequest defines the editable profile fields
type UpdateProfileRequest struct {
	FullName        *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=100"`
	Headline        *string `json:"headline,omitempty" validate:"omitempty,max=200"`
	Bio             *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Location        *string `json:"location,omitempty" validate:"omitempty,max=100"`
	ProfileImageURL *string `json:"profile_image_url,omitempty" validate:"omitempty,url"`
}

// Apply returns a copy of u with the request's fields set, and the changed columns.
func (r UpdateProfileRequest) Apply(u *User) (*User, map[string]any) {
	cp := *u
	patch := map[string]any{}
	if r.FullName != nil {
		cp.FullName = *r.FullName
		patch["full_name"] = *r.FullName
	}
	if r.Headline != nil {
		cp.Headline = *r.Headline
		patch["headline"] = *r.Headline
	}
	if r.Bio != nil {
		cp.Bio = *r.Bio
		patch["bio"] = *r.Bio
	}
	if r.Location != nil {
		cp.Location = *r.Location
		patch["location"] = *r.Location
	}
	if r.ProfileImageURL != nil {
		cp.ProfileImageURL = *r.ProfileImageURL
		patch["profile_image_url"] = *r.ProfileImageURL
	}
	return &cp, patch
}
