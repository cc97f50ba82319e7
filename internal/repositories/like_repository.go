package repositories

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) (*models.Like, error)
	DeleteLike(ctx context.Context, postID, userID string) error
	GetLikesByPostID(ctx context.Context, postID string) ([]*models.Like, error)
	GetLikesByUserID(ctx context.Context, userID string) ([]*models.Like, error)
	GetLikesCountByPostID(ctx context.Context, postID string) (int, error)
	HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error)
}

// RowStoreLikeRepository implements LikeRepository over the post_likes table
type RowStoreLikeRepository struct {
	likes table[*models.Like]
}

// NewRowStoreLikeRepository creates a new RowStoreLikeRepository
func NewRowStoreLikeRepository(store rowstore.Client) *RowStoreLikeRepository {
	return &RowStoreLikeRepository{likes: newTable[*models.Like](store, models.TypeLike)}
}

// CreateLike inserts a like. A second like by the same user fails with rowstore.ErrDuplicate
func (r *RowStoreLikeRepository) CreateLike(ctx context.Context, like *models.Like) (*models.Like, error) {
	return r.likes.insert(ctx, like)
}

// DeleteLike removes the user's like on a post
func (r *RowStoreLikeRepository) DeleteLike(ctx context.Context, postID, userID string) error {
	return r.likes.delete(ctx, rowstore.Eq("post_id", postID).And("user_id", userID))
}

// GetLikesByPostID retrieves all likes for a post
func (r *RowStoreLikeRepository) GetLikesByPostID(ctx context.Context, postID string) ([]*models.Like, error) {
	return r.likes.list(ctx, rowstore.Eq("post_id", postID))
}

// GetLikesByUserID retrieves all likes made by a user
func (r *RowStoreLikeRepository) GetLikesByUserID(ctx context.Context, userID string) ([]*models.Like, error) {
	return r.likes.list(ctx, rowstore.Eq("user_id", userID))
}

// GetLikesCountByPostID counts the likes of a post
func (r *RowStoreLikeRepository) GetLikesCountByPostID(ctx context.Context, postID string) (int, error) {
	return r.likes.count(ctx, rowstore.Eq("post_id", postID))
}

// HasUserLikedPost checks if a user has liked a post
func (r *RowStoreLikeRepository) HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error) {
	n, err := r.likes.count(ctx, rowstore.Eq("post_id", postID).And("user_id", userID))
	return n > 0, err
}
