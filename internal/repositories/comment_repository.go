package repositories

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID string) ([]*models.Comment, error)
	GetCommentsCountByPostID(ctx context.Context, postID string) (int, error)
}

// RowStoreCommentRepository implements CommentRepository over the post_comments table
type RowStoreCommentRepository struct {
	comments table[*models.Comment]
}

// NewRowStoreCommentRepository creates a new RowStoreCommentRepository
func NewRowStoreCommentRepository(store rowstore.Client) *RowStoreCommentRepository {
	return &RowStoreCommentRepository{comments: newTable[*models.Comment](store, models.TypeComment)}
}

// CreateComment inserts a comment and returns the stored row
func (r *RowStoreCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	return r.comments.insert(ctx, comment)
}

// GetCommentsByPostID retrieves the comments of a post, newest first
func (r *RowStoreCommentRepository) GetCommentsByPostID(ctx context.Context, postID string) ([]*models.Comment, error) {
	comments, err := r.comments.list(ctx, rowstore.Eq("post_id", postID))
	if err != nil {
		return nil, err
	}
	newestFirst(comments)
	return comments, nil
}

// GetCommentsCountByPostID counts the comments of a post
func (r *RowStoreCommentRepository) GetCommentsCountByPostID(ctx context.Context, postID string) (int, error) {
	return r.comments.count(ctx, rowstore.Eq("post_id", postID))
}
