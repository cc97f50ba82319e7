package repositories

import (
	"context"
	"strings"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) (*models.Post, error)
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByUserID(ctx context.Context, userID string) ([]*models.Post, error)
	GetAllPosts(ctx context.Context) ([]*models.Post, error)
	SearchPosts(ctx context.Context, query string) ([]*models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// RowStorePostRepository implements PostRepository over the posts table
type RowStorePostRepository struct {
	posts table[*models.Post]
}

// NewRowStorePostRepository creates a new RowStorePostRepository
func NewRowStorePostRepository(store rowstore.Client) *RowStorePostRepository {
	return &RowStorePostRepository{posts: newTable[*models.Post](store, models.TypePost)}
}

// CreatePost inserts a post and returns the stored row
func (r *RowStorePostRepository) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	return r.posts.insert(ctx, post)
}

// GetPostByID retrieves a post by id
func (r *RowStorePostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	return r.posts.first(ctx, rowstore.Eq("id", id))
}

// GetPostsByUserID retrieves posts by one author, newest first
func (r *RowStorePostRepository) GetPostsByUserID(ctx context.Context, userID string) ([]*models.Post, error) {
	posts, err := r.posts.list(ctx, rowstore.Eq("user_id", userID))
	if err != nil {
		return nil, err
	}
	newestFirst(posts)
	return posts, nil
}

// GetAllPosts retrieves every post, newest first
func (r *RowStorePostRepository) GetAllPosts(ctx context.Context) ([]*models.Post, error) {
	posts, err := r.posts.list(ctx, nil)
	if err != nil {
		return nil, err
	}
	newestFirst(posts)
	return posts, nil
}

// SearchPosts returns posts whose content contains query, case-insensitively
func (r *RowStorePostRepository) SearchPosts(ctx context.Context, query string) ([]*models.Post, error) {
	posts, err := r.GetAllPosts(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := posts[:0]
	for _, p := range posts {
		if q != "" && strings.Contains(strings.ToLower(p.Content), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeletePost deletes a post by id
func (r *RowStorePostRepository) DeletePost(ctx context.Context, id string) error {
	return r.posts.delete(ctx, rowstore.Eq("id", id))
}
