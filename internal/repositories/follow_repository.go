package repositories

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// FollowRepository defines the interface for connection data operations
type FollowRepository interface {
	CreateFollow(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	DeleteFollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	GetFollowing(ctx context.Context, userID string) ([]*models.Connection, error)
	GetFollowers(ctx context.Context, userID string) ([]*models.Connection, error)
	GetFollowingIDs(ctx context.Context, userID string) ([]string, error)
}

// RowStoreFollowRepository implements FollowRepository over the connections table
type RowStoreFollowRepository struct {
	connections table[*models.Connection]
}

// NewRowStoreFollowRepository creates a new RowStoreFollowRepository
func NewRowStoreFollowRepository(store rowstore.Client) *RowStoreFollowRepository {
	return &RowStoreFollowRepository{connections: newTable[*models.Connection](store, models.TypeConnection)}
}

// CreateFollow inserts a follow edge. The pair is unique in the store
func (r *RowStoreFollowRepository) CreateFollow(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	return r.connections.insert(ctx, conn)
}

// DeleteFollow removes the edge from follower to following
func (r *RowStoreFollowRepository) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	return r.connections.delete(ctx, rowstore.Eq("follower_id", followerID).And("following_id", followingID))
}

// IsFollowing checks whether follower follows following
func (r *RowStoreFollowRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	n, err := r.connections.count(ctx, rowstore.Eq("follower_id", followerID).And("following_id", followingID))
	return n > 0, err
}

// GetFollowing retrieves the edges going out of userID
func (r *RowStoreFollowRepository) GetFollowing(ctx context.Context, userID string) ([]*models.Connection, error) {
	return r.connections.list(ctx, rowstore.Eq("follower_id", userID))
}

// GetFollowers retrieves the edges coming into userID
func (r *RowStoreFollowRepository) GetFollowers(ctx context.Context, userID string) ([]*models.Connection, error) {
	return r.connections.list(ctx, rowstore.Eq("following_id", userID))
}

// GetFollowingIDs returns the ids of the users userID follows
func (r *RowStoreFollowRepository) GetFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	conns, err := r.GetFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(conns))
	for i, c := range conns {
		ids[i] = c.FollowingID
	}
	return ids, nil
}
