package services

import (
	"context"
	"strings"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/syncerr"
)

// SearchResults is what the search page shows.
type SearchResults struct {
	Query string         `json:"query"`
	Posts []*models.Post `json:"posts"`
	Users []*models.User `json:"users"`
}

// SearchService runs free text searches against the Row Store.
type SearchService struct {
	base
	posts repositories.PostRepository
	users repositories.UserRepository
}

// NewSearchService creates a new SearchService
func NewSearchService(d Deps, posts repositories.PostRepository, users repositories.UserRepository) *SearchService {
	return &SearchService{base: newBase(d, "search"), posts: posts, users: users}
}

// Search finds posts by content and people by name. Matching profiles are
// written to the cache; posts keep the counts the feed already has for them.
// An empty query finds nothing.
func (s *SearchService) Search(ctx context.Context, query string) (SearchResults, error) {
	res := SearchResults{Query: strings.TrimSpace(query)}
	if res.Query == "" {
		return res, nil
	}

	// search rows carry no counts, so they are not written over the feed
	posts, err := s.posts.SearchPosts(ctx, res.Query)
	if err != nil {
		return res, syncerr.New(syncerr.RemoteReadFailed, "search", models.Key{Type: models.TypePost}, err)
	}
	for _, p := range posts {
		if cached, ok := s.cache.Get(models.TypePost, p.ID); ok {
			p.CarryFrom(cached)
		}
	}
	res.Posts = posts

	rows, err := s.co.Refresh(ctx, models.TypeUser, func(ctx context.Context) ([]models.Entity, error) {
		users, err := s.users.SearchUsers(ctx, res.Query)
		if err != nil {
			return nil, err
		}
		return entities(users), nil
	})
	if err != nil {
		return res, err
	}
	for _, e := range rows {
		res.Users = append(res.Users, e.(*models.User))
	}
	return res, nil
}
