package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedService backs the home feed: posts, likes and comments.
type FeedService struct {
	base
	posts    repositories.PostRepository
	likes    repositories.LikeRepository
	comments repositories.CommentRepository
	users    repositories.UserRepository
	toggles  inflight
}

// NewFeedService creates a new FeedService
func NewFeedService(
	d Deps,
	posts repositories.PostRepository,
	likes repositories.LikeRepository,
	comments repositories.CommentRepository,
	users repositories.UserRepository,
) *FeedService {
	return &FeedService{
		base:     newBase(d, "feed"),
		posts:    posts,
		likes:    likes,
		comments: comments,
		users:    users,
	}
}

// LoadFeed fetches every post with its counts and the viewer's like state,
// writes them to the cache and returns the feed newest first.
func (s *FeedService) LoadFeed(ctx context.Context) ([]*models.Post, error) {
	me, err := s.me()
	if err != nil {
		return nil, err
	}
	rows, err := s.co.Refresh(ctx, models.TypePost, func(ctx context.Context) ([]models.Entity, error) {
		posts, err := s.posts.GetAllPosts(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			if err := s.decorate(ctx, p, me); err != nil {
				return nil, err
			}
		}
		return entities(posts), nil
	})
	if err != nil {
		return nil, err
	}
	s.co.Prune(models.TypePost, nil, rows)
	s.loadAuthors(ctx)
	return s.Posts(), nil
}

// loadAuthors refreshes profiles for author cards. The feed still renders
// without them.
func (s *FeedService) loadAuthors(ctx context.Context) {
	_, err := s.co.Refresh(ctx, models.TypeUser, func(ctx context.Context) ([]models.Entity, error) {
		users, err := s.users.GetUsers(ctx)
		if err != nil {
			return nil, err
		}
		return entities(users), nil
	})
	if err != nil {
		s.logger.Warn("author refresh failed", zap.Error(err))
	}
}

// Author returns the cached card of a user.
func (s *FeedService) Author(userID string) (models.UserCompact, bool) {
	u, ok := cache.Lookup[*models.User](s.cache, models.TypeUser, userID)
	if !ok {
		return models.UserCompact{ID: userID}, false
	}
	return u.ToCompact(), true
}

func (s *FeedService) decorate(ctx context.Context, p *models.Post, me string) error {
	likes, err := s.likes.GetLikesByPostID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("likes of post %s: %w", p.ID, err)
	}
	p.LikesCount = len(likes)
	p.IsLiked = false
	for _, l := range likes {
		if l.UserID == me {
			p.IsLiked = true
			break
		}
	}
	p.CommentsCount, err = s.comments.GetCommentsCountByPostID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("comments of post %s: %w", p.ID, err)
	}
	return nil
}

// Posts returns the cached feed newest first.
func (s *FeedService) Posts() []*models.Post {
	return newestFirst(cache.Collect[*models.Post](s.cache.List(models.TypePost, nil)))
}

// Post returns one cached post.
func (s *FeedService) Post(id string) (*models.Post, bool) {
	return cache.Lookup[*models.Post](s.cache, models.TypePost, id)
}

// ToggleLike flips the viewer's like on a post. The new count and like state
// are visible as soon as it returns; the channel yields the outcome of the
// remote write. A second toggle of the same post fails with ErrInFlight until
// the first resolves.
func (s *FeedService) ToggleLike(ctx context.Context, postID string) (<-chan coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return nil, err
	}
	key := models.Key{Type: models.TypePost, ID: postID}
	if _, ok := s.Post(postID); !ok {
		return nil, ErrNotLoaded
	}
	release, err := s.toggles.acquire(key)
	if err != nil {
		return nil, err
	}

	var staged *models.Post
	update := func(current models.Entity) models.Entity {
		p, ok := current.(*models.Post)
		if !ok {
			return current
		}
		staged = p.Clone()
		if staged.IsLiked {
			staged.LikesCount = max(staged.LikesCount-1, 0)
		} else {
			staged.LikesCount++
		}
		staged.IsLiked = !staged.IsLiked
		return staged
	}
	write := func(ctx context.Context) (models.Entity, error) {
		if staged == nil {
			return nil, ErrNotLoaded
		}
		if staged.IsLiked {
			_, err := s.likes.CreateLike(ctx, &models.Like{ID: uuid.NewString(), PostID: postID, UserID: me})
			if err != nil {
				return nil, err
			}
		} else if err := s.likes.DeleteLike(ctx, postID, me); err != nil {
			return nil, err
		}

		confirmed := s.settledPost(key, staged)
		confirmed.IsLiked = staged.IsLiked
		count, err := s.likes.GetLikesCountByPostID(ctx, postID)
		if err != nil {
			// the write landed; keep the local count rather than fail it
			s.logger.Warn("like count refresh failed", zap.String("id", postID), zap.Error(err))
			confirmed.LikesCount = staged.LikesCount
			return confirmed, nil
		}
		confirmed.LikesCount = count
		return confirmed, nil
	}

	inner := s.co.MutateAsync(ctx, key, update, write)
	out := make(chan coordinator.Result, 1)
	go func() {
		res := <-inner
		release()
		out <- res
	}()
	return out, nil
}

// LoadComments fetches the comments of a post, oldest first.
func (s *FeedService) LoadComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	rows, err := s.co.Refresh(ctx, models.TypeComment, func(ctx context.Context) ([]models.Entity, error) {
		comments, err := s.comments.GetCommentsByPostID(ctx, postID)
		if err != nil {
			return nil, err
		}
		return entities(comments), nil
	})
	if err != nil {
		return nil, err
	}
	s.co.Prune(models.TypeComment, cache.Where(func(c *models.Comment) bool { return c.PostID == postID }), rows)
	return s.Comments(postID), nil
}

// Comments returns the cached comments of a post, oldest first.
func (s *FeedService) Comments(postID string) []*models.Comment {
	out := newestFirst(cache.Collect[*models.Comment](s.cache.List(models.TypeComment,
		cache.Where(func(c *models.Comment) bool { return c.PostID == postID }))))
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// AddComment appends a comment to a post. The comment and the post's new
// comment count show immediately; both roll back if the insert fails.
func (s *FeedService) AddComment(ctx context.Context, postID string, req models.CreateCommentRequest) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := s.check(req); err != nil {
		return coordinator.Result{}, err
	}

	comment := &models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    me,
		Content:   req.Content,
		CreatedAt: s.now().UTC(),
	}
	outcome := make(chan error, 1)
	var counted <-chan coordinator.Result
	if _, ok := s.Post(postID); ok {
		counted = s.bumpComments(ctx, postID, outcome)
	}

	res := s.co.Mutate(ctx, models.KeyOf(comment),
		func(models.Entity) models.Entity { return comment },
		func(ctx context.Context) (models.Entity, error) {
			c, err := s.comments.CreateComment(ctx, comment)
			outcome <- err
			if err != nil {
				return nil, err
			}
			return c, nil
		})
	if counted != nil {
		<-counted
	}
	return res, nil
}

// bumpComments stages the post's comment count +1 and settles it with the
// outcome of the comment insert.
func (s *FeedService) bumpComments(ctx context.Context, postID string, outcome <-chan error) <-chan coordinator.Result {
	key := models.Key{Type: models.TypePost, ID: postID}
	var staged *models.Post
	return s.co.MutateAsync(ctx, key,
		func(current models.Entity) models.Entity {
			p, ok := current.(*models.Post)
			if !ok {
				return current
			}
			staged = p.Clone()
			staged.CommentsCount++
			return staged
		},
		func(ctx context.Context) (models.Entity, error) {
			select {
			case err := <-outcome:
				if err != nil {
					return nil, err
				}
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if staged == nil {
				return nil, ErrNotLoaded
			}
			confirmed := s.settledPost(key, staged)
			confirmed.CommentsCount = staged.CommentsCount
			if n, err := s.comments.GetCommentsCountByPostID(ctx, postID); err == nil {
				confirmed.CommentsCount = n
			}
			return confirmed, nil
		})
}

// settledPost copies the confirmed post at key, or staged when none is
// confirmed. A write sets only the fields it owns on the copy, so edits of
// other in-flight mutations never reach the confirmed layer through it.
func (s *FeedService) settledPost(key models.Key, staged *models.Post) *models.Post {
	if v, ok := s.cache.Confirmed(key); ok {
		if p, ok := v.(*models.Post); ok {
			return p.Clone()
		}
	}
	return staged.Clone()
}

// CreatePost publishes a post authored by the viewer.
func (s *FeedService) CreatePost(ctx context.Context, req models.CreatePostRequest) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := s.check(req); err != nil {
		return coordinator.Result{}, err
	}
	now := s.now().UTC()
	post := &models.Post{
		ID:        uuid.NewString(),
		UserID:    me,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.co.Mutate(ctx, models.KeyOf(post),
		func(models.Entity) models.Entity { return post },
		func(ctx context.Context) (models.Entity, error) {
			return s.posts.CreatePost(ctx, post)
		}), nil
}

// DeletePost removes one of the viewer's own posts.
func (s *FeedService) DeletePost(ctx context.Context, postID string) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	p, ok := s.Post(postID)
	if !ok {
		return coordinator.Result{}, ErrNotLoaded
	}
	if p.UserID != me {
		return coordinator.Result{}, ErrForbidden
	}
	return s.co.Mutate(ctx, models.KeyOf(p),
		func(models.Entity) models.Entity { return nil },
		func(ctx context.Context) (models.Entity, error) {
			if err := s.posts.DeletePost(ctx, postID); err != nil && !errors.Is(err, rowstore.ErrNotFound) {
				return nil, err
			}
			return nil, nil
		}), nil
}
