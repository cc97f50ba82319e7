package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/internal/view"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed, post, like and comment requests
type FeedHandler struct {
	feed *services.FeedService
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feed *services.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.POST("/posts", h.CreatePost)
	g.DELETE("/posts/:post_id", h.DeletePost)
	g.POST("/posts/:post_id/like", h.ToggleLike)
	g.GET("/posts/:post_id/comments", h.GetComments)
	g.POST("/posts/:post_id/comments", h.CreateComment)
}

// EnrichedPost is a post with its author card
type EnrichedPost struct {
	*models.Post
	Author models.UserCompact `json:"author"`
}

// EnrichedComment is a comment with its author card
type EnrichedComment struct {
	*models.Comment
	Author models.UserCompact `json:"author"`
}

func (h *FeedHandler) enrich(p *models.Post) EnrichedPost {
	author, _ := h.feed.Author(p.UserID)
	return EnrichedPost{Post: p, Author: author}
}

// GetFeed loads the feed and returns one page of it, newest first.
// With ?cached=true the cache is served without a refetch.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	posts := h.feed.Posts()
	if c.QueryParam("cached") != "true" {
		var err error
		posts, err = h.feed.LoadFeed(c.Request().Context())
		if err != nil {
			return listError(c, err, "posts")
		}
	}

	page, limit := pageParams(c, 10)
	paged, meta := paginate(posts, page, limit)
	enriched := make([]EnrichedPost, len(paged))
	for i, p := range paged {
		enriched[i] = h.enrich(p)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": enriched},
		"meta":    meta,
	})
}

// CreatePost publishes a post
func (h *FeedHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	res, err := h.feed.CreatePost(c.Request().Context(), req)
	if err != nil {
		return serviceError(err)
	}
	if !res.OK() {
		return mutationResult(c, res, http.StatusCreated, nil)
	}
	return mutationResult(c, res, http.StatusCreated, h.enrich(res.Value.(*models.Post)))
}

// DeletePost deletes one of the user's posts
func (h *FeedHandler) DeletePost(c echo.Context) error {
	res, err := h.feed.DeletePost(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusNoContent, nil)
}

// ToggleLike likes or unlikes a post. By default it answers once the remote
// write resolves; with ?wait=false it answers 202 with the optimistic post.
func (h *FeedHandler) ToggleLike(c echo.Context) error {
	postID := c.Param("post_id")
	// the write finishes even if the client goes away
	results, err := h.feed.ToggleLike(context.WithoutCancel(c.Request().Context()), postID)
	if err != nil {
		return serviceError(err)
	}

	if c.QueryParam("wait") == "false" {
		p, ok := h.feed.Post(postID)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return c.JSON(http.StatusAccepted, echo.Map{"success": true, "data": h.enrich(p)})
	}

	mount := view.NewMount("like " + postID)
	defer mount.Unmount()
	var res coordinator.Result
	if err := view.Await(c.Request().Context(), mount, results, func(r coordinator.Result) { res = r }); err != nil {
		// client gone; the cache settles on its own
		return nil
	}
	if !res.OK() {
		return mutationResult(c, res, http.StatusOK, nil)
	}
	p, ok := h.feed.Post(postID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return mutationResult(c, res, http.StatusOK, h.enrich(p))
}

// GetComments returns the comments of a post, oldest first
func (h *FeedHandler) GetComments(c echo.Context) error {
	comments, err := h.feed.LoadComments(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return listError(c, err, "comments")
	}
	enriched := make([]EnrichedComment, len(comments))
	for i, cm := range comments {
		author, _ := h.feed.Author(cm.UserID)
		enriched[i] = EnrichedComment{Comment: cm, Author: author}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"comments": enriched}})
}

// CreateComment adds a comment to a post
func (h *FeedHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	res, err := h.feed.AddComment(c.Request().Context(), c.Param("post_id"), req)
	if err != nil {
		return serviceError(err)
	}
	if !res.OK() {
		return mutationResult(c, res, http.StatusCreated, nil)
	}
	cm := res.Value.(*models.Comment)
	author, _ := h.feed.Author(cm.UserID)
	return mutationResult(c, res, http.StatusCreated, EnrichedComment{Comment: cm, Author: author})
}
