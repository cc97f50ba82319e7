package handlers

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// SearchHandler handles the search page
type SearchHandler struct {
	search *services.SearchService
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// RegisterSearchRoutes registers search routes
func (h *SearchHandler) RegisterSearchRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
}

// Search finds posts and people matching ?q
func (h *SearchHandler) Search(c echo.Context) error {
	res, err := h.search.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": res})
}
