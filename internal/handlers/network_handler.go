package handlers

import (
	"net/http"
	"sort"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NetworkHandler handles people, follow and profile requests
type NetworkHandler struct {
	network *services.NetworkService
	profile *services.ProfileService
}

// NewNetworkHandler creates a new NetworkHandler
func NewNetworkHandler(network *services.NetworkService, profile *services.ProfileService) *NetworkHandler {
	return &NetworkHandler{network: network, profile: profile}
}

// RegisterNetworkRoutes registers network and profile routes
func (h *NetworkHandler) RegisterNetworkRoutes(g *echo.Group) {
	g.GET("/network", h.GetNetwork)
	g.POST("/users/:id/follow", h.ToggleFollow)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/profile", h.UpdateProfile)
	g.POST("/groups", h.CreateGroup)
}

// GetNetwork returns people matching ?q, everyone or only followed users
// with ?following=true
func (h *NetworkHandler) GetNetwork(c echo.Context) error {
	ctx := c.Request().Context()
	following, err := h.network.LoadFollowing(ctx)
	if err != nil {
		return listError(c, err, "people")
	}
	people, err := h.network.LoadPeople(ctx, c.QueryParam("q"), c.QueryParam("following") == "true")
	if err != nil {
		return listError(c, err, "people")
	}

	page, limit := pageParams(c, 20)
	paged, meta := paginate(people, page, limit)
	cards := make([]models.UserCompact, len(paged))
	for i, u := range paged {
		cards[i] = u.ToCompact()
	}
	ids := make([]string, 0, len(following))
	for id := range following {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"people": cards, "following": ids},
		"meta":    meta,
	})
}

// ToggleFollow follows or unfollows a user
func (h *NetworkHandler) ToggleFollow(c echo.Context) error {
	userID := c.Param("id")
	res, err := h.network.ToggleFollow(c.Request().Context(), userID)
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusOK, echo.Map{
		"user_id":   userID,
		"following": h.network.IsFollowing(userID),
	})
}

// GetUser returns a profile page
func (h *NetworkHandler) GetUser(c echo.Context) error {
	p, err := h.profile.LoadProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

// UpdateProfile edits the user's own profile
func (h *NetworkHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	res, err := h.profile.UpdateProfile(c.Request().Context(), req)
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusOK, res.Value)
}

// CreateGroup validates a people group. Groups are not stored.
func (h *NetworkHandler) CreateGroup(c echo.Context) error {
	var g services.Group
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	g, err := h.network.CreateGroup(c.Request().Context(), g)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": g})
}
