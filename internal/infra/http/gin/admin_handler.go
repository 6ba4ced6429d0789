package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"communityeats/internal/app/dto"
	listingsservice "communityeats/internal/app/services/listings"
	domainlistings "communityeats/internal/domain/listings"
)

// AdminHTTP exposes the moderation endpoints.
type AdminHTTP interface {
	Verify(c *gin.Context)
	ListListings(c *gin.Context)
	SetListingStatus(c *gin.Context)
	DeleteListing(c *gin.Context)
}

type AdminHandler struct {
	Listings *listingsservice.Service
	Resolve  dto.ImageURLResolver
	Logger   *slog.Logger
}

// Verify lets the moderation frontend probe whether the caller holds admin
// privilege before rendering elevated views.
func (h AdminHandler) Verify(c *gin.Context) {
	principal, ok := requireAdmin(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"admin":   true,
		"subject": principal.ID,
		"email":   principal.Email,
	})
}

// ListListings returns listings across all statuses for moderation review.
func (h AdminHandler) ListListings(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}
	params := domainlistings.ListParams{
		Limit:    parsePositiveInt(c.Query("limit"), 0),
		BeforeMs: parseInt64(c.Query("cursor_created_at_ms"), 0),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := domainlistings.ParseStatus(raw)
		if err != nil {
			respondError(c, h.Logger, err)
			return
		}
		params.Status = status
	}
	if owner := strings.TrimSpace(c.Query("owner_id")); owner != "" {
		params.Owner = domainlistings.OwnerID(owner)
	}

	results, err := h.Listings.List(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := dto.ListingList{Items: make([]dto.Listing, 0, len(results))}
	for _, listing := range results {
		// Moderators see the owner view of every listing.
		resp.Items = append(resp.Items, dto.MapListing(listing, string(listing.Owner), h.Resolve))
	}
	if len(results) > 0 {
		resp.NextCursor = results[len(results)-1].CreatedAt.UnixMilli()
	}
	c.JSON(http.StatusOK, resp)
}

// SetListingStatus transitions any listing's status, bypassing the owner gate.
func (h AdminHandler) SetListingStatus(c *gin.Context) {
	principal, ok := requireAdmin(c)
	if !ok {
		return
	}
	var req struct {
		ListingID string `json:"listing_id"`
		Status    string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.ListingID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id is required"})
		return
	}
	listing, err := h.Listings.SetStatus(c.Request.Context(), req.ListingID, principal.ID, true, req.Status)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing, string(listing.Owner), h.Resolve))
}

// DeleteListing removes a listing on the owner's behalf.
func (h AdminHandler) DeleteListing(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}
	listing, err := h.Listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if err := h.Listings.Delete(c.Request.Context(), string(listing.ID), string(listing.Owner)); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

var _ AdminHTTP = (*AdminHandler)(nil)
