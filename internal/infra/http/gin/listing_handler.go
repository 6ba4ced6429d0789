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

// ListingHTTP exposes the listing directory endpoints.
type ListingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	SetStatus(c *gin.Context)
	RegisterInterest(c *gin.Context)
	WithdrawInterest(c *gin.Context)
	ShortLink(c *gin.Context)
}

type ListingHandler struct {
	Listings *listingsservice.Service
	Resolve  dto.ImageURLResolver
	Logger   *slog.Logger
}

type locationRequest struct {
	Country  string  `json:"country"`
	State    string  `json:"state"`
	Suburb   string  `json:"suburb"`
	Postcode string  `json:"postcode"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	PlaceID  string  `json:"place_id"`
}

func (r locationRequest) toDomain() domainlistings.Location {
	return domainlistings.Location{
		Country:  r.Country,
		State:    r.State,
		Suburb:   r.Suburb,
		Postcode: r.Postcode,
		Lat:      r.Lat,
		Lon:      r.Lon,
		PlaceID:  r.PlaceID,
	}
}

func (h ListingHandler) Create(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		Title         string          `json:"title"`
		Description   string          `json:"description"`
		ExchangeType  string          `json:"exchange_type"`
		Location      locationRequest `json:"location"`
		ImageKeys     []string        `json:"image_keys"`
		ThumbnailKey  string          `json:"thumbnail_key"`
		TermsAccepted bool            `json:"terms_accepted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	listing, err := h.Listings.Create(c.Request.Context(), listingsservice.CreateParams{
		Owner:         principal.ID,
		Title:         req.Title,
		Description:   req.Description,
		ExchangeType:  req.ExchangeType,
		Location:      req.Location.toDomain(),
		ImageKeys:     req.ImageKeys,
		ThumbnailKey:  req.ThumbnailKey,
		TermsAccepted: req.TermsAccepted,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapListing(listing, principal.ID, h.Resolve))
}

func (h ListingHandler) Get(c *gin.Context) {
	requesterID := ""
	if p, ok := currentPrincipal(c); ok {
		requesterID = p.ID
	}
	listing, err := h.Listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing, requesterID, h.Resolve))
}

func (h ListingHandler) List(c *gin.Context) {
	requesterID := ""
	if p, ok := currentPrincipal(c); ok {
		requesterID = p.ID
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
	} else {
		// Unfiltered browsing never surfaces removed listings.
		params.Status = domainlistings.StatusAvailable
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
		resp.Items = append(resp.Items, dto.MapListing(listing, requesterID, h.Resolve))
	}
	if len(results) > 0 {
		resp.NextCursor = results[len(results)-1].CreatedAt.UnixMilli()
	}
	c.JSON(http.StatusOK, resp)
}

func (h ListingHandler) Update(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		Title        *string          `json:"title"`
		Description  *string          `json:"description"`
		ExchangeType *string          `json:"exchange_type"`
		Location     *locationRequest `json:"location"`
		ImageKeys    []string         `json:"image_keys"`
		ThumbnailKey *string          `json:"thumbnail_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	params := listingsservice.UpdateParams{
		Title:        req.Title,
		Description:  req.Description,
		ExchangeType: req.ExchangeType,
		ImageKeys:    req.ImageKeys,
		ThumbnailKey: req.ThumbnailKey,
	}
	if req.Location != nil {
		loc := req.Location.toDomain()
		params.Location = &loc
	}

	listing, err := h.Listings.Update(c.Request.Context(), c.Param("id"), principal.ID, params)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing, principal.ID, h.Resolve))
}

func (h ListingHandler) Delete(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	if err := h.Listings.Delete(c.Request.Context(), c.Param("id"), principal.ID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetStatus lets the owner mark a listing claimed, available or removed.
func (h ListingHandler) SetStatus(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	listing, err := h.Listings.SetStatus(c.Request.Context(), c.Param("id"), principal.ID, false, req.Status)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing, principal.ID, h.Resolve))
}

func (h ListingHandler) RegisterInterest(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listing, err := h.Listings.RegisterInterest(c.Request.Context(), c.Param("id"), principal.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing, principal.ID, h.Resolve))
}

func (h ListingHandler) WithdrawInterest(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listing, err := h.Listings.WithdrawInterest(c.Request.Context(), c.Param("id"), principal.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing, principal.ID, h.Resolve))
}

// ShortLink redirects a raw listing id to its canonical slug URL.
func (h ListingHandler) ShortLink(c *gin.Context) {
	slug := h.Listings.ResolveShortLink(c.Request.Context(), c.Param("id"))
	c.Redirect(http.StatusFound, "/listings/"+slug)
}

var _ ListingHTTP = (*ListingHandler)(nil)
