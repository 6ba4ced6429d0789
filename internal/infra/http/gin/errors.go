package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	chatservice "communityeats/internal/app/services/chat"
	listingsservice "communityeats/internal/app/services/listings"
	domainchat "communityeats/internal/domain/chat"
	domainlistings "communityeats/internal/domain/listings"
	"communityeats/internal/infra/auth"
)

// respondError maps domain and service sentinels to HTTP status codes. All
// error bodies use the same {"error": message} shape. Unknown errors are
// logged and answered with a generic 500 so internals never leak.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenRequired), errors.Is(err, auth.ErrTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	case errors.Is(err, auth.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	case errors.Is(err, domainlistings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
	case errors.Is(err, domainchat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, listingsservice.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the listing owner"})
	case errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
	case errors.Is(err, chatservice.ErrInterestRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "interest must be registered before messaging"})
	case errors.Is(err, chatservice.ErrTargetRequired),
		errors.Is(err, chatservice.ErrSelfConversation),
		errors.Is(err, domainchat.ErrParticipantsEqual),
		errors.Is(err, domainchat.ErrListingRequired),
		errors.Is(err, domainchat.ErrBodyRequired),
		errors.Is(err, domainchat.ErrBodyTooLong),
		errors.Is(err, domainlistings.ErrOwnerInterest),
		errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrDescriptionRequired),
		errors.Is(err, domainlistings.ErrInvalidExchangeType),
		errors.Is(err, domainlistings.ErrInvalidStatus),
		errors.Is(err, domainlistings.ErrTermsNotAccepted),
		errors.Is(err, domainlistings.ErrThumbnailNotMember):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	// A listing that predates owner attribution cannot host a conversation;
	// the request is well-formed, the state is not.
	case errors.Is(err, chatservice.ErrListingUnowned):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
