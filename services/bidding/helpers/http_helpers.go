package helpers

import (
	"errors"
	"net/http"
	"strings"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

// Reasons for failures that carry no domain error
const (
	ReasonInvalidPayload = "INVALID_PAYLOAD"
	ReasonInternal       = "INTERNAL"
	ReasonNoBids         = "NO_BIDS"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	utils.JSONError(c, http.StatusBadRequest, ReasonInvalidPayload, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code, reason and message
func MapErrorToHTTP(err error) (int, string, string) {
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return http.StatusNotFound, ReasonNoBids, "no bids found for auction"
	}
	e, ok := biddingerrors.From(err)
	if !ok {
		return http.StatusInternalServerError, ReasonInternal, "internal server error"
	}
	switch e.Kind {
	case biddingerrors.KindValidation:
		return http.StatusBadRequest, e.Reason, e.Message
	case biddingerrors.KindConflict:
		return http.StatusConflict, e.Reason, e.Message
	case biddingerrors.KindNotFound:
		return http.StatusNotFound, e.Reason, e.Message
	case biddingerrors.KindTransient:
		return http.StatusServiceUnavailable, e.Reason, e.Message
	default:
		return http.StatusInternalServerError, ReasonInternal, "internal server error"
	}
}

// RespondError writes the mapped error and logs it at a level matching its status
func RespondError(c *gin.Context, handlerName, message string, err error, fields map[string]any) {
	status, reason, msg := MapErrorToHTTP(err)
	utils.JSONError(c, status, reason, msg)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["reason"] = reason
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": "+message, fields)
		return
	}
	utils.Warn(handlerName+": "+message, fields)
}

// ParseStatuses reads a comma-separated status filter; empty means every non-terminal status
func ParseStatuses(raw string) []models.AuctionStatus {
	if strings.TrimSpace(raw) == "" {
		return []models.AuctionStatus{models.AuctionScheduled, models.AuctionReady, models.AuctionInProgress}
	}
	var out []models.AuctionStatus
	for _, part := range strings.Split(raw, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			out = append(out, models.AuctionStatus(s))
		}
	}
	return out
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
