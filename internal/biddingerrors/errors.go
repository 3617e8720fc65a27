package biddingerrors

import "errors"

// Kind classifies an error for callers deciding whether to resubmit
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a rejection with a stable machine-readable reason and a human-readable message
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a typed sentinel
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// From returns the typed error wrapped anywhere in err's chain
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Repository-level errors
var (
	ErrNoBids = errors.New("no bids found for auction")
)

// Validation errors
var (
	ErrInvalidBid      = New(KindValidation, "INVALID_BID", "invalid bid details")
	ErrUnitMismatch    = New(KindValidation, "BID_UNIT_MISMATCH", "bid amount is not a multiple of the bid unit")
	ErrInvalidAutoBid  = New(KindValidation, "INVALID_AUTO_BID", "auto-bid requires a maximum amount not below the bid")
	ErrInvalidSchedule = New(KindValidation, "INVALID_SCHEDULE", "invalid auction schedule")
	ErrInvalidPricing  = New(KindValidation, "INVALID_PRICING", "invalid auction pricing")
	ErrReasonRequired  = New(KindValidation, "REASON_REQUIRED", "a reason is required to cancel an auction")
)

// Conflict errors
var (
	ErrTooLow                  = New(KindConflict, "BID_TOO_LOW", "bid amount too low")
	ErrAuctionNotActive        = New(KindConflict, "AUCTION_NOT_ACTIVE", "auction is not in progress")
	ErrInvalidTransition       = New(KindConflict, "INVALID_TRANSITION", "auction cannot make this transition from its current status")
	ErrProductAlreadyScheduled = New(KindConflict, "PRODUCT_ALREADY_SCHEDULED", "product already has an open auction")
	ErrBuyItNowUnavailable     = New(KindConflict, "BUY_IT_NOW_UNAVAILABLE", "buy-it-now is not available for this auction")
)

// Not-found errors
var (
	ErrAuctionNotFound = New(KindNotFound, "AUCTION_NOT_FOUND", "auction not found")
	ErrProductNotFound = New(KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	ErrUserNotFound    = New(KindNotFound, "USER_NOT_FOUND", "user not found")
)

// Transient infrastructure errors
var (
	ErrLockUnavailable = New(KindTransient, "LOCK_UNAVAILABLE", "auction is temporarily unavailable, retry shortly")
)
