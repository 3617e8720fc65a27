package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle phase of an auction
type AuctionStatus string

const (
	AuctionScheduled  AuctionStatus = "SCHEDULED"
	AuctionReady      AuctionStatus = "READY"
	AuctionInProgress AuctionStatus = "IN_PROGRESS"
	AuctionCompleted  AuctionStatus = "COMPLETED"
	AuctionCancelled  AuctionStatus = "CANCELLED"
	AuctionFailed     AuctionStatus = "FAILED"
)

// IsTerminal reports whether no further transition may leave this status
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionCompleted || s == AuctionCancelled || s == AuctionFailed
}

// BidStatus is the standing of a bid within its auction's ledger
type BidStatus string

const (
	BidActive    BidStatus = "ACTIVE"
	BidWinning   BidStatus = "WINNING"
	BidOutbid    BidStatus = "OUTBID"
	BidWon       BidStatus = "WON"
	BidCancelled BidStatus = "CANCELLED"
)

// ProductStatus is the catalog-side state of an auctioned product
type ProductStatus string

const (
	ProductAvailable        ProductStatus = "AVAILABLE"
	ProductAuctionScheduled ProductStatus = "AUCTION_SCHEDULED"
	ProductInAuction        ProductStatus = "IN_AUCTION"
	ProductAuctionCompleted ProductStatus = "AUCTION_COMPLETED"
)

// End reasons recorded on the auction aggregate
const (
	EndReasonScheduled = "SCHEDULED_END"
	EndReasonManual    = "MANUAL_END"
	EndReasonBuyItNow  = "BUY_IT_NOW"
)

// User represents a participant in the auction
type User struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
}

// Product is the catalog view the auction core consumes
type Product struct {
	ProductID  string          `json:"product_id"`
	Title      string          `json:"title"`
	StartPrice decimal.Decimal `json:"start_price"`
	StockCount int             `json:"stock_count"`
	Status     ProductStatus   `json:"status"`
}

// Auction is the aggregate tracking one auction's lifecycle, schedule and current price
type Auction struct {
	AuctionID         string              `json:"auction_id"`
	ProductID         string              `json:"product_id"`
	Status            AuctionStatus       `json:"status"`
	ScheduledStart    time.Time           `json:"scheduled_start"`
	ScheduledEnd      time.Time           `json:"scheduled_end"`
	ActualStart       *time.Time          `json:"actual_start,omitempty"`
	ActualEnd         *time.Time          `json:"actual_end,omitempty"`
	StartPrice        decimal.Decimal     `json:"start_price"`
	CurrentHighestBid decimal.NullDecimal `json:"current_highest_bid"`
	BuyItNowPrice     decimal.NullDecimal `json:"buy_it_now_price"`
	BidUnit           decimal.NullDecimal `json:"bid_unit"`
	MinimumBid        decimal.NullDecimal `json:"minimum_bid"`
	MaxBid            decimal.NullDecimal `json:"max_bid"`
	TotalBidders      int                 `json:"total_bidders"`
	TotalBids         int                 `json:"total_bids"`
	CreatedBy         string              `json:"created_by"`
	StartedBy         string              `json:"started_by,omitempty"`
	EndedBy           string              `json:"ended_by,omitempty"`
	EndReason         string              `json:"end_reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Bid represents a user's bid on an auction
type Bid struct {
	BidID            string              `json:"bid_id"`
	AuctionID        string              `json:"auction_id"`
	BidderID         string              `json:"bidder_id"`
	Amount           decimal.Decimal     `json:"amount"`
	Status           BidStatus           `json:"status"`
	IsAutoBid        bool                `json:"is_auto_bid"`
	MaxAutoBidAmount decimal.NullDecimal `json:"max_auto_bid_amount"`
	IsBuyItNow       bool                `json:"is_buy_it_now"`
	CreatedAt        time.Time           `json:"created_at"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason     string              `json:"cancel_reason,omitempty"`
}

// AuctionSnapshot is the read-only status view served to observers
type AuctionSnapshot struct {
	AuctionID         string              `json:"auction_id"`
	Status            AuctionStatus       `json:"status"`
	StartPrice        decimal.Decimal     `json:"start_price"`
	CurrentHighestBid decimal.NullDecimal `json:"current_highest_bid"`
	TotalBidders      int                 `json:"total_bidders"`
	TotalBids         int                 `json:"total_bids"`
	WinnerHandle      string              `json:"winner_handle,omitempty"`
	ScheduledStart    time.Time           `json:"scheduled_start"`
	ScheduledEnd      time.Time           `json:"scheduled_end"`
	ActualStart       *time.Time          `json:"actual_start,omitempty"`
	ActualEnd         *time.Time          `json:"actual_end,omitempty"`
	RemainingSeconds  int64               `json:"remaining_seconds"`
	ObservedAt        time.Time           `json:"observed_at"`
}

// BidRequest carries a bid submission into the engine
type BidRequest struct {
	AuctionID        string
	BidderID         string
	Amount           decimal.Decimal
	IsAutoBid        bool
	MaxAutoBidAmount decimal.NullDecimal
}

// ScheduleRequest carries the parameters of a new auction
type ScheduleRequest struct {
	ProductID      string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	StartPrice     decimal.Decimal
	BuyItNowPrice  decimal.NullDecimal
	BidUnit        decimal.NullDecimal
	MinimumBid     decimal.NullDecimal
	MaxBid         decimal.NullDecimal
	Actor          string
}

// StartRequest either starts an auction now or moves it to new explicit times
type StartRequest struct {
	Immediate      bool
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Actor          string
}

// EndRequest either completes or cancels an in-progress auction
type EndRequest struct {
	Cancel bool
	Reason string
	Actor  string
}
