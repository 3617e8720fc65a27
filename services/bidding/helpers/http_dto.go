package helpers

import (
	"time"

	"auction-house/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	AuctionID        string              `json:"auction_id" binding:"required"`
	BidderID         string              `json:"bidder_id" binding:"required"`
	Amount           decimal.Decimal     `json:"amount"`
	IsAutoBid        bool                `json:"is_auto_bid"`
	MaxAutoBidAmount decimal.NullDecimal `json:"max_auto_bid_amount"`
}

type BuyItNowRequest struct {
	BuyerID string `json:"buyer_id" binding:"required"`
}

type ScheduleAuctionRequest struct {
	ProductID      string              `json:"product_id" binding:"required"`
	ScheduledStart time.Time           `json:"scheduled_start"`
	ScheduledEnd   time.Time           `json:"scheduled_end"`
	StartPrice     decimal.Decimal     `json:"start_price"`
	BuyItNowPrice  decimal.NullDecimal `json:"buy_it_now_price"`
	BidUnit        decimal.NullDecimal `json:"bid_unit"`
	MinimumBid     decimal.NullDecimal `json:"minimum_bid"`
	MaxBid         decimal.NullDecimal `json:"max_bid"`
	Actor          string              `json:"actor" binding:"required"`
}

type StartAuctionRequest struct {
	Immediate      bool      `json:"immediate"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Actor          string    `json:"actor" binding:"required"`
}

type EndAuctionRequest struct {
	Cancel bool   `json:"cancel"`
	Reason string `json:"reason"`
	Actor  string `json:"actor" binding:"required"`
}

type BidResponse struct {
	BidID      string          `json:"bid_id"`
	AuctionID  string          `json:"auction_id"`
	BidderID   string          `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	IsAutoBid  bool            `json:"is_auto_bid"`
	IsBuyItNow bool            `json:"is_buy_it_now"`
	CreatedAt  string          `json:"created_at"`
}

// NewBidResponse renders a bid for the API
func NewBidResponse(bid models.Bid) BidResponse {
	return BidResponse{
		BidID:      bid.BidID,
		AuctionID:  bid.AuctionID,
		BidderID:   bid.BidderID,
		Amount:     bid.Amount,
		Status:     string(bid.Status),
		IsAutoBid:  bid.IsAutoBid,
		IsBuyItNow: bid.IsBuyItNow,
		CreatedAt:  bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (r PlaceBidRequest) ToModel() models.BidRequest {
	return models.BidRequest{
		AuctionID:        r.AuctionID,
		BidderID:         r.BidderID,
		Amount:           r.Amount,
		IsAutoBid:        r.IsAutoBid,
		MaxAutoBidAmount: r.MaxAutoBidAmount,
	}
}

func (r ScheduleAuctionRequest) ToModel() models.ScheduleRequest {
	return models.ScheduleRequest{
		ProductID:      r.ProductID,
		ScheduledStart: r.ScheduledStart,
		ScheduledEnd:   r.ScheduledEnd,
		StartPrice:     r.StartPrice,
		BuyItNowPrice:  r.BuyItNowPrice,
		BidUnit:        r.BidUnit,
		MinimumBid:     r.MinimumBid,
		MaxBid:         r.MaxBid,
		Actor:          r.Actor,
	}
}

func (r StartAuctionRequest) ToModel() models.StartRequest {
	return models.StartRequest{
		Immediate:      r.Immediate,
		ScheduledStart: r.ScheduledStart,
		ScheduledEnd:   r.ScheduledEnd,
		Actor:          r.Actor,
	}
}

func (r EndAuctionRequest) ToModel() models.EndRequest {
	return models.EndRequest{
		Cancel: r.Cancel,
		Reason: r.Reason,
		Actor:  r.Actor,
	}
}
