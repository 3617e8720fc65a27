package handler

import (
	"context"
	"net/http"

	"auction-house/internal/models"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

type BiddingServiceInterface interface {
	SubmitBid(ctx context.Context, req models.BidRequest) (models.Bid, error)
	BuyItNow(ctx context.Context, auctionID, buyerID string) (models.Bid, error)
	GetAuctionStatus(ctx context.Context, auctionID string) (models.AuctionSnapshot, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	bid, err := h.service.SubmitBid(c.Request.Context(), req.ToModel())
	if err != nil {
		helpers.RespondError(c, "RecordBidHandler", "failed to record bid", err, map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
}

// BuyItNowHandler handles POST /auctions/:auction_id/buy-now
func (h *BiddingHandler) BuyItNowHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.BuyItNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "BuyItNowHandler", err)
		return
	}

	bid, err := h.service.BuyItNow(c.Request.Context(), auctionID, req.BuyerID)
	if err != nil {
		helpers.RespondError(c, "BuyItNowHandler", "buy-it-now failed", err, map[string]any{
			"auction_id": auctionID,
			"buyer_id":   req.BuyerID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "item bought successfully")
	helpers.LogSuccess("BuyItNowHandler", "item bought successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"buyer_id":   req.BuyerID,
		"amount":     bid.Amount.String(),
	})
}

// GetAuctionStatusHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionStatusHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	snap, err := h.service.GetAuctionStatus(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionStatusHandler", "error retrieving auction status", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "auction status retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByAuctionHandler", "error retrieving bids", err, map[string]any{"auction_id": auctionID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.NewBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// GetWinningBidHandler handles GET /auctions/:auction_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetWinningBidHandler", "winning bid error", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
}
