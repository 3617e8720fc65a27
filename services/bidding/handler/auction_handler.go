package handler

import (
	"context"
	"net/http"

	"auction-house/internal/models"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	ScheduleAuction(ctx context.Context, req models.ScheduleRequest) (models.Auction, error)
	StartAuction(ctx context.Context, auctionID string, req models.StartRequest) (models.Auction, error)
	EndAuction(ctx context.Context, auctionID string, req models.EndRequest) (models.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// ScheduleAuctionHandler handles POST /auctions
func (h *AuctionHandler) ScheduleAuctionHandler(c *gin.Context) {
	var req helpers.ScheduleAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "ScheduleAuctionHandler", err)
		return
	}

	auction, err := h.service.ScheduleAuction(c.Request.Context(), req.ToModel())
	if err != nil {
		helpers.RespondError(c, "ScheduleAuctionHandler", "failed to schedule auction", err, map[string]any{
			"product_id": req.ProductID,
			"actor":      req.Actor,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction scheduled successfully")
	helpers.LogSuccess("ScheduleAuctionHandler", "auction scheduled successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"product_id": auction.ProductID,
		"actor":      req.Actor,
	})
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.StartAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "StartAuctionHandler", err)
		return
	}

	auction, err := h.service.StartAuction(c.Request.Context(), auctionID, req.ToModel())
	if err != nil {
		helpers.RespondError(c, "StartAuctionHandler", "failed to start auction", err, map[string]any{
			"auction_id": auctionID,
			"immediate":  req.Immediate,
			"actor":      req.Actor,
		})
		return
	}

	message := "auction rescheduled successfully"
	if req.Immediate {
		message = "auction started successfully"
	}
	utils.JSONResponse(c, http.StatusOK, auction, message)
	helpers.LogSuccess("StartAuctionHandler", message, map[string]any{
		"auction_id": auctionID,
		"status":     string(auction.Status),
		"actor":      req.Actor,
	})
}

// EndAuctionHandler handles POST /auctions/:auction_id/end
func (h *AuctionHandler) EndAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.EndAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "EndAuctionHandler", err)
		return
	}

	auction, err := h.service.EndAuction(c.Request.Context(), auctionID, req.ToModel())
	if err != nil {
		helpers.RespondError(c, "EndAuctionHandler", "failed to end auction", err, map[string]any{
			"auction_id": auctionID,
			"cancel":     req.Cancel,
			"actor":      req.Actor,
		})
		return
	}

	message := "auction completed successfully"
	if req.Cancel {
		message = "auction cancelled successfully"
	}
	utils.JSONResponse(c, http.StatusOK, auction, message)
	helpers.LogSuccess("EndAuctionHandler", message, map[string]any{
		"auction_id": auctionID,
		"status":     string(auction.Status),
		"actor":      req.Actor,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id/details
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", "error retrieving auction", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions?status=IN_PROGRESS,READY
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	statuses := helpers.ParseStatuses(c.Query("status"))
	auctions, err := h.service.ListAuctions(c.Request.Context(), statuses)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", "error listing auctions", err, nil)
		return
	}

	if auctions == nil {
		auctions = []models.Auction{}
	}
	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}
