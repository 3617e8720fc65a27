package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"auction-house/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		reqBody, _ = json.Marshal(v)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// Test RecordBidHandler
func TestRecordBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/bids", handler.RecordBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedReason string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			requestBody: `{"auction_id":"a1","bidder_id":"user1","amount":"101000"}`,
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, req models.BidRequest) (models.Bid, error) {
						require.Equal(t, "a1", req.AuctionID)
						require.Equal(t, "user1", req.BidderID)
						require.True(t, req.Amount.Equal(decimal.NewFromInt(101000)))
						return models.Bid{
							BidID:     uuid.NewString(),
							AuctionID: "a1",
							BidderID:  "user1",
							Amount:    req.Amount,
							Status:    models.BidWinning,
							CreatedAt: now,
						}, nil
					})
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				bidID := data["bid_id"].(string)
				_, parseErr := uuid.Parse(bidID)
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "a1", data["auction_id"])
				require.Equal(t, "user1", data["bidder_id"])
				require.Equal(t, "101000", data["amount"])
				require.Equal(t, "WINNING", data["status"])
				require.Equal(t, now.Format(time.RFC3339), data["created_at"])
			},
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
			expectedReason: helpers.ReasonInvalidPayload,
		},
		{
			name:           "missing_bidder",
			requestBody:    helpers.PlaceBidRequest{AuctionID: "a1", Amount: decimal.NewFromInt(100)},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
			expectedReason: helpers.ReasonInvalidPayload,
		},
		{
			name:        "bid_too_low",
			requestBody: helpers.PlaceBidRequest{AuctionID: "a2", BidderID: "user2", Amount: decimal.NewFromInt(80)},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), gomock.Any()).
					Return(models.Bid{}, fmt.Errorf("service: %w - current highest bid is 100", biddingerrors.ErrTooLow))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "bid amount too low",
			expectedReason: "BID_TOO_LOW",
		},
		{
			name:        "unit_mismatch",
			requestBody: helpers.PlaceBidRequest{AuctionID: "a3", BidderID: "user2", Amount: decimal.NewFromInt(100500)},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), gomock.Any()).
					Return(models.Bid{}, biddingerrors.ErrUnitMismatch)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "bid unit",
			expectedReason: "BID_UNIT_MISMATCH",
		},
		{
			name:        "auction_not_found",
			requestBody: helpers.PlaceBidRequest{AuctionID: "nope", BidderID: "user2", Amount: decimal.NewFromInt(100)},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), gomock.Any()).
					Return(models.Bid{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
			expectedReason: "AUCTION_NOT_FOUND",
		},
		{
			name:        "lock_unavailable",
			requestBody: helpers.PlaceBidRequest{AuctionID: "a4", BidderID: "user2", Amount: decimal.NewFromInt(100)},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), gomock.Any()).
					Return(models.Bid{}, fmt.Errorf("%w: deadlock detected", biddingerrors.ErrLockUnavailable))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "retry shortly",
			expectedReason: "LOCK_UNAVAILABLE",
		},
		{
			name:        "service_error_generic",
			requestBody: helpers.PlaceBidRequest{AuctionID: "a5", BidderID: "user3", Amount: decimal.NewFromInt(120)},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), gomock.Any()).
					Return(models.Bid{}, errors.New("DB connection failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
			expectedReason: helpers.ReasonInternal,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w := performRequest(router, http.MethodPost, "/bids", tc.requestBody)
			require.Equal(t, tc.expectedStatus, w.Code)

			resp := decodeResponse(t, w)
			require.Contains(t, resp["message"], tc.expectedMsg)
			if tc.expectedReason != "" {
				require.Equal(t, tc.expectedReason, resp["reason"])
			}
			if tc.validateData != nil {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Test BuyItNowHandler
func TestBuyItNowHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions/:auction_id/buy-now", handler.BuyItNowHandler)

	t.Run("success", func(t *testing.T) {
		mockService.EXPECT().
			BuyItNow(gomock.Any(), "a1", "alice").
			Return(models.Bid{BidID: "b1", AuctionID: "a1", BidderID: "alice", Amount: decimal.NewFromInt(500), Status: models.BidWon, IsBuyItNow: true}, nil)

		w := performRequest(router, http.MethodPost, "/auctions/a1/buy-now", helpers.BuyItNowRequest{BuyerID: "alice"})
		require.Equal(t, http.StatusCreated, w.Code)
		data := decodeResponse(t, w)["data"].(map[string]any)
		require.Equal(t, "WON", data["status"])
		require.Equal(t, true, data["is_buy_it_now"])
	})

	t.Run("unavailable", func(t *testing.T) {
		mockService.EXPECT().
			BuyItNow(gomock.Any(), "a2", "alice").
			Return(models.Bid{}, biddingerrors.ErrBuyItNowUnavailable)

		w := performRequest(router, http.MethodPost, "/auctions/a2/buy-now", helpers.BuyItNowRequest{BuyerID: "alice"})
		require.Equal(t, http.StatusConflict, w.Code)
		require.Equal(t, "BUY_IT_NOW_UNAVAILABLE", decodeResponse(t, w)["reason"])
	})

	t.Run("missing_buyer", func(t *testing.T) {
		w := performRequest(router, http.MethodPost, "/auctions/a3/buy-now", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// Test GetAuctionStatusHandler
func TestGetAuctionStatusHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id", handler.GetAuctionStatusHandler)

	t.Run("success", func(t *testing.T) {
		mockService.EXPECT().
			GetAuctionStatus(gomock.Any(), "a1").
			Return(models.AuctionSnapshot{
				AuctionID:         "a1",
				Status:            models.AuctionInProgress,
				StartPrice:        decimal.NewFromInt(100),
				CurrentHighestBid: decimal.NewNullDecimal(decimal.NewFromInt(150)),
				TotalBidders:      2,
				TotalBids:         3,
				WinnerHandle:      "a***e",
				RemainingSeconds:  42,
			}, nil)

		w := performRequest(router, http.MethodGet, "/auctions/a1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w)["data"].(map[string]any)
		require.Equal(t, "IN_PROGRESS", data["status"])
		require.Equal(t, "150", data["current_highest_bid"])
		require.Equal(t, "a***e", data["winner_handle"])
		require.Equal(t, 42.0, data["remaining_seconds"])
	})

	t.Run("not_found", func(t *testing.T) {
		mockService.EXPECT().
			GetAuctionStatus(gomock.Any(), "missing").
			Return(models.AuctionSnapshot{}, biddingerrors.ErrAuctionNotFound)

		w := performRequest(router, http.MethodGet, "/auctions/missing", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

// Test GetBidsByAuctionHandler
func TestGetBidsByAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id/bids", handler.GetBidsByAuctionHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedCount  int
	}{
		{
			name:      "success_multiple_bids",
			auctionID: "a1",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "a1").
					Return([]models.Bid{
						{BidID: uuid.NewString(), AuctionID: "a1", BidderID: "user1", Amount: decimal.NewFromInt(100), Status: models.BidOutbid, CreatedAt: now},
						{BidID: uuid.NewString(), AuctionID: "a1", BidderID: "user2", Amount: decimal.NewFromInt(150), Status: models.BidWinning, CreatedAt: now},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:      "no_bids",
			auctionID: "a2",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "a2").Return([]models.Bid{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:      "auction_not_found",
			auctionID: "a3",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "a3").Return(nil, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:      "service_error_generic",
			auctionID: "a4",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "a4").Return(nil, errors.New("DB connection failed"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w := performRequest(router, http.MethodGet, "/auctions/"+tc.auctionID+"/bids", nil)
			require.Equal(t, tc.expectedStatus, w.Code)
			if w.Code != http.StatusOK {
				return
			}

			dataBytes, _ := json.Marshal(decodeResponse(t, w)["data"])
			var data []helpers.BidResponse
			require.NoError(t, json.Unmarshal(dataBytes, &data))
			require.Len(t, data, tc.expectedCount)
		})
	}
}

// Test GetWinningBidHandler
func TestGetWinningBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id/winning", handler.GetWinningBidHandler)

	t.Run("success", func(t *testing.T) {
		mockService.EXPECT().
			GetWinningBid(gomock.Any(), "a1").
			Return(models.Bid{BidID: "b1", AuctionID: "a1", BidderID: "user1", Amount: decimal.RequireFromString("1000000000000"), Status: models.BidWinning}, nil)

		w := performRequest(router, http.MethodGet, "/auctions/a1/winning", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w)["data"].(map[string]any)
		require.Equal(t, "1000000000000", data["amount"])
	})

	t.Run("no_winning_bid", func(t *testing.T) {
		mockService.EXPECT().
			GetWinningBid(gomock.Any(), "a2").
			Return(models.Bid{}, fmt.Errorf("get winning bid for auction a2: %w", biddingerrors.ErrNoBids))

		w := performRequest(router, http.MethodGet, "/auctions/a2/winning", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, helpers.ReasonNoBids, decodeResponse(t, w)["reason"])
	})
}
