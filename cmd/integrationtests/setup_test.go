package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auction "auction-house/internal/auctionService"
	bidding "auction-house/internal/biddingService"
	"auction-house/internal/catalog"
	"auction-house/internal/fanout"
	"auction-house/internal/identity"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/internal/server"
	"auction-house/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// SetupTestRouterWithProducts initializes the router on in-memory stores seeded with products and users.
func SetupTestRouterWithProducts(products ...models.Product) *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()

	cat := catalog.NewMemoryCatalog()
	for _, p := range products {
		cat.AddProduct(p)
	}
	users := identity.NewMemoryDirectory()
	users.AddUser(models.User{UserID: "user1", Handle: "alice"})
	users.AddUser(models.User{UserID: "user2", Handle: "bobby"})

	hub := fanout.NewHub(16)
	return server.SetupRouter(server.Services{
		Bidding:  bidding.NewBiddingService(repo, cat, users, hub),
		Auctions: auction.NewAuctionService(repo, cat, users, hub),
		Events:   hub,
	})
}

// SingleProduct returns a product with one unit in stock
func SingleProduct(id string) models.Product {
	return models.Product{
		ProductID:  id,
		Title:      "title " + id,
		StartPrice: decimal.NewFromInt(100000),
		StockCount: 1,
		Status:     models.ProductAvailable,
	}
}

// ScheduleBody builds a valid schedule request one hour out with a 30 minute window
func ScheduleBody(productID string) helpers.ScheduleAuctionRequest {
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	return helpers.ScheduleAuctionRequest{
		ProductID:      productID,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(30 * time.Minute),
		StartPrice:     decimal.NewFromInt(100000),
		BuyItNowPrice:  decimal.NewNullDecimal(decimal.NewFromInt(500000)),
		BidUnit:        decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		Actor:          "admin",
	}
}

// StartLiveAuction schedules an auction for productID and starts it immediately
func StartLiveAuction(t *testing.T, router *gin.Engine, productID string) string {
	t.Helper()
	resp, w := ExecuteRequestAndParse(t, router, "POST", "/auctions", ScheduleBody(productID))
	require.Equal(t, 201, w.Code, w.Body.String())
	auctionID := resp["auction_id"].(string)

	_, w = ExecuteRequestAndParse(t, router, "POST", "/auctions/"+auctionID+"/start", helpers.StartAuctionRequest{Immediate: true, Actor: "admin"})
	require.Equal(t, 200, w.Code, w.Body.String())
	return auctionID
}

// Bid builds a bid request for amount
func Bid(auctionID, bidderID string, amount int64) helpers.PlaceBidRequest {
	return helpers.PlaceBidRequest{AuctionID: auctionID, BidderID: bidderID, Amount: decimal.NewFromInt(amount)}
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code == 201 {
			resp = resp["data"].(map[string]any)
		}
	}

	return resp, w
}
