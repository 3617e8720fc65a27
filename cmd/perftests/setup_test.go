package perftests

import (
	"context"
	"fmt"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/catalog"
	"auction-house/internal/fanout"
	"auction-house/internal/identity"
	"auction-house/internal/models"
	repository "auction-house/internal/repository"

	"github.com/shopspring/decimal"
)

const startPrice = 100

// setupRepo creates the repository and bidding service with numAuctions live auctions
func setupRepo(numAuctions int) (*repository.MemoryRepo, *bidding.BiddingService) {
	repo := repository.NewMemoryRepo()
	products := catalog.NewMemoryCatalog()
	svc := bidding.NewBiddingService(repo, products, identity.NewMemoryDirectory(), fanout.NewHub(1))

	now := time.Now().UTC()
	for i := 0; i < numAuctions; i++ {
		productID := fmt.Sprintf("product_%d", i)
		products.AddProduct(models.Product{
			ProductID:  productID,
			Title:      fmt.Sprintf("title_%d", i),
			StartPrice: decimal.NewFromInt(startPrice),
			StockCount: 1,
			Status:     models.ProductInAuction,
		})
		started := now
		repo.AddAuction(models.Auction{
			AuctionID:         auctionID(i),
			ProductID:         productID,
			Status:            models.AuctionInProgress,
			ScheduledStart:    now,
			ScheduledEnd:      now.Add(time.Hour),
			ActualStart:       &started,
			StartPrice:        decimal.NewFromInt(startPrice),
			CurrentHighestBid: decimal.NewNullDecimal(decimal.NewFromInt(startPrice)),
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return repo, svc
}

func auctionID(i int) string {
	return fmt.Sprintf("auction_%d", i)
}

func placeBid(svc *bidding.BiddingService, auctionID, bidderID string, amount int64) error {
	_, err := svc.SubmitBid(context.Background(), models.BidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
	})
	return err
}
