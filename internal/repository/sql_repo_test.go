package repository

import (
	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "auctions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestDialect_Rebind(t *testing.T) {
	t.Parallel()

	q := `SELECT id FROM bids WHERE auction_id = ? AND status IN (?, ?)`
	require.Equal(t, q, sqliteDialect.rebind(q))
	require.Equal(t, `SELECT id FROM bids WHERE auction_id = $1 AND status IN ($2, $3)`, postgresDialect.rebind(q))
}

func TestOpen_RequiresLocation(t *testing.T) {
	t.Parallel()

	_, err := OpenSQLite(context.Background(), "  ")
	require.Error(t, err)
	_, err = OpenPostgres(context.Background(), "")
	require.Error(t, err)
}

func TestSQLRepo_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestSQLite(t)
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)

	a := newAuction("a1", "p1", models.AuctionScheduled, start)
	a.BidUnit = decimal.NewNullDecimal(decimal.NewFromInt(10))
	a.BuyItNowPrice = decimal.NewNullDecimal(decimal.RequireFromString("999.50"))
	require.NoError(t, repo.CreateAuction(ctx, a))
	require.Error(t, repo.CreateAuction(ctx, a), "duplicate primary key")

	got, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, models.AuctionScheduled, got.Status)
	require.True(t, got.ScheduledStart.Equal(start))
	require.True(t, got.StartPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, got.BidUnit.Valid)
	require.True(t, got.BidUnit.Decimal.Equal(decimal.NewFromInt(10)))
	require.True(t, got.BuyItNowPrice.Decimal.Equal(decimal.RequireFromString("999.5")))
	require.False(t, got.CurrentHighestBid.Valid)
	require.False(t, got.MaxBid.Valid)
	require.Nil(t, got.ActualStart)

	open, err := repo.FindOpenAuctionByProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "a1", open.AuctionID)

	_, err = repo.GetAuction(ctx, "missing")
	require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound))

	list, err := repo.ListAuctionsByStatus(ctx, []models.AuctionStatus{models.AuctionScheduled})
	require.NoError(t, err)
	require.Len(t, list, 1)

	empty, err := repo.ListAuctionsByStatus(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSQLRepo_LockedSection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestSQLite(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.CreateAuction(ctx, newAuction("a1", "p1", models.AuctionInProgress, now)))

	require.NoError(t, placeBid(ctx, repo, newBid("b1", "a1", "alice", 150, now)))
	require.NoError(t, placeBid(ctx, repo, newBid("b2", "a1", "bob", 200, now.Add(time.Second))))
	require.True(t, errors.Is(placeBid(ctx, repo, newBid("b3", "a1", "carol", 200, now)), biddingerrors.ErrTooLow))

	bids, err := repo.GetBidsByAuction(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "b1", bids[0].BidID)
	require.Equal(t, models.BidOutbid, bids[0].Status)
	require.Equal(t, models.BidWinning, bids[1].Status)

	bidders, err := repo.CountDistinctBidders(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 2, bidders)

	a, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 2, a.TotalBids)
	require.True(t, a.CurrentHighestBid.Decimal.Equal(decimal.NewFromInt(200)))

	t.Run("rollback_on_error", func(t *testing.T) {
		err := repo.WithAuctionLock(ctx, "a1", func(tx AuctionTx, auction models.Auction) error {
			require.NoError(t, tx.PlaceWinningBid(newBid("b9", "a1", "dave", 500, now)))
			return errors.New("abort")
		})
		require.Error(t, err)

		winning, err := repo.GetWinningBid(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "b2", winning.BidID)
	})

	t.Run("update_bid", func(t *testing.T) {
		cancelledAt := now.Add(time.Minute)
		err := repo.WithAuctionLock(ctx, "a1", func(tx AuctionTx, auction models.Auction) error {
			winning, err := tx.GetWinningBid()
			require.NoError(t, err)
			winning.Status = models.BidCancelled
			winning.CancelledAt = &cancelledAt
			winning.CancelReason = "fraud"
			if err := tx.UpdateBid(winning); err != nil {
				return err
			}
			return tx.UpdateBid(newBid("missing", "a1", "x", 1, now))
		})
		require.Error(t, err, "unknown bid must abort the section")

		winning, err := repo.GetWinningBid(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, models.BidWinning, winning.Status)
	})

	t.Run("missing_auction", func(t *testing.T) {
		err := repo.WithAuctionLock(ctx, "nope", func(tx AuctionTx, auction models.Auction) error { return nil })
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound))
	})
}

func TestSQLRepo_ConcurrentBids(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestSQLite(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.CreateAuction(ctx, newAuction("a1", "p1", models.AuctionInProgress, now)))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = placeBid(ctx, repo, newBid(fmt.Sprintf("bid-%d", i), "a1", fmt.Sprintf("user-%d", i), int64(100+i), now))
		}()
	}
	wg.Wait()

	bids, err := repo.GetBidsByAuction(ctx, "a1")
	require.NoError(t, err)

	winners := 0
	for i, b := range bids {
		if b.Status == models.BidWinning {
			winners++
		}
		if i > 0 {
			require.True(t, b.Amount.GreaterThan(bids[i-1].Amount))
		}
	}
	require.Equal(t, 1, winners)
}
