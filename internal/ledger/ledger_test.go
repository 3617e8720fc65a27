package ledger

import (
	"testing"
	"time"

	"auction-house/internal/models"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func bid(id, bidder string, amount int64, status models.BidStatus, at time.Time) models.Bid {
	return models.Bid{
		BidID:     id,
		AuctionID: "auction1",
		BidderID:  bidder,
		Amount:    decimal.NewFromInt(amount),
		Status:    status,
		CreatedAt: at,
	}
}

func TestPlace_SupersedesPreviousWinner(t *testing.T) {
	now := time.Now().UTC()
	l := New(nil)

	_, hadPrev := l.Place(bid("b1", "alice", 100, models.BidActive, now))
	check.False(t, hadPrev)

	prev, hadPrev := l.Place(bid("b2", "bob", 200, models.BidActive, now.Add(time.Second)))
	check.True(t, hadPrev)
	check.Equal(t, "b1", prev.BidID)
	check.Equal(t, models.BidOutbid, prev.Status)

	winning, ok := l.Winning()
	check.True(t, ok)
	check.Equal(t, "b2", winning.BidID)

	winners := 0
	for _, b := range l.Bids() {
		if b.Status == models.BidWinning {
			winners++
		}
	}
	check.Equal(t, 1, winners)
	check.Equal(t, 2, l.Len())
}

func TestWinning_EmptyLedger(t *testing.T) {
	_, ok := New(nil).Winning()
	check.False(t, ok)
}

func TestLeader(t *testing.T) {
	now := time.Now().UTC()
	l := New([]models.Bid{
		bid("b1", "alice", 300, models.BidOutbid, now),
		bid("b2", "bob", 250, models.BidActive, now.Add(time.Second)),
		bid("b3", "carol", 250, models.BidWinning, now.Add(2*time.Second)),
		bid("b4", "dave", 500, models.BidCancelled, now.Add(3*time.Second)),
	})

	leader, ok := l.Leader()
	check.True(t, ok)
	// equal amounts resolve to the earliest commit
	check.Equal(t, "b2", leader.BidID)
}

func TestLeader_NoEligibleBids(t *testing.T) {
	now := time.Now().UTC()
	l := New([]models.Bid{bid("b1", "alice", 300, models.BidOutbid, now)})
	_, ok := l.Leader()
	check.False(t, ok)
}

func TestDistinctBidders(t *testing.T) {
	now := time.Now().UTC()
	l := New(nil)
	l.Place(bid("b1", "alice", 100, models.BidActive, now))
	l.Place(bid("b2", "bob", 110, models.BidActive, now))
	l.Place(bid("b3", "alice", 120, models.BidActive, now))
	check.Equal(t, 2, l.DistinctBidders())
}

func TestReplace(t *testing.T) {
	now := time.Now().UTC()
	l := New([]models.Bid{bid("b1", "alice", 100, models.BidWinning, now)})

	updated := bid("b1", "alice", 100, models.BidWon, now)
	check.True(t, l.Replace(updated))
	check.False(t, l.Replace(bid("missing", "x", 1, models.BidWon, now)))
	check.Equal(t, models.BidWon, l.Bids()[0].Status)
}

func TestNew_CopiesInput(t *testing.T) {
	now := time.Now().UTC()
	in := []models.Bid{bid("b1", "alice", 100, models.BidWinning, now)}
	l := New(in)
	l.Place(bid("b2", "bob", 200, models.BidActive, now))
	check.Equal(t, models.BidWinning, in[0].Status)
}
