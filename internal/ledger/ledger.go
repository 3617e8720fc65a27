// Package ledger holds the ordered, append-mostly collection of bids placed
// against one auction and derives its winning line.
package ledger

import (
	"auction-house/internal/models"
)

// Ledger is the bid collection of a single auction in commit order.
// It is not safe for concurrent use; callers hold the auction lock.
type Ledger struct {
	bids []models.Bid
}

// New wraps bids, which must already be in commit order
func New(bids []models.Bid) *Ledger {
	return &Ledger{bids: append([]models.Bid(nil), bids...)}
}

// Bids returns a copy of the ledger in commit order
func (l *Ledger) Bids() []models.Bid {
	return append([]models.Bid(nil), l.bids...)
}

// Len returns the number of bids ever placed
func (l *Ledger) Len() int {
	return len(l.bids)
}

// Winning returns the bid currently holding the winning line
func (l *Ledger) Winning() (models.Bid, bool) {
	for i := len(l.bids) - 1; i >= 0; i-- {
		if l.bids[i].Status == models.BidWinning {
			return l.bids[i], true
		}
	}
	return models.Bid{}, false
}

// Leader returns the highest ACTIVE or WINNING bid, earliest first on ties
func (l *Ledger) Leader() (models.Bid, bool) {
	var (
		leader models.Bid
		found  bool
	)
	for _, b := range l.bids {
		if b.Status != models.BidActive && b.Status != models.BidWinning {
			continue
		}
		if !found || b.Amount.GreaterThan(leader.Amount) ||
			(b.Amount.Equal(leader.Amount) && b.CreatedAt.Before(leader.CreatedAt)) {
			leader = b
			found = true
		}
	}
	return leader, found
}

// DistinctBidders counts the identities that have placed at least one bid
func (l *Ledger) DistinctBidders() int {
	seen := make(map[string]struct{}, len(l.bids))
	for _, b := range l.bids {
		seen[b.BidderID] = struct{}{}
	}
	return len(seen)
}

// Place appends bid as the new WINNING bid and flips the previous winner to
// OUTBID. The previous winner is returned when one existed.
func (l *Ledger) Place(bid models.Bid) (models.Bid, bool) {
	prev, hadPrev := l.Winning()
	if hadPrev {
		l.setStatus(prev.BidID, models.BidOutbid)
		prev.Status = models.BidOutbid
	}
	bid.Status = models.BidWinning
	l.bids = append(l.bids, bid)
	return prev, hadPrev
}

// Append records bid as given without touching any other bid
func (l *Ledger) Append(bid models.Bid) {
	l.bids = append(l.bids, bid)
}

// Replace overwrites the stored bid with the same id. It reports false when
// the id is unknown.
func (l *Ledger) Replace(bid models.Bid) bool {
	for i := range l.bids {
		if l.bids[i].BidID == bid.BidID {
			l.bids[i] = bid
			return true
		}
	}
	return false
}

func (l *Ledger) setStatus(bidID string, status models.BidStatus) {
	for i := range l.bids {
		if l.bids[i].BidID == bidID {
			l.bids[i].Status = status
			return
		}
	}
}
