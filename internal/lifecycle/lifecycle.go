// Package lifecycle is the auction state machine. Every status change of an
// auction goes through one of the guarded entry points below; nothing else
// assigns Auction.Status.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/ledger"
	"auction-house/internal/models"

	"github.com/shopspring/decimal"
)

// MinimumWindow is the shortest allowed gap between scheduled start and end
const MinimumWindow = 10 * time.Minute

var transitions = map[models.AuctionStatus][]models.AuctionStatus{
	models.AuctionScheduled:  {models.AuctionReady, models.AuctionInProgress},
	models.AuctionReady:      {models.AuctionReady, models.AuctionInProgress},
	models.AuctionInProgress: {models.AuctionCompleted, models.AuctionCancelled},
}

// CanTransition reports whether from→to is an edge of the state machine
func CanTransition(from, to models.AuctionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanStart reports whether the auction may enter IN_PROGRESS
func CanStart(a models.Auction) bool {
	return a.Status == models.AuctionScheduled || a.Status == models.AuctionReady
}

// CanEnd reports whether the auction may complete or be cancelled
func CanEnd(a models.Auction) bool {
	return a.Status == models.AuctionInProgress
}

// ValidateWindow checks a proposed schedule
func ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("lifecycle: %w - start and end are required", biddingerrors.ErrInvalidSchedule)
	}
	if !end.After(start) {
		return fmt.Errorf("lifecycle: %w - end must be after start", biddingerrors.ErrInvalidSchedule)
	}
	if end.Sub(start) < MinimumWindow {
		return fmt.Errorf("lifecycle: %w - auction must run at least %s", biddingerrors.ErrInvalidSchedule, MinimumWindow)
	}
	return nil
}

// Reschedule moves a not-yet-started auction to new times and marks it READY
func Reschedule(a *models.Auction, start, end time.Time, now time.Time) error {
	if !CanStart(*a) {
		return fmt.Errorf("lifecycle: %w - cannot reschedule auction in status %s", biddingerrors.ErrInvalidTransition, a.Status)
	}
	if err := ValidateWindow(start, end); err != nil {
		return err
	}
	if start.Before(now) {
		return fmt.Errorf("lifecycle: %w - start is in the past", biddingerrors.ErrInvalidSchedule)
	}
	a.ScheduledStart = start.UTC()
	a.ScheduledEnd = end.UTC()
	a.UpdatedAt = now
	return moveTo(a, models.AuctionReady)
}

// Start opens bidding: stamps the actual start, seeds the displayed price
// with the start price and records who started it.
func Start(a *models.Auction, actor string, now time.Time) error {
	if !CanStart(*a) {
		return fmt.Errorf("lifecycle: %w - cannot start auction in status %s", biddingerrors.ErrInvalidTransition, a.Status)
	}
	if err := moveTo(a, models.AuctionInProgress); err != nil {
		return err
	}
	started := now
	a.ActualStart = &started
	a.CurrentHighestBid = decimal.NewNullDecimal(a.StartPrice)
	a.StartedBy = actor
	a.UpdatedAt = now
	return nil
}

// Complete ends the auction normally. The leading ACTIVE/WINNING bid, if any,
// is promoted to WON and returned so the caller can persist it.
func Complete(a *models.Auction, bids []models.Bid, actor, reason string, now time.Time) (*models.Bid, error) {
	if !CanEnd(*a) {
		return nil, fmt.Errorf("lifecycle: %w - cannot end auction in status %s", biddingerrors.ErrInvalidTransition, a.Status)
	}

	var winner *models.Bid
	if leader, ok := ledger.New(bids).Leader(); ok {
		leader.Status = models.BidWon
		winner = &leader
	}

	if err := finish(a, models.AuctionCompleted, actor, reason, now); err != nil {
		return nil, err
	}
	return winner, nil
}

// CompleteWithWinner ends the auction around a bid already promoted to WON,
// as buy-it-now does. No winner resolution runs.
func CompleteWithWinner(a *models.Auction, winner models.Bid, actor, reason string, now time.Time) error {
	if !CanEnd(*a) {
		return fmt.Errorf("lifecycle: %w - cannot end auction in status %s", biddingerrors.ErrInvalidTransition, a.Status)
	}
	if winner.Status != models.BidWon || winner.AuctionID != a.AuctionID {
		return fmt.Errorf("lifecycle: winner %s is not a WON bid of auction %s", winner.BidID, a.AuctionID)
	}
	return finish(a, models.AuctionCompleted, actor, reason, now)
}

// Cancel aborts an in-progress auction. Winner resolution does not run; the
// bid holding the winning line, if any, is flipped to CANCELLED and returned.
func Cancel(a *models.Auction, bids []models.Bid, actor, reason string, now time.Time) (*models.Bid, error) {
	if !CanEnd(*a) {
		return nil, fmt.Errorf("lifecycle: %w - cannot cancel auction in status %s", biddingerrors.ErrInvalidTransition, a.Status)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("lifecycle: %w", biddingerrors.ErrReasonRequired)
	}

	var voided *models.Bid
	if winning, ok := ledger.New(bids).Winning(); ok {
		cancelledAt := now
		winning.Status = models.BidCancelled
		winning.CancelledAt = &cancelledAt
		winning.CancelReason = reason
		voided = &winning
	}

	if err := finish(a, models.AuctionCancelled, actor, reason, now); err != nil {
		return nil, err
	}
	return voided, nil
}

func finish(a *models.Auction, to models.AuctionStatus, actor, reason string, now time.Time) error {
	if err := moveTo(a, to); err != nil {
		return err
	}
	ended := now
	a.ActualEnd = &ended
	a.EndReason = reason
	a.EndedBy = actor
	a.UpdatedAt = now
	return nil
}

func moveTo(a *models.Auction, to models.AuctionStatus) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("lifecycle: %w - %s to %s", biddingerrors.ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	return nil
}
