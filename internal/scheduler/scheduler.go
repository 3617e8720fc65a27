// Package scheduler moves auctions across time boundaries. Each scheduled
// start gets a one-shot timer; a periodic sweep catches starts missed while
// the process was down and ends every auction whose scheduled end has passed.
package scheduler

import (
	"auction-house/internal/metrics"
	"auction-house/internal/models"
	"auction-house/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultSweepInterval is used when no interval is configured
const DefaultSweepInterval = 60 * time.Second

// Transitioner applies due transitions. Both methods re-check status and
// time inside the auction lock and report whether anything changed.
type Transitioner interface {
	StartDue(ctx context.Context, auctionID string) (bool, error)
	EndDue(ctx context.Context, auctionID string) (bool, error)
}

// AuctionLister finds auctions by lifecycle status
type AuctionLister interface {
	ListAuctionsByStatus(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error)
}

var startable = []models.AuctionStatus{models.AuctionScheduled, models.AuctionReady}

type pendingStart struct {
	at    time.Time
	timer *time.Timer
}

// Scheduler owns the start timers and the sweep loops
type Scheduler struct {
	lister   AuctionLister
	auctions Transitioner
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingStart // key: auctionID
	ctx     context.Context
}

// New creates a scheduler. A non-positive interval falls back to DefaultSweepInterval.
func New(lister AuctionLister, auctions Transitioner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{
		lister:   lister,
		auctions: auctions,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		pending:  make(map[string]*pendingStart),
		ctx:      context.Background(),
	}
}

// ScheduleStart arms the start timer of an auction, replacing any earlier one
func (s *Scheduler) ScheduleStart(auctionID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[auctionID]; ok {
		prev.timer.Stop()
	}
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	entry := &pendingStart{at: at}
	s.pending[auctionID] = entry
	entry.timer = time.AfterFunc(delay, func() { s.fire(auctionID, entry) })

	utils.Debug("scheduler: start timer armed", map[string]any{
		"auction_id": auctionID,
		"at":         at,
	})
}

// CancelScheduledStart disarms the start timer of an auction, if any
func (s *Scheduler) CancelScheduledStart(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.pending[auctionID]; ok {
		entry.timer.Stop()
		delete(s.pending, auctionID)
	}
}

// Pending returns the number of armed start timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// NextStart returns when the auction's start timer fires
func (s *Scheduler) NextStart(auctionID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[auctionID]
	if !ok {
		return time.Time{}, false
	}
	return entry.at, true
}

func (s *Scheduler) fire(auctionID string, entry *pendingStart) {
	s.mu.Lock()
	if s.pending[auctionID] != entry {
		// replaced or cancelled after the timer had already fired
		s.mu.Unlock()
		return
	}
	delete(s.pending, auctionID)
	ctx := s.ctx
	s.mu.Unlock()

	started, err := s.auctions.StartDue(ctx, auctionID)
	if err != nil {
		utils.Error("scheduler: start timer failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}
	if !started {
		utils.Debug("scheduler: start timer fired for auction that is no longer startable", map[string]any{
			"auction_id": auctionID,
		})
	}
}

// SweepMissedStarts starts every SCHEDULED or READY auction whose start has passed
func (s *Scheduler) SweepMissedStarts(ctx context.Context) (int, error) {
	n, err := s.sweep(ctx, startable, func(a models.Auction, now time.Time) bool {
		return !now.Before(a.ScheduledStart)
	}, s.auctions.StartDue)
	metrics.RecordSweep("start", n, err)
	return n, err
}

// SweepDueEnds completes every IN_PROGRESS auction whose scheduled end has passed
func (s *Scheduler) SweepDueEnds(ctx context.Context) (int, error) {
	n, err := s.sweep(ctx, []models.AuctionStatus{models.AuctionInProgress}, func(a models.Auction, now time.Time) bool {
		return !now.Before(a.ScheduledEnd)
	}, s.auctions.EndDue)
	metrics.RecordSweep("end", n, err)
	return n, err
}

// sweep applies transition to each listed auction that is due. One auction
// failing does not stop the others; all failures are joined.
func (s *Scheduler) sweep(ctx context.Context, statuses []models.AuctionStatus, due func(models.Auction, time.Time) bool,
	transition func(context.Context, string) (bool, error)) (int, error) {
	auctions, err := s.lister.ListAuctionsByStatus(ctx, statuses)
	if err != nil {
		return 0, fmt.Errorf("scheduler: failed to list auctions: %w", err)
	}

	now := s.now()
	transitioned := 0
	var errs []error
	for _, a := range auctions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !due(a, now) {
			continue
		}
		ok, err := transition(ctx, a.AuctionID)
		if err != nil {
			utils.Error("scheduler: sweep transition failed", map[string]any{
				"auction_id": a.AuctionID,
				"status":     string(a.Status),
				"error":      err.Error(),
			})
			errs = append(errs, fmt.Errorf("auction %s: %w", a.AuctionID, err))
			continue
		}
		if ok {
			transitioned++
		}
	}
	return transitioned, errors.Join(errs...)
}

// Restore re-arms start timers for every not-yet-started auction and starts
// the ones whose time already passed. Call it once at boot.
func (s *Scheduler) Restore(ctx context.Context) error {
	auctions, err := s.lister.ListAuctionsByStatus(ctx, startable)
	if err != nil {
		return fmt.Errorf("scheduler: failed to list auctions: %w", err)
	}

	now := s.now()
	armed := 0
	for _, a := range auctions {
		if a.ScheduledStart.After(now) {
			s.ScheduleStart(a.AuctionID, a.ScheduledStart)
			armed++
		}
	}

	started, err := s.SweepMissedStarts(ctx)
	utils.Info("scheduler: restored start timers", map[string]any{
		"armed":   armed,
		"started": started,
	})
	return err
}

// Run sweeps every interval until ctx is done, then disarms all timers
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	defer s.stopAll()

	utils.Info("scheduler: running", map[string]any{"interval": s.interval.String()})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(gctx, "start", s.SweepMissedStarts) })
	g.Go(func() error { return s.loop(gctx, "end", s.SweepDueEnds) })
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, kind string, sweep func(context.Context) (int, error)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := sweep(ctx)
			if err != nil && ctx.Err() == nil {
				utils.Warn("scheduler: sweep finished with errors", map[string]any{
					"kind":  kind,
					"error": err.Error(),
				})
			}
			if n > 0 {
				utils.Info("scheduler: sweep transitioned auctions", map[string]any{
					"kind":  kind,
					"count": n,
				})
			}
		}
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, id)
	}
}
