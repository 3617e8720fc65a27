// Package countdown pushes periodic status snapshots for running auctions
// and a one-time ENDING_SOON warning as each one nears its scheduled end.
package countdown

import (
	"auction-house/internal/fanout"
	"auction-house/internal/models"
	"auction-house/utils"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Snapshotter builds the read-only view of an auction
type Snapshotter interface {
	GetAuctionStatus(ctx context.Context, auctionID string) (models.AuctionSnapshot, error)
}

// AuctionLister finds auctions by lifecycle status
type AuctionLister interface {
	ListAuctionsByStatus(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error)
}

// Config controls the publisher's cadence
type Config struct {
	Interval            time.Duration // countdown snapshots
	EndingSoonInterval  time.Duration // ending-soon checks
	EndingSoonThreshold time.Duration // warn when this close to the end
}

// DefaultConfig matches the documented defaults
func DefaultConfig() Config {
	return Config{
		Interval:            time.Second,
		EndingSoonInterval:  10 * time.Second,
		EndingSoonThreshold: 60 * time.Second,
	}
}

type endingSoonNotice struct {
	AuctionID        string    `json:"auction_id"`
	ScheduledEnd     time.Time `json:"scheduled_end"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

// Publisher emits COUNTDOWN and ENDING_SOON events
type Publisher struct {
	lister   AuctionLister
	snaps    Snapshotter
	notifier fanout.Broadcaster
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	warned map[string]struct{} // auctions already sent ENDING_SOON
}

// New creates a publisher; zero config fields take their defaults
func New(lister AuctionLister, snaps Snapshotter, notifier fanout.Broadcaster, cfg Config) *Publisher {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.EndingSoonInterval <= 0 {
		cfg.EndingSoonInterval = def.EndingSoonInterval
	}
	if cfg.EndingSoonThreshold <= 0 {
		cfg.EndingSoonThreshold = def.EndingSoonThreshold
	}
	return &Publisher{
		lister:   lister,
		snaps:    snaps,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		warned:   make(map[string]struct{}),
	}
}

// PublishCountdowns sends one COUNTDOWN snapshot per running auction
func (p *Publisher) PublishCountdowns(ctx context.Context) (int, error) {
	running, err := p.running(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, a := range running {
		snap, err := p.snaps.GetAuctionStatus(ctx, a.AuctionID)
		if err != nil {
			utils.Debug("countdown: snapshot failed", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		// ended between listing and snapshot
		if snap.Status != models.AuctionInProgress {
			continue
		}
		p.notifier.Publish(fanout.AuctionTopic(a.AuctionID), fanout.NewEvent(fanout.EventCountdown, a.AuctionID, snap))
		sent++
	}
	return sent, nil
}

// CheckEndingSoon warns once per auction when its remaining time drops to the threshold
func (p *Publisher) CheckEndingSoon(ctx context.Context) (int, error) {
	running, err := p.running(ctx)
	if err != nil {
		return 0, err
	}

	now := p.now()
	live := make(map[string]struct{}, len(running))
	var due []endingSoonNotice

	p.mu.Lock()
	for _, a := range running {
		live[a.AuctionID] = struct{}{}
		remaining := a.ScheduledEnd.Sub(now)
		if remaining <= 0 || remaining > p.cfg.EndingSoonThreshold {
			continue
		}
		if _, ok := p.warned[a.AuctionID]; ok {
			continue
		}
		p.warned[a.AuctionID] = struct{}{}
		due = append(due, endingSoonNotice{
			AuctionID:        a.AuctionID,
			ScheduledEnd:     a.ScheduledEnd,
			RemainingSeconds: int64(remaining / time.Second),
		})
	}
	for id := range p.warned {
		if _, ok := live[id]; !ok {
			delete(p.warned, id)
		}
	}
	p.mu.Unlock()

	for _, n := range due {
		event := fanout.NewEvent(fanout.EventEndingSoon, n.AuctionID, n)
		p.notifier.Publish(fanout.AuctionTopic(n.AuctionID), event)
		p.notifier.Publish(fanout.GlobalTopic, event)
	}
	return len(due), nil
}

// Run publishes on both cadences until ctx is done
func (p *Publisher) Run(ctx context.Context) error {
	utils.Info("countdown: running", map[string]any{
		"interval":             p.cfg.Interval.String(),
		"ending_soon_interval": p.cfg.EndingSoonInterval.String(),
		"ending_soon_at":       p.cfg.EndingSoonThreshold.String(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tick(gctx, p.cfg.Interval, "countdown", p.PublishCountdowns) })
	g.Go(func() error { return tick(gctx, p.cfg.EndingSoonInterval, "ending_soon", p.CheckEndingSoon) })
	return g.Wait()
}

func (p *Publisher) running(ctx context.Context) ([]models.Auction, error) {
	running, err := p.lister.ListAuctionsByStatus(ctx, []models.AuctionStatus{models.AuctionInProgress})
	if err != nil {
		return nil, fmt.Errorf("countdown: failed to list running auctions: %w", err)
	}
	return running, nil
}

func tick(ctx context.Context, every time.Duration, kind string, fn func(context.Context) (int, error)) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fn(ctx); err != nil && ctx.Err() == nil {
				utils.Warn("countdown: publish failed", map[string]any{
					"kind":  kind,
					"error": err.Error(),
				})
			}
		}
	}
}
