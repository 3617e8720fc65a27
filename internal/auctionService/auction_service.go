package auction

import (
	"auction-house/internal/biddingerrors"
	"auction-house/internal/catalog"
	"auction-house/internal/fanout"
	"auction-house/internal/identity"
	"auction-house/internal/lifecycle"
	"auction-house/internal/metrics"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SystemActor is recorded as StartedBy/EndedBy for scheduler-driven transitions
const SystemActor = "system"

// Timers is the scheduler surface used to arm and disarm start timers
type Timers interface {
	ScheduleStart(auctionID string, at time.Time)
	CancelScheduledStart(auctionID string)
}

type noTimers struct{}

func (noTimers) ScheduleStart(string, time.Time) {}
func (noTimers) CancelScheduledStart(string)     {}

// AuctionService drives auctions through their lifecycle. Every transition
// is applied inside the repository's per-auction lock, the same lock bids
// take, so a transition and a bid on one auction never interleave.
type AuctionService struct {
	repo     repository.AuctionDB
	catalog  catalog.Catalog
	users    identity.Directory
	notifier fanout.Broadcaster
	now      func() time.Time

	mu     sync.RWMutex
	timers Timers

	// serializes the open-auction check against creation
	scheduling sync.Mutex
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionDB, products catalog.Catalog, users identity.Directory, notifier fanout.Broadcaster) *AuctionService {
	return &AuctionService{
		repo:     repo,
		catalog:  products,
		users:    users,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		timers:   noTimers{},
	}
}

// UseTimers attaches the scheduler once both sides are constructed
func (s *AuctionService) UseTimers(t Timers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == nil {
		t = noTimers{}
	}
	s.timers = t
}

func (s *AuctionService) timer() Timers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timers
}

// lifecycleNotice is the payload of lifecycle events
type lifecycleNotice struct {
	AuctionID      string               `json:"auction_id"`
	ProductID      string               `json:"product_id"`
	Status         models.AuctionStatus `json:"status"`
	ScheduledStart time.Time            `json:"scheduled_start"`
	ScheduledEnd   time.Time            `json:"scheduled_end"`
	ActualStart    *time.Time           `json:"actual_start,omitempty"`
	ActualEnd      *time.Time           `json:"actual_end,omitempty"`
	StartPrice     decimal.Decimal      `json:"start_price"`
	FinalPrice     decimal.NullDecimal  `json:"final_price"`
	Winner         string               `json:"winner,omitempty"`
	TotalBids      int                  `json:"total_bids"`
	TotalBidders   int                  `json:"total_bidders"`
	EndReason      string               `json:"end_reason,omitempty"`
}

// ScheduleAuction creates a SCHEDULED auction for an available product and arms its start timer
func (s *AuctionService) ScheduleAuction(ctx context.Context, req models.ScheduleRequest) (models.Auction, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing productID", biddingerrors.ErrInvalidSchedule)
	}
	if err := lifecycle.ValidateWindow(req.ScheduledStart, req.ScheduledEnd); err != nil {
		return models.Auction{}, err
	}
	now := s.now()
	if req.ScheduledStart.Before(now) {
		return models.Auction{}, fmt.Errorf("service: %w - start is in the past", biddingerrors.ErrInvalidSchedule)
	}
	if err := validatePricing(req); err != nil {
		return models.Auction{}, err
	}

	s.scheduling.Lock()
	defer s.scheduling.Unlock()

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to look up product %s: %w", req.ProductID, err)
	}
	if product.StockCount < 1 {
		return models.Auction{}, fmt.Errorf("service: %w - product %s is out of stock", biddingerrors.ErrInvalidSchedule, product.ProductID)
	}
	if product.Status != models.ProductAvailable {
		return models.Auction{}, fmt.Errorf("service: %w - product %s is %s", biddingerrors.ErrProductAlreadyScheduled, product.ProductID, product.Status)
	}
	open, err := s.repo.FindOpenAuctionByProduct(ctx, req.ProductID)
	switch {
	case err == nil:
		return models.Auction{}, fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrProductAlreadyScheduled, open.AuctionID, open.Status)
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
	default:
		return models.Auction{}, fmt.Errorf("service: failed to check open auctions: %w", err)
	}

	auction := models.Auction{
		AuctionID:      utils.GenerateID(),
		ProductID:      req.ProductID,
		Status:         models.AuctionScheduled,
		ScheduledStart: req.ScheduledStart.UTC(),
		ScheduledEnd:   req.ScheduledEnd.UTC(),
		StartPrice:     req.StartPrice,
		BuyItNowPrice:  req.BuyItNowPrice,
		BidUnit:        req.BidUnit,
		MinimumBid:     req.MinimumBid,
		MaxBid:         req.MaxBid,
		CreatedBy:      req.Actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction: %w", err)
	}

	s.syncProduct(ctx, auction, models.ProductAuctionScheduled)
	s.timer().ScheduleStart(auction.AuctionID, auction.ScheduledStart)
	metrics.RecordTransition(string(models.AuctionScheduled), "manual")
	utils.Info("auction scheduled", map[string]any{
		"auction_id":      auction.AuctionID,
		"product_id":      auction.ProductID,
		"scheduled_start": auction.ScheduledStart,
		"scheduled_end":   auction.ScheduledEnd,
	})
	s.notifier.Publish(fanout.GlobalTopic, fanout.NewEvent(fanout.EventAuctionScheduled, auction.AuctionID, s.notice(ctx, auction, nil)))
	return auction, nil
}

// StartAuction starts the auction now, or moves it to new explicit times and marks it READY
func (s *AuctionService) StartAuction(ctx context.Context, auctionID string, req models.StartRequest) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID", biddingerrors.ErrInvalidSchedule)
	}
	if !req.Immediate {
		return s.reschedule(ctx, auctionID, req)
	}

	var started models.Auction
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx repository.AuctionTx, auction models.Auction) error {
		if err := lifecycle.Start(&auction, req.Actor, s.now()); err != nil {
			return err
		}
		if err := tx.SaveAuction(auction); err != nil {
			return fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
		}
		started = auction
		return nil
	})
	if err != nil {
		return models.Auction{}, err
	}

	s.timer().CancelScheduledStart(auctionID)
	s.announceStart(ctx, started, "manual")
	return started, nil
}

func (s *AuctionService) reschedule(ctx context.Context, auctionID string, req models.StartRequest) (models.Auction, error) {
	var moved models.Auction
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx repository.AuctionTx, auction models.Auction) error {
		if err := lifecycle.Reschedule(&auction, req.ScheduledStart, req.ScheduledEnd, s.now()); err != nil {
			return err
		}
		if err := tx.SaveAuction(auction); err != nil {
			return fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
		}
		moved = auction
		return nil
	})
	if err != nil {
		return models.Auction{}, err
	}

	s.timer().ScheduleStart(auctionID, moved.ScheduledStart)
	metrics.RecordTransition(string(models.AuctionReady), "manual")
	utils.Info("auction rescheduled", map[string]any{
		"auction_id":      auctionID,
		"scheduled_start": moved.ScheduledStart,
		"scheduled_end":   moved.ScheduledEnd,
		"actor":           req.Actor,
	})
	s.notifier.Publish(fanout.GlobalTopic, fanout.NewEvent(fanout.EventAuctionScheduled, auctionID, s.notice(ctx, moved, nil)))
	return moved, nil
}

// EndAuction completes an in-progress auction with winner resolution, or cancels it
func (s *AuctionService) EndAuction(ctx context.Context, auctionID string, req models.EndRequest) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID", biddingerrors.ErrInvalidSchedule)
	}
	if req.Cancel {
		return s.cancel(ctx, auctionID, req)
	}
	ended, _, err := s.complete(ctx, auctionID, req.Actor, models.EndReasonManual, "manual", nil)
	return ended, err
}

func (s *AuctionService) cancel(ctx context.Context, auctionID string, req models.EndRequest) (models.Auction, error) {
	var (
		cancelled models.Auction
		voided    *models.Bid
	)
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx repository.AuctionTx, auction models.Auction) error {
		bids, err := tx.GetBids()
		if err != nil {
			return fmt.Errorf("service: failed to read bids: %w", err)
		}
		voided, err = lifecycle.Cancel(&auction, bids, req.Actor, req.Reason, s.now())
		if err != nil {
			return err
		}
		if voided != nil {
			if err := tx.UpdateBid(*voided); err != nil {
				return fmt.Errorf("service: failed to void bid %s: %w", voided.BidID, err)
			}
		}
		if err := tx.SaveAuction(auction); err != nil {
			return fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
		}
		cancelled = auction
		return nil
	})
	if err != nil {
		return models.Auction{}, err
	}

	s.syncProduct(ctx, cancelled, models.ProductAvailable)
	metrics.RecordTransition(string(models.AuctionCancelled), "manual")
	utils.Info("auction cancelled", map[string]any{
		"auction_id": auctionID,
		"actor":      req.Actor,
		"reason":     req.Reason,
	})

	event := fanout.NewEvent(fanout.EventAuctionCancelled, auctionID, s.notice(ctx, cancelled, nil))
	s.notifier.Publish(fanout.AuctionTopic(auctionID), event)
	s.notifier.Publish(fanout.GlobalTopic, event)
	if voided != nil {
		s.notifier.PublishToUser(voided.BidderID, event)
	}
	return cancelled, nil
}

// StartDue starts the auction if it is still startable and its scheduled
// start has passed. It reports whether a transition happened.
func (s *AuctionService) StartDue(ctx context.Context, auctionID string) (bool, error) {
	var started models.Auction
	transitioned := false
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx repository.AuctionTx, auction models.Auction) error {
		now := s.now()
		if !lifecycle.CanStart(auction) || now.Before(auction.ScheduledStart) {
			return nil
		}
		if err := lifecycle.Start(&auction, SystemActor, now); err != nil {
			return err
		}
		if err := tx.SaveAuction(auction); err != nil {
			return fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
		}
		started, transitioned = auction, true
		return nil
	})
	if err != nil || !transitioned {
		return false, err
	}

	s.announceStart(ctx, started, "scheduler")
	return true, nil
}

// EndDue completes the auction if it is in progress and its scheduled end
// has passed. It reports whether a transition happened.
func (s *AuctionService) EndDue(ctx context.Context, auctionID string) (bool, error) {
	_, transitioned, err := s.complete(ctx, auctionID, SystemActor, models.EndReasonScheduled, "scheduler", func(a models.Auction, now time.Time) bool {
		return lifecycle.CanEnd(a) && !now.Before(a.ScheduledEnd)
	})
	return transitioned, err
}

// GetAuction returns the full auction aggregate
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID", biddingerrors.ErrInvalidSchedule)
	}
	return s.repo.GetAuction(ctx, auctionID)
}

// ListAuctions returns auctions in the given statuses, earliest start first
func (s *AuctionService) ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error) {
	return s.repo.ListAuctionsByStatus(ctx, statuses)
}

// complete runs winner resolution. A non-nil due is checked inside the lock;
// when it returns false nothing changes and no error is reported.
func (s *AuctionService) complete(ctx context.Context, auctionID, actor, reason, trigger string, due func(models.Auction, time.Time) bool) (models.Auction, bool, error) {
	var (
		ended        models.Auction
		winner       *models.Bid
		transitioned bool
	)
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx repository.AuctionTx, auction models.Auction) error {
		now := s.now()
		if due != nil && !due(auction, now) {
			return nil
		}
		bids, err := tx.GetBids()
		if err != nil {
			return fmt.Errorf("service: failed to read bids: %w", err)
		}
		winner, err = lifecycle.Complete(&auction, bids, actor, reason, now)
		if err != nil {
			return err
		}
		if winner != nil {
			if err := tx.UpdateBid(*winner); err != nil {
				return fmt.Errorf("service: failed to promote winning bid %s: %w", winner.BidID, err)
			}
		}
		if err := tx.SaveAuction(auction); err != nil {
			return fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
		}
		ended, transitioned = auction, true
		return nil
	})
	if err != nil || !transitioned {
		return models.Auction{}, false, err
	}

	s.syncProduct(ctx, ended, models.ProductAuctionCompleted)
	metrics.RecordTransition(string(models.AuctionCompleted), trigger)
	fields := map[string]any{
		"auction_id": auctionID,
		"actor":      actor,
		"reason":     reason,
		"total_bids": ended.TotalBids,
	}
	if winner != nil {
		fields["winning_bid_id"] = winner.BidID
		fields["final_price"] = winner.Amount.String()
	}
	utils.Info("auction completed", fields)

	event := fanout.NewEvent(fanout.EventAuctionEnded, auctionID, s.notice(ctx, ended, winner))
	s.notifier.Publish(fanout.AuctionTopic(auctionID), event)
	s.notifier.Publish(fanout.GlobalTopic, event)
	if winner != nil {
		s.notifier.PublishToUser(winner.BidderID, fanout.NewEvent(fanout.EventAuctionWon, auctionID, s.notice(ctx, ended, winner)))
	}
	return ended, true, nil
}

func (s *AuctionService) announceStart(ctx context.Context, auction models.Auction, trigger string) {
	s.syncProduct(ctx, auction, models.ProductInAuction)
	metrics.RecordTransition(string(models.AuctionInProgress), trigger)
	utils.Info("auction started", map[string]any{
		"auction_id": auction.AuctionID,
		"started_by": auction.StartedBy,
		"trigger":    trigger,
	})
	event := fanout.NewEvent(fanout.EventAuctionStarted, auction.AuctionID, s.notice(ctx, auction, nil))
	s.notifier.Publish(fanout.AuctionTopic(auction.AuctionID), event)
	s.notifier.Publish(fanout.GlobalTopic, event)
}

// syncProduct mirrors the auction's phase onto the product. The auction is
// already committed, so a catalog failure is logged rather than returned.
func (s *AuctionService) syncProduct(ctx context.Context, auction models.Auction, status models.ProductStatus) {
	if err := s.catalog.UpdateProductStatus(ctx, auction.ProductID, status); err != nil {
		utils.Warn("service: failed to update product status", map[string]any{
			"auction_id": auction.AuctionID,
			"product_id": auction.ProductID,
			"status":     string(status),
			"error":      err.Error(),
		})
	}
}

func (s *AuctionService) notice(ctx context.Context, auction models.Auction, winner *models.Bid) lifecycleNotice {
	n := lifecycleNotice{
		AuctionID:      auction.AuctionID,
		ProductID:      auction.ProductID,
		Status:         auction.Status,
		ScheduledStart: auction.ScheduledStart,
		ScheduledEnd:   auction.ScheduledEnd,
		ActualStart:    auction.ActualStart,
		ActualEnd:      auction.ActualEnd,
		StartPrice:     auction.StartPrice,
		TotalBids:      auction.TotalBids,
		TotalBidders:   auction.TotalBidders,
		EndReason:      auction.EndReason,
	}
	if winner != nil {
		n.FinalPrice = decimal.NewNullDecimal(winner.Amount)
		handle := winner.BidderID
		if user, err := s.users.GetUser(ctx, winner.BidderID); err == nil {
			handle = user.Handle
		}
		n.Winner = identity.MaskHandle(handle)
	}
	return n
}

func validatePricing(req models.ScheduleRequest) error {
	if !req.StartPrice.IsPositive() {
		return fmt.Errorf("service: %w - start price must be positive", biddingerrors.ErrInvalidPricing)
	}
	for name, v := range map[string]decimal.NullDecimal{
		"buy-it-now price": req.BuyItNowPrice,
		"bid unit":         req.BidUnit,
		"minimum bid":      req.MinimumBid,
		"maximum bid":      req.MaxBid,
	} {
		if v.Valid && !v.Decimal.IsPositive() {
			return fmt.Errorf("service: %w - %s must be positive", biddingerrors.ErrInvalidPricing, name)
		}
	}
	if req.BuyItNowPrice.Valid && !req.BuyItNowPrice.Decimal.GreaterThan(req.StartPrice) {
		return fmt.Errorf("service: %w - buy-it-now price must exceed start price", biddingerrors.ErrInvalidPricing)
	}
	if req.MinimumBid.Valid && req.MaxBid.Valid && req.MinimumBid.Decimal.GreaterThan(req.MaxBid.Decimal) {
		return fmt.Errorf("service: %w - minimum bid exceeds maximum bid", biddingerrors.ErrInvalidPricing)
	}
	if req.MaxBid.Valid && req.MaxBid.Decimal.LessThan(req.StartPrice) {
		return fmt.Errorf("service: %w - maximum bid is below start price", biddingerrors.ErrInvalidPricing)
	}
	return nil
}
