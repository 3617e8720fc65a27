package bidding

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
	"time"

	"github.com/shopspring/decimal"
)

// BiddingService validates and commits bids. All writes to an auction's
// winning line happen inside the repository's per-auction lock.
type BiddingService struct {
	repo     repository.AuctionDB
	catalog  catalog.Catalog
	users    identity.Directory
	notifier fanout.Broadcaster
	now      func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, products catalog.Catalog, users identity.Directory, notifier fanout.Broadcaster) *BiddingService {
	return &BiddingService{
		repo:     repo,
		catalog:  products,
		users:    users,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// bidNotice is the payload of NEW_BID and OUTBID events
type bidNotice struct {
	BidID        string          `json:"bid_id"`
	Bidder       string          `json:"bidder"`
	Amount       decimal.Decimal `json:"amount"`
	TotalBids    int             `json:"total_bids"`
	TotalBidders int             `json:"total_bidders"`
	IsBuyItNow   bool            `json:"is_buy_it_now,omitempty"`
}

// SubmitBid validates and records a bid as the auction's new winning line
func (s *BiddingService) SubmitBid(ctx context.Context, req models.BidRequest) (models.Bid, error) {
	if err := validateRequest(req); err != nil {
		metrics.RecordBid(outcomeOf(err))
		return models.Bid{}, err
	}

	bid := models.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: req.AuctionID,
		BidderID:  req.BidderID,
		Amount:    req.Amount,
		Status:    models.BidWinning,
		IsAutoBid: req.IsAutoBid,
	}
	if req.IsAutoBid {
		bid.MaxAutoBidAmount = req.MaxAutoBidAmount
	}

	var (
		prev      models.Bid
		hadPrev   bool
		committed models.Auction
	)
	err := s.repo.WithAuctionLock(ctx, req.AuctionID, func(tx repository.AuctionTx, auction models.Auction) error {
		entered := time.Now()
		defer func() { metrics.ObserveBidCriticalSection(time.Since(entered)) }()

		if err := validateAgainstAuction(auction, req.Amount); err != nil {
			return err
		}

		// the winning line is re-read here, under the lock
		winning, err := tx.GetWinningBid()
		switch {
		case err == nil:
			if !req.Amount.GreaterThan(winning.Amount) {
				return fmt.Errorf("service: %w - current highest bid is %s", biddingerrors.ErrTooLow, winning.Amount)
			}
			prev, hadPrev = winning, true
		case errors.Is(err, biddingerrors.ErrNoBids):
		default:
			return fmt.Errorf("service: failed to check winning bid: %w", err)
		}

		bid.CreatedAt = s.now()
		if err := tx.PlaceWinningBid(bid); err != nil {
			return fmt.Errorf("service: failed to record bid for auction %s by user %s: %w", req.AuctionID, req.BidderID, err)
		}

		bidders, err := tx.CountDistinctBidders()
		if err != nil {
			return fmt.Errorf("service: failed to count bidders: %w", err)
		}
		auction.CurrentHighestBid = decimal.NewNullDecimal(req.Amount)
		auction.TotalBids++
		auction.TotalBidders = bidders
		auction.UpdatedAt = bid.CreatedAt
		if err := tx.SaveAuction(auction); err != nil {
			return fmt.Errorf("service: failed to update auction %s: %w", req.AuctionID, err)
		}
		committed = auction
		return nil
	})
	if err != nil {
		metrics.RecordBid(outcomeOf(err))
		return models.Bid{}, err
	}
	metrics.RecordBid("accepted")

	s.announceBid(ctx, committed, bid, prev, hadPrev)
	return bid, nil
}

// BuyItNow sells the item at the auction's buy-it-now price and closes the auction
func (s *BiddingService) BuyItNow(ctx context.Context, auctionID, buyerID string) (models.Bid, error) {
	if strings.TrimSpace(auctionID) == "" || strings.TrimSpace(buyerID) == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or buyerID", biddingerrors.ErrInvalidBid)
	}

	// the product reference never changes after scheduling, so it is safe to read outside the lock
	current, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	product, err := s.catalog.GetProduct(ctx, current.ProductID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to look up product %s: %w", current.ProductID, err)
	}
	if product.StockCount != 1 {
		return models.Bid{}, fmt.Errorf("service: %w - buy-it-now needs exactly one unit in stock, product %s has %d",
			biddingerrors.ErrBuyItNowUnavailable, product.ProductID, product.StockCount)
	}

	bid := models.Bid{
		BidID:      utils.GenerateID(),
		AuctionID:  auctionID,
		BidderID:   buyerID,
		Status:     models.BidWon,
		IsBuyItNow: true,
	}
	var (
		prev      models.Bid
		hadPrev   bool
		committed models.Auction
	)
	err = s.repo.WithAuctionLock(ctx, auctionID, func(tx repository.AuctionTx, auction models.Auction) error {
		if auction.Status != models.AuctionInProgress {
			return fmt.Errorf("service: %w - status is %s", biddingerrors.ErrAuctionNotActive, auction.Status)
		}
		if !auction.BuyItNowPrice.Valid || !auction.BuyItNowPrice.Decimal.IsPositive() {
			return fmt.Errorf("service: %w - no buy-it-now price set", biddingerrors.ErrBuyItNowUnavailable)
		}
		price := auction.BuyItNowPrice.Decimal

		winning, err := tx.GetWinningBid()
		switch {
		case err == nil:
			if winning.Amount.GreaterThanOrEqual(price) {
				return fmt.Errorf("service: %w - bidding already reached %s", biddingerrors.ErrBuyItNowUnavailable, winning.Amount)
			}
			prev, hadPrev = winning, true
			winning.Status = models.BidOutbid
			if err := tx.UpdateBid(winning); err != nil {
				return fmt.Errorf("service: failed to outbid %s: %w", winning.BidID, err)
			}
		case errors.Is(err, biddingerrors.ErrNoBids):
		default:
			return fmt.Errorf("service: failed to check winning bid: %w", err)
		}

		now := s.now()
		bid.Amount = price
		bid.CreatedAt = now
		if err := tx.InsertBid(bid); err != nil {
			return fmt.Errorf("service: failed to record buy-it-now bid: %w", err)
		}
		bidders, err := tx.CountDistinctBidders()
		if err != nil {
			return fmt.Errorf("service: failed to count bidders: %w", err)
		}
		auction.CurrentHighestBid = decimal.NewNullDecimal(price)
		auction.TotalBids++
		auction.TotalBidders = bidders
		if err := lifecycle.CompleteWithWinner(&auction, bid, buyerID, models.EndReasonBuyItNow, now); err != nil {
			return err
		}
		if err := tx.SaveAuction(auction); err != nil {
			return fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
		}
		committed = auction
		return nil
	})
	if err != nil {
		return models.Bid{}, err
	}

	metrics.RecordTransition(string(models.AuctionCompleted), "buy_it_now")
	utils.Info("auction completed by buy-it-now", map[string]any{
		"auction_id": auctionID,
		"bid_id":     bid.BidID,
		"buyer_id":   buyerID,
		"amount":     bid.Amount.String(),
	})
	if err := s.catalog.UpdateProductStatus(ctx, committed.ProductID, models.ProductAuctionCompleted); err != nil {
		utils.Warn("service: failed to mark product auction completed", map[string]any{
			"auction_id": auctionID,
			"product_id": committed.ProductID,
			"error":      err.Error(),
		})
	}

	s.announceBid(ctx, committed, bid, prev, hadPrev)
	ended := fanout.NewEvent(fanout.EventAuctionEnded, auctionID, committed)
	s.notifier.Publish(fanout.AuctionTopic(auctionID), ended)
	s.notifier.Publish(fanout.GlobalTopic, ended)
	s.notifier.PublishToUser(buyerID, fanout.NewEvent(fanout.EventAuctionWon, auctionID, s.notice(ctx, committed, bid)))
	return bid, nil
}

// GetAuctionStatus returns a read-only snapshot. It takes no lock and may
// trail the most recent commit.
func (s *BiddingService) GetAuctionStatus(ctx context.Context, auctionID string) (models.AuctionSnapshot, error) {
	if auctionID == "" {
		return models.AuctionSnapshot{}, fmt.Errorf("service: %w - missing auctionID", biddingerrors.ErrInvalidBid)
	}
	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionSnapshot{}, err
	}

	now := s.now()
	snap := models.AuctionSnapshot{
		AuctionID:         auction.AuctionID,
		Status:            auction.Status,
		StartPrice:        auction.StartPrice,
		CurrentHighestBid: auction.CurrentHighestBid,
		TotalBidders:      auction.TotalBidders,
		TotalBids:         auction.TotalBids,
		ScheduledStart:    auction.ScheduledStart,
		ScheduledEnd:      auction.ScheduledEnd,
		ActualStart:       auction.ActualStart,
		ActualEnd:         auction.ActualEnd,
		ObservedAt:        now,
	}
	if auction.Status == models.AuctionInProgress && auction.ScheduledEnd.After(now) {
		snap.RemainingSeconds = int64(auction.ScheduledEnd.Sub(now) / time.Second)
	}

	winner, ok, err := s.currentWinner(ctx, auction)
	if err != nil {
		return models.AuctionSnapshot{}, err
	}
	if ok {
		snap.WinnerHandle = s.maskedHandle(ctx, winner.BidderID)
	}
	return snap, nil
}

// GetBidsForAuction returns all bids for an auction in commit order
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - missing auctionID", biddingerrors.ErrInvalidBid)
	}
	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrNoBids) {
			return []models.Bid{}, nil
		}
		return nil, fmt.Errorf("service: failed to get bids: %w", err)
	}
	return bids, nil
}

// GetWinningBid returns the bid currently holding the auction's winning line
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID", biddingerrors.ErrInvalidBid)
	}
	return s.repo.GetWinningBid(ctx, auctionID)
}

// currentWinner is the WINNING bid while live and the WON bid once completed
func (s *BiddingService) currentWinner(ctx context.Context, auction models.Auction) (models.Bid, bool, error) {
	if auction.Status == models.AuctionCompleted {
		bids, err := s.repo.GetBidsByAuction(ctx, auction.AuctionID)
		if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
			return models.Bid{}, false, fmt.Errorf("service: failed to get bids: %w", err)
		}
		for _, b := range bids {
			if b.Status == models.BidWon {
				return b, true, nil
			}
		}
		return models.Bid{}, false, nil
	}

	winning, err := s.repo.GetWinningBid(ctx, auction.AuctionID)
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return models.Bid{}, false, nil
	}
	if err != nil {
		return models.Bid{}, false, fmt.Errorf("service: failed to check winning bid: %w", err)
	}
	return winning, true, nil
}

// announceBid publishes NEW_BID and tells a displaced winner they were outbid
func (s *BiddingService) announceBid(ctx context.Context, auction models.Auction, bid, prev models.Bid, hadPrev bool) {
	notice := s.notice(ctx, auction, bid)
	s.notifier.Publish(fanout.AuctionTopic(auction.AuctionID), fanout.NewEvent(fanout.EventNewBid, auction.AuctionID, notice))
	if hadPrev && prev.BidderID != bid.BidderID {
		s.notifier.PublishToUser(prev.BidderID, fanout.NewEvent(fanout.EventOutbid, auction.AuctionID, notice))
	}
}

func (s *BiddingService) notice(ctx context.Context, auction models.Auction, bid models.Bid) bidNotice {
	return bidNotice{
		BidID:        bid.BidID,
		Bidder:       s.maskedHandle(ctx, bid.BidderID),
		Amount:       bid.Amount,
		TotalBids:    auction.TotalBids,
		TotalBidders: auction.TotalBidders,
		IsBuyItNow:   bid.IsBuyItNow,
	}
}

// maskedHandle falls back to the masked user id when the directory has no entry
func (s *BiddingService) maskedHandle(ctx context.Context, userID string) string {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return identity.MaskHandle(userID)
	}
	return identity.MaskHandle(user.Handle)
}

// validateRequest checks input validity that does not depend on auction state
func validateRequest(req models.BidRequest) error {
	if strings.TrimSpace(req.AuctionID) == "" || strings.TrimSpace(req.BidderID) == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if req.IsAutoBid {
		if !req.MaxAutoBidAmount.Valid {
			return fmt.Errorf("service: %w - missing maximum auto-bid amount", biddingerrors.ErrInvalidAutoBid)
		}
		if req.MaxAutoBidAmount.Decimal.LessThan(req.Amount) {
			return fmt.Errorf("service: %w - maximum %s is below bid %s", biddingerrors.ErrInvalidAutoBid, req.MaxAutoBidAmount.Decimal, req.Amount)
		}
	}
	return nil
}

// validateAgainstAuction checks the business rules that depend on the locked auction
func validateAgainstAuction(auction models.Auction, amount decimal.Decimal) error {
	if auction.Status != models.AuctionInProgress {
		return fmt.Errorf("service: %w - status is %s", biddingerrors.ErrAuctionNotActive, auction.Status)
	}
	if amount.LessThan(auction.StartPrice) {
		return fmt.Errorf("service: %w - start price is %s", biddingerrors.ErrTooLow, auction.StartPrice)
	}
	if auction.BidUnit.Valid && auction.BidUnit.Decimal.IsPositive() && !amount.Mod(auction.BidUnit.Decimal).IsZero() {
		return fmt.Errorf("service: %w - bid unit is %s", biddingerrors.ErrUnitMismatch, auction.BidUnit.Decimal)
	}
	if auction.MinimumBid.Valid && amount.LessThan(auction.MinimumBid.Decimal) {
		return fmt.Errorf("service: %w - minimum bid is %s", biddingerrors.ErrTooLow, auction.MinimumBid.Decimal)
	}
	if auction.MaxBid.Valid && amount.GreaterThan(auction.MaxBid.Decimal) {
		return fmt.Errorf("service: %w - maximum bid is %s", biddingerrors.ErrInvalidBid, auction.MaxBid.Decimal)
	}
	return nil
}

func outcomeOf(err error) string {
	if e, ok := biddingerrors.From(err); ok {
		return strings.ToLower(e.Reason)
	}
	return "error"
}
