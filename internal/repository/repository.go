package repository

import (
	"auction-house/internal/biddingerrors"
	"auction-house/internal/ledger"
	"auction-house/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
)

// AuctionDB defines the auction and bid storage interface for the auction system
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction models.Auction) error
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	FindOpenAuctionByProduct(ctx context.Context, productID string) (models.Auction, error)
	ListAuctionsByStatus(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error)
	CountDistinctBidders(ctx context.Context, auctionID string) (int, error)

	// WithAuctionLock runs fn while holding the auction's exclusive lock.
	// auction is read inside the lock. Writes made through tx are committed
	// together when fn returns nil and discarded otherwise.
	WithAuctionLock(ctx context.Context, auctionID string, fn func(tx AuctionTx, auction models.Auction) error) error
}

// AuctionTx is the write surface available inside an auction's critical section
type AuctionTx interface {
	GetWinningBid() (models.Bid, error)
	GetBids() ([]models.Bid, error)
	// PlaceWinningBid flips the current WINNING bid, if any, to OUTBID and
	// inserts bid as the new WINNING bid.
	PlaceWinningBid(bid models.Bid) error
	InsertBid(bid models.Bid) error
	UpdateBid(bid models.Bid) error
	CountDistinctBidders() (int, error)
	SaveAuction(auction models.Auction) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]models.Auction // key: auctionID -> value: auction
	bids     map[string][]models.Bid   // key: auctionID -> value: bids in commit order
	locks    *keyedLocker
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]models.Auction),
		bids:     make(map[string][]models.Bid),
		locks:    newKeyedLocker(),
	}
}

// CreateAuction stores a newly scheduled auction
func (r *MemoryRepo) CreateAuction(ctx context.Context, auction models.Auction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: missing auction id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: already exists", auction.AuctionID)
	}
	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns the auction with the given id
func (r *MemoryRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if err := ctx.Err(); err != nil {
		return models.Auction{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// FindOpenAuctionByProduct returns the non-terminal auction of a product
func (r *MemoryRepo) FindOpenAuctionByProduct(ctx context.Context, productID string) (models.Auction, error) {
	if err := ctx.Err(); err != nil {
		return models.Auction{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.auctions {
		if a.ProductID == productID && !a.Status.IsTerminal() {
			return a, nil
		}
	}
	return models.Auction{}, fmt.Errorf("find open auction for product %s: %w", productID, biddingerrors.ErrAuctionNotFound)
}

// ListAuctionsByStatus returns auctions in any of the statuses, earliest scheduled start first
func (r *MemoryRepo) ListAuctionsByStatus(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[models.AuctionStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	r.mu.RLock()
	out := make([]models.Auction, 0)
	for _, a := range r.auctions {
		if wanted[a.Status] {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledStart.Equal(out[j].ScheduledStart) {
			return out[i].AuctionID < out[j].AuctionID
		}
		return out[i].ScheduledStart.Before(out[j].ScheduledStart)
	})
	return out, nil
}

// GetBidsByAuction returns all bids for an auction in commit order
func (r *MemoryRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]models.Bid(nil), bids...), nil
}

// GetWinningBid returns the bid currently holding the winning line
func (r *MemoryRepo) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if err := ctx.Err(); err != nil {
		return models.Bid{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	winning, ok := ledger.New(r.bids[auctionID]).Winning()
	if !ok {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return winning, nil
}

// CountDistinctBidders returns how many identities have bid on the auction
func (r *MemoryRepo) CountDistinctBidders(ctx context.Context, auctionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return ledger.New(r.bids[auctionID]).DistinctBidders(), nil
}

// WithAuctionLock serializes fn against every other locked section of the same auction
func (r *MemoryRepo) WithAuctionLock(ctx context.Context, auctionID string, fn func(tx AuctionTx, auction models.Auction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	release := r.locks.Lock(auctionID)
	defer release()

	r.mu.RLock()
	auction, ok := r.auctions[auctionID]
	bids := r.bids[auctionID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("lock auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	tx := &memoryTx{auctionID: auctionID, auction: auction, ledger: ledger.New(bids)}
	if err := fn(tx, auction); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.auctionSaved {
		r.auctions[auctionID] = tx.auction
	}
	if tx.bidsChanged {
		r.bids[auctionID] = tx.ledger.Bids()
	}
	return nil
}

// AddAuction stores an auction as-is. This method is intended for tests and seeding only.
func (r *MemoryRepo) AddAuction(auction models.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.AuctionID] = auction
}

// memoryTx stages writes against a private copy of one auction's ledger
type memoryTx struct {
	auctionID    string
	auction      models.Auction
	ledger       *ledger.Ledger
	auctionSaved bool
	bidsChanged  bool
}

func (tx *memoryTx) GetWinningBid() (models.Bid, error) {
	winning, ok := tx.ledger.Winning()
	if !ok {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", tx.auctionID, biddingerrors.ErrNoBids)
	}
	return winning, nil
}

func (tx *memoryTx) GetBids() ([]models.Bid, error) {
	return tx.ledger.Bids(), nil
}

func (tx *memoryTx) PlaceWinningBid(bid models.Bid) error {
	if bid.AuctionID != tx.auctionID {
		return fmt.Errorf("place bid %s: belongs to auction %s, not %s", bid.BidID, bid.AuctionID, tx.auctionID)
	}
	tx.ledger.Place(bid)
	tx.bidsChanged = true
	return nil
}

func (tx *memoryTx) InsertBid(bid models.Bid) error {
	if bid.AuctionID != tx.auctionID {
		return fmt.Errorf("insert bid %s: belongs to auction %s, not %s", bid.BidID, bid.AuctionID, tx.auctionID)
	}
	tx.ledger.Append(bid)
	tx.bidsChanged = true
	return nil
}

func (tx *memoryTx) UpdateBid(bid models.Bid) error {
	if !tx.ledger.Replace(bid) {
		return fmt.Errorf("update bid %s: not found in auction %s", bid.BidID, tx.auctionID)
	}
	tx.bidsChanged = true
	return nil
}

func (tx *memoryTx) CountDistinctBidders() (int, error) {
	return tx.ledger.DistinctBidders(), nil
}

func (tx *memoryTx) SaveAuction(auction models.Auction) error {
	if auction.AuctionID != tx.auctionID {
		return fmt.Errorf("save auction %s: locked auction is %s", auction.AuctionID, tx.auctionID)
	}
	tx.auction = auction
	tx.auctionSaved = true
	return nil
}
