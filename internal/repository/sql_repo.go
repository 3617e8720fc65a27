package repository

import (
	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// dialect captures the differences between the supported SQL backends
type dialect struct {
	name       string
	numbered   bool   // $1-style placeholders
	lockClause string // appended to the locked auction read
}

var (
	postgresDialect = dialect{name: "postgres", numbered: true, lockClause: " FOR UPDATE"}
	sqliteDialect   = dialect{name: "sqlite"}
)

// rebind rewrites ? placeholders for the dialect
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLRepo is a durable AuctionDB backed by PostgreSQL or SQLite
type SQLRepo struct {
	db      *sql.DB
	dialect dialect
	locks   *keyedLocker
}

// OpenPostgres connects through the pgx driver. The per-auction critical
// section takes a row lock, so several processes may share one database.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepo, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	return newSQLRepo(ctx, db, postgresDialect)
}

// OpenSQLite opens a single-node store at path. Write transactions begin
// IMMEDIATE so concurrent writers queue on the busy timeout.
func OpenSQLite(ctx context.Context, path string) (*SQLRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	return newSQLRepo(ctx, db, sqliteDialect)
}

func newSQLRepo(ctx context.Context, db *sql.DB, d dialect) (*SQLRepo, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.name, err)
	}
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s schema: %w", d.name, err)
		}
	}
	return &SQLRepo{db: db, dialect: d, locks: newKeyedLocker()}, nil
}

// Close releases the database handle
func (r *SQLRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const auctionColumns = `id, product_id, status, scheduled_start, scheduled_end, actual_start, actual_end,
	start_price, current_highest_bid, buy_it_now_price, bid_unit, minimum_bid, max_bid,
	total_bidders, total_bids, created_by, started_by, ended_by, end_reason, created_at, updated_at`

const bidColumns = `id, auction_id, bidder_id, amount, status, is_auto_bid, max_auto_bid_amount,
	is_buy_it_now, created_at, cancelled_at, cancel_reason`

// CreateAuction inserts a newly scheduled auction
func (r *SQLRepo) CreateAuction(ctx context.Context, a models.Auction) error {
	if a.AuctionID == "" {
		return fmt.Errorf("create auction: missing auction id")
	}
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO auctions (`+auctionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.AuctionID, a.ProductID, string(a.Status), toMillis(a.ScheduledStart), toMillis(a.ScheduledEnd),
		nullMillis(a.ActualStart), nullMillis(a.ActualEnd),
		a.StartPrice, a.CurrentHighestBid, a.BuyItNowPrice, a.BidUnit, a.MinimumBid, a.MaxBid,
		a.TotalBidders, a.TotalBids, a.CreatedBy, a.StartedBy, a.EndedBy, a.EndReason,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create auction %s: %w", a.AuctionID, err)
	}
	return nil
}

// GetAuction returns the auction with the given id
func (r *SQLRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	a, err := scanAuction(r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT `+auctionColumns+` FROM auctions WHERE id = ?`), auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// FindOpenAuctionByProduct returns the non-terminal auction of a product
func (r *SQLRepo) FindOpenAuctionByProduct(ctx context.Context, productID string) (models.Auction, error) {
	a, err := scanAuction(r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+auctionColumns+` FROM auctions
WHERE product_id = ? AND status IN (?, ?, ?)
ORDER BY scheduled_start
LIMIT 1`),
		productID, string(models.AuctionScheduled), string(models.AuctionReady), string(models.AuctionInProgress)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, fmt.Errorf("find open auction for product %s: %w", productID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("find open auction for product %s: %w", productID, err)
	}
	return a, nil
}

// ListAuctionsByStatus returns auctions in any of the statuses, earliest scheduled start first
func (r *SQLRepo) ListAuctionsByStatus(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error) {
	if len(statuses) == 0 {
		return []models.Auction{}, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		placeholders[i] = "?"
		args[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT `+auctionColumns+` FROM auctions
WHERE status IN (`+strings.Join(placeholders, ", ")+`)
ORDER BY scheduled_start, id`), args...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}
	return out, nil
}

// GetBidsByAuction returns all bids for an auction in commit order
func (r *SQLRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	bids, err := listBids(ctx, r.db, r.dialect, auctionID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the bid currently holding the winning line
func (r *SQLRepo) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	return winningBid(ctx, r.db, r.dialect, auctionID)
}

// CountDistinctBidders returns how many identities have bid on the auction
func (r *SQLRepo) CountDistinctBidders(ctx context.Context, auctionID string) (int, error) {
	return distinctBidders(ctx, r.db, r.dialect, auctionID)
}

// WithAuctionLock runs fn inside one database transaction holding the
// auction's in-process lock and, on PostgreSQL, its row lock.
func (r *SQLRepo) WithAuctionLock(ctx context.Context, auctionID string, fn func(tx AuctionTx, auction models.Auction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	release := r.locks.Lock(auctionID)
	defer release()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("lock auction %s: %w: %v", auctionID, biddingerrors.ErrLockUnavailable, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	auction, err := scanAuction(tx.QueryRowContext(ctx,
		r.dialect.rebind(`SELECT `+auctionColumns+` FROM auctions WHERE id = ?`+r.dialect.lockClause), auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock auction %s: %w: %v", auctionID, biddingerrors.ErrLockUnavailable, err)
	}

	if err := fn(&sqlTx{ctx: ctx, tx: tx, dialect: r.dialect, auctionID: auctionID}, auction); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit auction %s: %w: %v", auctionID, biddingerrors.ErrLockUnavailable, err)
	}
	committed = true
	return nil
}

// sqlTx implements AuctionTx on an open database transaction
type sqlTx struct {
	ctx       context.Context
	tx        *sql.Tx
	dialect   dialect
	auctionID string
}

func (t *sqlTx) GetWinningBid() (models.Bid, error) {
	return winningBid(t.ctx, t.tx, t.dialect, t.auctionID)
}

func (t *sqlTx) GetBids() ([]models.Bid, error) {
	return listBids(t.ctx, t.tx, t.dialect, t.auctionID)
}

func (t *sqlTx) PlaceWinningBid(bid models.Bid) error {
	_, err := t.tx.ExecContext(t.ctx, t.dialect.rebind(`UPDATE bids SET status = ? WHERE auction_id = ? AND status = ?`),
		string(models.BidOutbid), t.auctionID, string(models.BidWinning))
	if err != nil {
		return fmt.Errorf("outbid previous winner of auction %s: %w", t.auctionID, err)
	}
	bid.Status = models.BidWinning
	return t.InsertBid(bid)
}

func (t *sqlTx) InsertBid(bid models.Bid) error {
	if bid.AuctionID != t.auctionID {
		return fmt.Errorf("insert bid %s: belongs to auction %s, not %s", bid.BidID, bid.AuctionID, t.auctionID)
	}

	var seq int64
	if err := t.tx.QueryRowContext(t.ctx, t.dialect.rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM bids WHERE auction_id = ?`),
		t.auctionID).Scan(&seq); err != nil {
		return fmt.Errorf("next bid sequence for auction %s: %w", t.auctionID, err)
	}

	_, err := t.tx.ExecContext(t.ctx, t.dialect.rebind(`
INSERT INTO bids (`+bidColumns+`, seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		bid.BidID, bid.AuctionID, bid.BidderID, bid.Amount, string(bid.Status), bid.IsAutoBid, bid.MaxAutoBidAmount,
		bid.IsBuyItNow, toMillis(bid.CreatedAt), nullMillis(bid.CancelledAt), bid.CancelReason, seq,
	)
	if err != nil {
		return fmt.Errorf("insert bid %s: %w", bid.BidID, err)
	}
	return nil
}

func (t *sqlTx) UpdateBid(bid models.Bid) error {
	res, err := t.tx.ExecContext(t.ctx, t.dialect.rebind(`
UPDATE bids SET status = ?, cancelled_at = ?, cancel_reason = ?
WHERE id = ? AND auction_id = ?`),
		string(bid.Status), nullMillis(bid.CancelledAt), bid.CancelReason, bid.BidID, t.auctionID)
	if err != nil {
		return fmt.Errorf("update bid %s: %w", bid.BidID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bid %s: %w", bid.BidID, err)
	}
	if n != 1 {
		return fmt.Errorf("update bid %s: not found in auction %s", bid.BidID, t.auctionID)
	}
	return nil
}

func (t *sqlTx) CountDistinctBidders() (int, error) {
	return distinctBidders(t.ctx, t.tx, t.dialect, t.auctionID)
}

func (t *sqlTx) SaveAuction(a models.Auction) error {
	if a.AuctionID != t.auctionID {
		return fmt.Errorf("save auction %s: locked auction is %s", a.AuctionID, t.auctionID)
	}
	_, err := t.tx.ExecContext(t.ctx, t.dialect.rebind(`
UPDATE auctions SET
	status = ?, scheduled_start = ?, scheduled_end = ?, actual_start = ?, actual_end = ?,
	start_price = ?, current_highest_bid = ?, buy_it_now_price = ?, bid_unit = ?, minimum_bid = ?, max_bid = ?,
	total_bidders = ?, total_bids = ?, started_by = ?, ended_by = ?, end_reason = ?, updated_at = ?
WHERE id = ?`),
		string(a.Status), toMillis(a.ScheduledStart), toMillis(a.ScheduledEnd), nullMillis(a.ActualStart), nullMillis(a.ActualEnd),
		a.StartPrice, a.CurrentHighestBid, a.BuyItNowPrice, a.BidUnit, a.MinimumBid, a.MaxBid,
		a.TotalBidders, a.TotalBids, a.StartedBy, a.EndedBy, a.EndReason, toMillis(a.UpdatedAt),
		a.AuctionID,
	)
	if err != nil {
		return fmt.Errorf("save auction %s: %w", a.AuctionID, err)
	}
	return nil
}

func winningBid(ctx context.Context, q querier, d dialect, auctionID string) (models.Bid, error) {
	b, err := scanBid(q.QueryRowContext(ctx, d.rebind(`
SELECT `+bidColumns+` FROM bids
WHERE auction_id = ? AND status = ?
ORDER BY seq DESC
LIMIT 1`), auctionID, string(models.BidWinning)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, err)
	}
	return b, nil
}

func listBids(ctx context.Context, q querier, d dialect, auctionID string) ([]models.Bid, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`SELECT `+bidColumns+` FROM bids WHERE auction_id = ? ORDER BY seq`), auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	bids := make([]models.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return bids, nil
}

func distinctBidders(ctx context.Context, q querier, d dialect, auctionID string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, d.rebind(`SELECT COUNT(DISTINCT bidder_id) FROM bids WHERE auction_id = ?`), auctionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bidders for auction %s: %w", auctionID, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (models.Auction, error) {
	var (
		a                                models.Auction
		status                           string
		start, end, createdAt, updatedAt int64
		actualStart, actualEnd           sql.NullInt64
	)
	err := row.Scan(
		&a.AuctionID, &a.ProductID, &status, &start, &end, &actualStart, &actualEnd,
		&a.StartPrice, &a.CurrentHighestBid, &a.BuyItNowPrice, &a.BidUnit, &a.MinimumBid, &a.MaxBid,
		&a.TotalBidders, &a.TotalBids, &a.CreatedBy, &a.StartedBy, &a.EndedBy, &a.EndReason, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.Auction{}, err
	}
	a.Status = models.AuctionStatus(status)
	a.ScheduledStart = fromMillis(start)
	a.ScheduledEnd = fromMillis(end)
	a.ActualStart = fromNullMillis(actualStart)
	a.ActualEnd = fromNullMillis(actualEnd)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func scanBid(row rowScanner) (models.Bid, error) {
	var (
		b           models.Bid
		status      string
		createdAt   int64
		cancelledAt sql.NullInt64
	)
	err := row.Scan(
		&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &status, &b.IsAutoBid, &b.MaxAutoBidAmount,
		&b.IsBuyItNow, &createdAt, &cancelledAt, &b.CancelReason,
	)
	if err != nil {
		return models.Bid{}, err
	}
	b.Status = models.BidStatus(status)
	b.CreatedAt = fromMillis(createdAt)
	b.CancelledAt = fromNullMillis(cancelledAt)
	return b, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
