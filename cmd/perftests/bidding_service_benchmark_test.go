package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"
)

// Benchmark 1: SubmitBid - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_SubmitBid_Isolated(b *testing.B) {
	_, svc := setupRepo(b.N)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		userID := fmt.Sprintf("user_%d", i)
		bidAmount := int64(startPrice + 1 + rand.Intn(100))
		if err := placeBid(svc, auctionID(i), userID, bidAmount); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: SubmitBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_SubmitBid_ConcurrentSharedAuction(b *testing.B) {
	_, svc := setupRepo(1)
	shared := auctionID(0)

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = startPrice

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			userID := fmt.Sprintf("user_parallel_%d", rnd.Int())

			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_ = placeBid(svc, shared, userID, nextBid)
		}
	})
}

// Benchmark 3: GetWinningBid - Single - Threaded (Low Contention)
func Benchmark_GetWinningBid_SingleThreaded(b *testing.B) {
	_, svc := setupRepo(b.N)

	for i := 0; i < b.N; i++ {
		for j := 1; j <= 10; j++ {
			userID := fmt.Sprintf("user_%d_%d", i, j)
			_ = placeBid(svc, auctionID(i), userID, int64(startPrice+j*10))
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		if _, err := svc.GetWinningBid(ctx, auctionID(i)); err != nil {
			b.Fatalf("failed to get winning bid: %v", err)
		}
	}
}

// Benchmark 4: GetAuctionStatus - Concurrent (High Contention)
func Benchmark_GetAuctionStatus_ConcurrentSharedAuction(b *testing.B) {
	_, svc := setupRepo(1)
	shared := auctionID(0)

	for j := 1; j <= 100; j++ {
		userID := fmt.Sprintf("user_%d", j)
		_ = placeBid(svc, shared, userID, int64(startPrice+j))
	}

	b.ReportAllocs()
	b.ResetTimer()

	ctx := context.Background()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := svc.GetAuctionStatus(ctx, shared); err != nil {
				b.Errorf("failed to get auction status: %v", err)
				return
			}
		}
	})
}

// Benchmark 5: Mixed Workload (Readers + Writers concurrently)
func Benchmark_MixedWorkload_SharedAuction(b *testing.B) {
	_, svc := setupRepo(1)
	shared := auctionID(0)

	for j := 1; j <= 50; j++ {
		userID := fmt.Sprintf("user_seed_%d", j)
		_ = placeBid(svc, shared, userID, int64(startPrice+j*2))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 200
	ctx := context.Background()

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			switch opType := rnd.Intn(10); {
			case opType < 3:
				userID := fmt.Sprintf("user_writer_%d", rnd.Int())
				nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
				_ = placeBid(svc, shared, userID, nextBid)
			default:
				_, _ = svc.GetWinningBid(ctx, shared)
			}
		}
	})
}
