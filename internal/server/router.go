package server

import (
	"auction-house/internal/metrics"
	handler "auction-house/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer dispatches to
type Services struct {
	Bidding  handler.BiddingServiceInterface
	Auctions handler.AuctionServiceInterface
	Events   handler.EventSource
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(svc Services) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())                   // recover from panics
	router.Use(RequestLoggerMiddleware)          // custom request logging
	router.Use(metrics.RequestMetricsMiddleware) // per-route request counters

	biddingHandler := handler.NewBiddingHandler(svc.Bidding)
	auctionHandler := handler.NewAuctionHandler(svc.Auctions)
	streamHandler := handler.NewStreamHandler(svc.Events)

	router.GET("/metrics", metrics.Handler())
	router.GET("/events", streamHandler.GlobalEventsHandler)

	bids := router.Group("/bids")
	{
		bids.POST("", biddingHandler.RecordBidHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.ScheduleAuctionHandler)
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionStatusHandler)
		auctions.GET("/:auction_id/details", auctionHandler.GetAuctionHandler)
		auctions.POST("/:auction_id/start", auctionHandler.StartAuctionHandler)
		auctions.POST("/:auction_id/end", auctionHandler.EndAuctionHandler)
		auctions.POST("/:auction_id/buy-now", biddingHandler.BuyItNowHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
		auctions.GET("/:auction_id/events", streamHandler.AuctionEventsHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/events", streamHandler.UserEventsHandler)
	}

	return router
}
