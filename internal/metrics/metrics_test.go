package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecorders(t *testing.T) {
	RegisterMetrics()

	before := testutil.ToFloat64(bidsTotal.WithLabelValues("accepted"))
	RecordBid("accepted")
	require.Equal(t, before+1, testutil.ToFloat64(bidsTotal.WithLabelValues("accepted")))

	beforeErr := testutil.ToFloat64(sweepRuns.WithLabelValues("missed_start", "error"))
	RecordSweep("missed_start", 0, errors.New("db down"))
	require.Equal(t, beforeErr+1, testutil.ToFloat64(sweepRuns.WithLabelValues("missed_start", "error")))

	beforeMoved := testutil.ToFloat64(sweepTransitions.WithLabelValues("due_end"))
	RecordSweep("due_end", 3, nil)
	require.Equal(t, beforeMoved+3, testutil.ToFloat64(sweepTransitions.WithLabelValues("due_end")))

	beforeDrop := testutil.ToFloat64(fanoutDeliveries.WithLabelValues("topic", "dropped"))
	RecordFanout("topic", 2, 1)
	require.Equal(t, beforeDrop+1, testutil.ToFloat64(fanoutDeliveries.WithLabelValues("topic", "dropped")))

	RecordTransition("IN_PROGRESS", "scheduler")
	ObserveBidCriticalSection(2 * time.Millisecond)
}

func TestHandlerServesRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestMetricsMiddleware)
	router.GET("/metrics", Handler())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "auction_http_requests_total"))
}
