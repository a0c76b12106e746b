package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordFeedWriteSplitsOutcomes(t *testing.T) {
	okBefore := counterValue(t, feedWrites.WithLabelValues(string(WritePostLiked), "ok"))
	failedBefore := counterValue(t, feedWrites.WithLabelValues(string(WritePostLiked), "failed"))
	reasonBefore := counterValue(t, feedWriteFailures.WithLabelValues(string(WritePostLiked), "not_found"))

	RecordFeedWrite(WritePostLiked, 3*time.Millisecond, "")
	RecordFeedWrite(WritePostLiked, 3*time.Millisecond, "not_found")

	assert.Equal(t, okBefore+1, counterValue(t, feedWrites.WithLabelValues(string(WritePostLiked), "ok")))
	assert.Equal(t, failedBefore+1, counterValue(t, feedWrites.WithLabelValues(string(WritePostLiked), "failed")))
	assert.Equal(t, reasonBefore+1, counterValue(t, feedWriteFailures.WithLabelValues(string(WritePostLiked), "not_found")))
}

func TestRecordFeedPageCountsByFeed(t *testing.T) {
	before := counterValue(t, feedPagesServed.WithLabelValues(string(FeedExplore)))
	RecordFeedPage(FeedExplore, 20)
	assert.Equal(t, before+1, counterValue(t, feedPagesServed.WithLabelValues(string(FeedExplore))))
}

func TestPrometheusMiddlewareCollapsesUnknownRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware("feed-test"))
	r.GET("/feed", func(c *gin.Context) { c.Status(http.StatusOK) })

	matched := feedHTTPRequests.WithLabelValues("GET", "/feed", "200", "feed-test")
	unmatched := feedHTTPRequests.WithLabelValues("GET", "unmatched", "404", "feed-test")
	matchedBefore, unmatchedBefore := counterValue(t, matched), counterValue(t, unmatched)

	for _, path := range []string{"/feed", "/nope/1", "/nope/2"} {
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, matchedBefore+1, counterValue(t, matched))
	assert.Equal(t, unmatchedBefore+2, counterValue(t, unmatched))
}
