package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FeedWrite - запись, после которой инвалидируется кеш лент
type FeedWrite string

const (
	WritePostCreated    FeedWrite = "post_created"
	WritePostUpdated    FeedWrite = "post_updated"
	WritePostDeleted    FeedWrite = "post_deleted"
	WritePostLiked      FeedWrite = "post_liked"
	WritePostUnliked    FeedWrite = "post_unliked"
	WriteUserFollowed   FeedWrite = "user_followed"
	WriteUserUnfollowed FeedWrite = "user_unfollowed"
)

// FeedKind - какая лента отдана клиенту
type FeedKind string

const (
	FeedHome    FeedKind = "home"
	FeedExplore FeedKind = "explore"
)

var (
	feedHTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_http_requests_total",
			Help: "HTTP requests served by the feed API",
		},
		[]string{"method", "route", "code", "service"},
	)

	feedHTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_http_request_seconds",
			Help:    "Feed API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "service"},
	)

	feedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_writes_total",
			Help: "Writes that invalidate cached feeds, by outcome",
		},
		[]string{"write", "outcome"},
	)

	feedWriteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_write_seconds",
			Help:    "Latency of a write including cache invalidation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"write"},
	)

	feedWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_write_failures_total",
			Help: "Rejected or failed writes, by reason",
		},
		[]string{"write", "reason"},
	)

	feedPagesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_pages_served_total",
			Help: "Feed pages returned to clients",
		},
		[]string{"feed"},
	)

	feedPageItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_page_items",
			Help:    "Number of posts on a served feed page",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"feed"},
	)
)

func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			// неизвестные маршруты схлопываем, чтобы не раздувать кардинальность
			route = "unmatched"
		}

		c.Next()

		code := strconv.Itoa(c.Writer.Status())
		feedHTTPRequests.WithLabelValues(c.Request.Method, route, code, serviceName).Inc()
		feedHTTPLatency.WithLabelValues(c.Request.Method, route, serviceName).Observe(time.Since(start).Seconds())
	}
}

// RecordFeedWrite учитывает одну запись; reason берется из фиксированного
// набора, пустой reason означает успех
func RecordFeedWrite(write FeedWrite, duration time.Duration, reason string) {
	outcome := "ok"
	if reason != "" {
		outcome = "failed"
		feedWriteFailures.WithLabelValues(string(write), reason).Inc()
	}
	feedWrites.WithLabelValues(string(write), outcome).Inc()
	feedWriteLatency.WithLabelValues(string(write)).Observe(duration.Seconds())
}

func RecordFeedPage(feed FeedKind, items int) {
	feedPagesServed.WithLabelValues(string(feed)).Inc()
	feedPageItems.WithLabelValues(string(feed)).Observe(float64(items))
}
