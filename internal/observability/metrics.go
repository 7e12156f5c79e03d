package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myblog_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "myblog_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// LoginAttempts counts credential checks by outcome (success, failure).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myblog_login_attempts_total",
		Help: "Total number of login attempts by result",
	}, []string{"result", "channel"})

	// UsersRegistered counts created accounts.
	UsersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myblog_users_registered_total",
		Help: "Total number of user accounts created",
	})

	// PostsCreated counts published posts.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myblog_posts_created_total",
		Help: "Total number of posts created",
	})

	// ConstraintViolations counts writes rejected by storage rules, by field.
	ConstraintViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myblog_constraint_violations_total",
		Help: "Total number of writes rejected by storage constraints",
	}, []string{"table", "field"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
