package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gospel5"

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	authRejections  *prometheus.CounterVec
	badgesAwarded   *prometheus.CounterVec
	friendshipEvent *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"pattern", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pattern", "method"},
		),
		authRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_rejections_total",
				Help:      "Requests rejected as unauthenticated or forbidden.",
			},
			[]string{"status"},
		),
		badgesAwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "badges_awarded_total",
				Help:      "Streak badges awarded, by badge name.",
			},
			[]string{"badge"},
		),
		friendshipEvent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "friendship_events_total",
				Help:      "Friendship transitions, by event type.",
			},
			[]string{"type"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.authRejections, m.badgesAwarded, m.friendshipEvent)
	return m
}

// ObserveRequest records one served request. pattern should be the route
// pattern rather than the raw path so IDs don't explode the label space.
func (m *Metrics) ObserveRequest(pattern, method string, status int, d time.Duration) {
	if pattern == "" {
		pattern = "unmatched"
	}
	m.requests.WithLabelValues(pattern, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(pattern, method).Observe(d.Seconds())
	if status == 401 || status == 403 {
		m.authRejections.WithLabelValues(strconv.Itoa(status)).Inc()
	}
}

func (m *Metrics) BadgeAwarded(badge string) {
	m.badgesAwarded.WithLabelValues(badge).Inc()
}

func (m *Metrics) FriendshipEvent(eventType string) {
	m.friendshipEvent.WithLabelValues(eventType).Inc()
}
