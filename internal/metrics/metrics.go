package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "travelchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Conversation metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelchat_sessions_created_total",
			Help: "Total chat sessions mounted",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "travelchat_sessions_active",
			Help: "Chat sessions currently mounted",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelchat_sessions_evicted_total",
			Help: "Chat sessions closed for inactivity",
		},
	)

	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelchat_messages_total",
			Help: "Messages appended to conversation timelines",
		},
		[]string{"sender"},
	)

	SubmissionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelchat_submissions_rejected_total",
			Help: "Submissions dropped because a reply was still pending",
		},
	)

	RepliesCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelchat_replies_cancelled_total",
			Help: "Simulated replies cancelled by session teardown",
		},
	)

	StreamSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "travelchat_stream_subscribers",
			Help: "Open event streams",
		},
		[]string{"transport"}, // "sse" or "ws"
	)
)

// ConversationObserver records conversation activity. It satisfies
// conversation.Observer.
type ConversationObserver struct{}

func (ConversationObserver) MessageAppended(msg chat.Message) {
	MessagesAppended.WithLabelValues(string(msg.Sender)).Inc()
}

func (ConversationObserver) SubmissionRejected() {
	SubmissionsRejected.Inc()
}

func (ConversationObserver) RepliesCancelled(n int) {
	RepliesCancelled.Add(float64(n))
}
