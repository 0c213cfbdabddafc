package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultRejected  = "rejected"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wellhost_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	OAuthExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellhost_oauth_exchanges_total",
		Help: "Authorization-code exchanges by platform and result.",
	}, []string{"platform", "result"})

	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellhost_token_refreshes_total",
		Help: "Channel token refreshes by platform and result.",
	}, []string{"platform", "result"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellhost_webhook_events_total",
		Help: "Inbound channel manager events by event type and result.",
	}, []string{"event_type", "result"})

	ExternalAccounts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wellhost_external_accounts",
		Help: "Active external accounts by platform and token state.",
	}, []string{"platform", "state"})

	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wellhost_sse_clients",
		Help: "Connected dashboard event stream clients on this instance.",
	})
)
