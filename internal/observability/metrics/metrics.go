package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcels_settlements_total",
			Help: "Confirmed payments processed, by kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcels_transfers_total",
			Help: "Transfer code redemptions.",
		},
		[]string{"result"},
	)

	ListingActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcels_listing_actions_total",
			Help: "Marketplace listing mutations.",
		},
		[]string{"action", "result"},
	)

	ReleasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcels_releases_total",
			Help: "Claims released by their owners.",
		},
		[]string{"result"},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcels_logins_total",
			Help: "Login attempts by method.",
		},
		[]string{"method", "result"},
	)

	EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcels_emails_total",
			Help: "Outbound emails by template.",
		},
		[]string{"template", "result"},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector once with the service name attached as
// a constant label. Unregistered collectors still count, which keeps tests simple.
func MustRegister(serviceName string) {
	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			SettlementsTotal,
			TransfersTotal,
			ListingActionsTotal,
			ReleasesTotal,
			LoginsTotal,
			EmailsTotal,
		)
	})
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
