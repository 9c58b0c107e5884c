// Package metrics defines and registers all custom Prometheus metrics for the
// certificate service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry through promauto
// when the package is loaded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "certificates"

// ── Registration metrics ──────────────────────────────────────────────────────

// CertificatesRegistered counts certificates linked to a stored image.
var CertificatesRegistered = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registered_total",
		Help:      "Total number of certificates successfully registered.",
	},
)

// RegisterFailures counts failed registrations.
// Label:
//   - stage: the workflow stage that failed ("validation", "store", "link")
var RegisterFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "register_failures_total",
		Help:      "Total number of certificate registrations that failed, by stage.",
	},
	[]string{"stage"},
)

// RegisterDuration measures a successful registration end-to-end.
var RegisterDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "register_duration_seconds",
		Help:      "Duration of certificate registration from validation to linkage.",
		Buckets:   prometheus.DefBuckets,
	},
)

// BlobBytesStored sums the image bytes handed to the blob store.
var BlobBytesStored = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blob_bytes_stored_total",
		Help:      "Total number of certificate image bytes written to the blob store.",
	},
)

// ── Retrieval metrics ─────────────────────────────────────────────────────────

// Retrievals counts image retrievals.
// Label:
//   - result: "ok", "not_found", "invalid" or "error"
var Retrievals = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrievals_total",
		Help:      "Total number of certificate image retrievals, by result.",
	},
	[]string{"result"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// Logins counts login attempts.
// Label:
//   - result: "ok", "user_not_found", "invalid_secret", "unknown_role", "no_account" or "unavailable"
var Logins = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RateLimited counts requests rejected by the upload rate limiter.
var RateLimited = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	},
)
