// Package monitoring exposes Prometheus metrics for the review workflows.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AccessRequestReviews counts admin review transitions by target status
	AccessRequestReviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "access_request_reviews_total",
		Help: "Access-request review transitions by target status",
	}, []string{"status"})

	// ListingApprovals counts listings published into active
	ListingApprovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listing_approvals_total",
		Help: "Listings approved into active status",
	})

	// ConsentGateRefusals counts approve attempts blocked by the consent gate
	ConsentGateRefusals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consent_gate_refusals_total",
		Help: "Listing approvals refused because consent was not verified",
	})

	// PersistenceErrors counts failed datastore writes by operation
	PersistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persistence_errors_total",
		Help: "Failed datastore writes by operation",
	}, []string{"operation"})
)

// Handler returns the Prometheus exposition handler for /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
