package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics records marketplace engine activity exposed via the
// metrics endpoint.
type MarketplaceMetrics struct {
	Listings      prometheus.Counter
	Sales         *prometheus.CounterVec
	Cancellations prometheus.Counter
	Failures      *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
}

var (
	marketplaceOnce sync.Once
	marketplaceReg  *MarketplaceMetrics
)

// Marketplace returns the lazily-initialised marketplace metrics registry.
func Marketplace() *MarketplaceMetrics {
	marketplaceOnce.Do(func() {
		marketplaceReg = &MarketplaceMetrics{
			Listings: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "fracmarket",
				Subsystem: "marketplace",
				Name:      "listings_total",
				Help:      "Total offers created.",
			}),
			Sales: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fracmarket",
				Subsystem: "marketplace",
				Name:      "sales_total",
				Help:      "Total successful purchases segmented by settlement rail.",
			}, []string{"rail"}),
			Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "fracmarket",
				Subsystem: "marketplace",
				Name:      "cancellations_total",
				Help:      "Total offers cancelled.",
			}),
			Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fracmarket",
				Subsystem: "marketplace",
				Name:      "failures_total",
				Help:      "Total rejected mutator calls segmented by method.",
			}, []string{"method"}),
			Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fracmarket",
				Subsystem: "marketplace",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for marketplace RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			marketplaceReg.Listings,
			marketplaceReg.Sales,
			marketplaceReg.Cancellations,
			marketplaceReg.Failures,
			marketplaceReg.Latency,
		)
	})
	return marketplaceReg
}
