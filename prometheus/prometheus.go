// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package prometheus

import (
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	ErrorsCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "essync_errors_count",
		Help: "Reports essync internal errors absolute counter since start",
	})

	PoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "essync_pool_size",
		Help: "Reports current amount of nodes requests can be routed to",
	})

	NodeAdmissionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "essync_node_admission_count",
			Help: "Admission decisions taken on sniffed nodes",
		},
		[]string{"decision"},
	)

	NodeAvailabilityGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "essync_node_availability",
			Help: "Reflects node availabity : 1 is OK, 0 means node marked dead",
		},
		[]string{"node"},
	)

	RequestLatencySummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "essync_request_latency",
			Help:       "Measure latency of requests sent to every node (quantiles - in ns)",
			MaxAge:     20 * time.Minute, // default value * 2
			AgeBuckets: 20,               // default value * 4
			BufCap:     2000,             // default value * 4
		},
		[]string{"node"},
	)

	SniffDurationSummary = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "essync_sniff_duration",
		Help:       "Time spent for sniffing cluster topology (in ns)",
		MaxAge:     20 * time.Minute, // default value * 2
		AgeBuckets: 20,               // default value * 4
		BufCap:     2000,             // default value * 4
	})

	ConsulDiscoveryDurationSummary = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "essync_consul_discovery_duration",
		Help:       "Time spent for discovering seed nodes using Consul API (in ns)",
		MaxAge:     20 * time.Minute, // default value * 2
		AgeBuckets: 20,               // default value * 4
		BufCap:     2000,             // default value * 4
	})

	IndexOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "essync_index_operation_count",
			Help: "Administrative index operations sent to the cluster",
		},
		[]string{"operation", "index", "result"},
	)

	LifecycleEventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "essync_lifecycle_event_count",
			Help: "Index lifecycle events dispatched",
		},
		[]string{"event", "result"},
	)

	CleaningMetricsDurationSummary = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "essync_metrics_cleaning_duration",
		Help:       "Time spent for cleaning vanished nodes metrics (in ns)",
		MaxAge:     120 * time.Minute, // default value * 6
		AgeBuckets: 20,                // default value * 4
		BufCap:     2000,              // default value * 4
	})
)

func StartMetricsEndpoint(metricsPort int) {
	log.Info("Starting Prometheus /metrics endpoint on port ", metricsPort)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", metricsPort), nil))
	}()
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// NodeTracker remembers every node that ever owned metric series. A node
// not seen again for the retention period is forgotten by CleanMetrics and
// its series are deleted.
type NodeTracker struct {
	known *gocache.Cache
}

func NewNodeTracker(retention time.Duration) *NodeTracker {
	// no janitor: eviction only happens from CleanMetrics
	known := gocache.New(retention, 0)
	known.OnEvicted(func(node string, _ interface{}) {
		log.Info("Metrics removed for vanished node ", node)
		NodeAvailabilityGauge.DeleteLabelValues(node)
		RequestLatencySummary.DeleteLabelValues(node)
	})
	return &NodeTracker{known: known}
}

func (t *NodeTracker) Seen(nodes ...string) {
	for _, node := range nodes {
		t.known.SetDefault(node, struct{}{})
	}
}

func (t *NodeTracker) Known() int {
	return t.known.ItemCount()
}

func (t *NodeTracker) CleanMetrics() {
	start := time.Now()
	t.known.DeleteExpired()
	CleaningMetricsDurationSummary.Observe(float64(time.Since(start).Nanoseconds()))
}
