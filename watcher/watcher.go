package watcher

import (
	"context"
	"time"

	"github.com/criteo-forks/essync/common"
	"github.com/criteo-forks/essync/elastic"
	"github.com/criteo-forks/essync/prometheus"
	log "github.com/sirupsen/logrus"
)

var (
	minSniffPeriod    = 10 * time.Second
	minConsulPeriod   = 60 * time.Second
	minCleaningPeriod = 240 * time.Second
)

// Client is what the watcher needs from the search client.
type Client interface {
	Sniff(ctx context.Context) error
	SetSeeds(seeds []common.Descriptor)
}

var _ Client = (*elastic.Client)(nil)

type seedDiscoverer func(consulApi, service string) ([]common.Descriptor, error)

// Watcher keeps the client connection pool in sync with the cluster:
// periodic sniffing, Consul seed refresh and pruning of metrics of nodes
// that left.
type Watcher struct {
	client  Client
	tracker *prometheus.NodeTracker

	consulApi     string
	consulService string
	discoverSeeds seedDiscoverer

	sniffTicker        *time.Ticker
	consulTicker       *time.Ticker
	cleanMetricsTicker *time.Ticker

	controlChan chan bool
	done        chan struct{}
}

// NewWatcher prepares the tickers. Consul seed refresh is enabled when both
// consulApi and consulService are set.
func NewWatcher(client Client, tracker *prometheus.NodeTracker, consulApi, consulService string, sniffPeriod, consulPeriod, cleaningPeriod time.Duration) *Watcher {
	log.Info("Initializing tickers")
	if sniffPeriod < minSniffPeriod {
		log.Warning("Sniffing more than 6 times a minute is not allowed, fallback to ", minSniffPeriod.String())
		sniffPeriod = minSniffPeriod
	}
	log.Info("Sniffing interval: ", sniffPeriod.String())

	if cleaningPeriod < minCleaningPeriod {
		log.Warning("Cleaning Metrics faster than every 4 minutes is not allowed, fallback to ", minCleaningPeriod.String())
		cleaningPeriod = minCleaningPeriod
	}
	log.Info("Metrics pruning interval: ", cleaningPeriod.String())

	w := &Watcher{
		client:        client,
		tracker:       tracker,
		consulApi:     consulApi,
		consulService: consulService,
		discoverSeeds: common.DiscoverSeeds,

		sniffTicker:        time.NewTicker(sniffPeriod),
		cleanMetricsTicker: time.NewTicker(cleaningPeriod),

		controlChan: make(chan bool),
		done:        make(chan struct{}),
	}

	if w.consulEnabled() {
		if consulPeriod < minConsulPeriod {
			log.Warning("Refreshing discovery more than once a minute is not allowed, fallback to ", minConsulPeriod.String())
			consulPeriod = minConsulPeriod
		}
		log.Info("Consul seeds update interval: ", consulPeriod.String())
		w.consulTicker = time.NewTicker(consulPeriod)
	}
	return w
}

func (w *Watcher) consulEnabled() bool {
	return w.consulApi != "" && w.consulService != ""
}

// Bootstrap fetches seeds from Consul, then sniffs once if asked to.
func (w *Watcher) Bootstrap(ctx context.Context, sniffOnStart bool) error {
	if w.consulEnabled() {
		log.Info("Discovering seed nodes for the first time")
		if err := w.refreshSeeds(); err != nil {
			return err
		}
	}
	if sniffOnStart {
		log.Info("Sniffing cluster topology on start")
		return w.client.Sniff(ctx)
	}
	return nil
}

func (w *Watcher) refreshSeeds() error {
	seeds, err := w.discoverSeeds(w.consulApi, w.consulService)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		log.Warning("Consul service ", w.consulService, " has no instance, keeping previous seeds")
		return nil
	}
	w.client.SetSeeds(seeds)
	log.Info("Updated seeds from Consul: ", len(seeds), " nodes")
	return nil
}

// Watch runs until Stop is called or ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) {
	defer close(w.done)

	var consulTick <-chan time.Time
	if w.consulTicker != nil {
		consulTick = w.consulTicker.C
	}

	for {
		select {
		case <-w.controlChan:
			log.Println("Terminating watcher")
			w.stopTickers()
			return

		case <-ctx.Done():
			log.Println("Terminating watcher: ", ctx.Err())
			w.stopTickers()
			return

		case <-w.cleanMetricsTicker.C:
			log.Info("Cleaning Prometheus metrics for unreferenced nodes")
			w.tracker.CleanMetrics()

		case <-consulTick:
			log.Debug("Starting updating seeds from Consul")
			if err := w.refreshSeeds(); err != nil {
				log.Error("Unable to update seeds, using last known state: ", err)
				prometheus.ErrorsCount.Inc()
			}

		case <-w.sniffTicker.C:
			log.Debug("Starting sniffing cluster topology")
			if err := w.client.Sniff(ctx); err != nil {
				log.Error("Unable to sniff cluster, keeping current nodes: ", err)
			}
		}
	}
}

func (w *Watcher) stopTickers() {
	w.sniffTicker.Stop()
	w.cleanMetricsTicker.Stop()
	if w.consulTicker != nil {
		w.consulTicker.Stop()
	}
}

// Stop ends Watch and waits for it to return.
func (w *Watcher) Stop() {
	close(w.controlChan)
	<-w.done
}
