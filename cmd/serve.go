// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package cmd

import (
	"net/http"
	"time"

	"github.com/criteo-forks/essync/config"
	"github.com/criteo-forks/essync/elastic"
	"github.com/criteo-forks/essync/lifecycle"
	"github.com/criteo-forks/essync/prometheus"
	"github.com/criteo-forks/essync/watcher"

	log "github.com/sirupsen/logrus"
)

type ServeCmd struct {
	AdminListen string `help:"address of the index lifecycle admin endpoint, disabled when empty (overrides admin_listen)"`
}

func (r *ServeCmd) Run(g *Globals) error {
	initLogger(g.LogLevel)

	settings, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	settings.Watch()

	tracker := prometheus.NewNodeTracker(settings.CleaningPeriod())
	esConfig := settings.Elastic()
	esConfig.Tracker = tracker
	client, err := elastic.NewClient(esConfig)
	if err != nil {
		return err
	}
	defer client.Close()
	for _, node := range client.Nodes() {
		log.Info("Seed node: ", node)
	}

	log.Info("Entering serve main loop")
	prometheus.StartMetricsEndpoint(settings.MetricsPort())

	ctx, cancel := signalContext()
	defer cancel()

	bus := lifecycle.NewBus()
	manager, err := newManager(settings, client)
	if err != nil {
		return err
	}
	manager.Register(bus)

	adminListen := r.AdminListen
	if adminListen == "" {
		adminListen = settings.AdminListen()
	}
	if adminListen != "" {
		srv := &http.Server{
			Addr:              adminListen,
			Handler:           NewAdminRouter(bus),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("Starting admin endpoint on ", adminListen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal(err)
			}
		}()
		defer srv.Close()
	}

	w := watcher.NewWatcher(client, tracker, settings.ConsulApi(), settings.ConsulService(),
		settings.SnifferInterval(), settings.ConsulPeriod(), settings.CleaningPeriod())
	if err := w.Bootstrap(ctx, settings.SniffOnStart()); err != nil {
		log.Error("Initial discovery failed, routing to seed nodes: ", err)
		prometheus.ErrorsCount.Inc()
	}
	go w.Watch(ctx)

	<-ctx.Done()
	w.Stop()
	return nil
}
