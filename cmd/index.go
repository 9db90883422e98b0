// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/criteo-forks/essync/common"
	"github.com/criteo-forks/essync/config"
	"github.com/criteo-forks/essync/elastic"
	"github.com/criteo-forks/essync/lifecycle"

	log "github.com/sirupsen/logrus"
)

var _ lifecycle.IndexChecker = (*elastic.Client)(nil)

type IndexCmd struct {
	Create   IndexCreateCmd   `cmd:"" help:"delete then create every configured index"`
	Drop     IndexDropCmd     `cmd:"" help:"delete every configured index"`
	Recreate IndexRecreateCmd `cmd:"" help:"delete all configured indices, then create them again"`
	Status   IndexStatusCmd   `cmd:"" help:"report configured indices missing from the cluster"`
}

type IndexCreateCmd struct{}

func (r *IndexCreateCmd) Run(g *Globals) error {
	return emit(g, lifecycle.EventBeforeCreate)
}

type IndexDropCmd struct{}

func (r *IndexDropCmd) Run(g *Globals) error {
	return emit(g, lifecycle.EventBeforeDrop)
}

type IndexRecreateCmd struct{}

func (r *IndexRecreateCmd) Run(g *Globals) error {
	return emit(g, lifecycle.EventBeforeRecreate)
}

type IndexStatusCmd struct{}

func (r *IndexStatusCmd) Run(g *Globals) error {
	return withManager(g, func(ctx context.Context, manager *lifecycle.Manager) error {
		missing, err := manager.Missing(ctx)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing indices: %s", strings.Join(missing, ", "))
		}
		log.Info("All configured indices exist")
		return nil
	})
}

func emit(g *Globals, event string) error {
	return withManager(g, func(ctx context.Context, manager *lifecycle.Manager) error {
		bus := lifecycle.NewBus()
		manager.Register(bus)
		return bus.Emit(ctx, event)
	})
}

func withManager(g *Globals, run func(ctx context.Context, manager *lifecycle.Manager) error) error {
	initLogger(g.LogLevel)

	settings, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	client, err := elastic.NewClient(settings.Elastic())
	if err != nil {
		return err
	}
	defer client.Close()

	if settings.ConsulApi() != "" && settings.ConsulService() != "" {
		seeds, err := common.DiscoverSeeds(settings.ConsulApi(), settings.ConsulService())
		if err != nil {
			return err
		}
		if len(seeds) > 0 {
			client.SetSeeds(seeds)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	if settings.SniffOnStart() {
		if err := client.Sniff(ctx); err != nil {
			log.Warning("Sniffing failed, using seed nodes: ", err)
		}
	}

	manager, err := newManager(settings, client)
	if err != nil {
		return err
	}
	log.Info("Indices concerned: ", settings.IndexNames())
	return run(ctx, manager)
}
