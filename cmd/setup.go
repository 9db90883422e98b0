// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/criteo-forks/essync/config"
	"github.com/criteo-forks/essync/elastic"
	"github.com/criteo-forks/essync/lifecycle"
	log "github.com/sirupsen/logrus"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config   string
	LogLevel string
}

func initLogger(level string) {
	log.SetOutput(os.Stdout)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warning("Log level not recognized, fallback to default level (INFO)")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.Info("Logger initialized")
}

func newManager(settings *config.Settings, client *elastic.Client) (*lifecycle.Manager, error) {
	dirs, err := settings.MappingsDirs()
	if err != nil {
		return nil, err
	}
	log.Debug("Looking for index mappings in ", dirs)
	return lifecycle.NewManager(client, lifecycle.NewDirRegistry(dirs...), settings), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received ", sig, ", shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
	return ctx, cancel
}
