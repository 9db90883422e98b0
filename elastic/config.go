// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package elastic

import (
	"net/http"
	"time"

	"github.com/criteo-forks/essync/common"
	"github.com/criteo-forks/essync/prometheus"
)

const (
	defaultPort           = 9200
	defaultRequestTimeout = 10 * time.Second
	defaultSniffTimeout   = 10 * time.Second
	defaultDeadTimeout    = 60 * time.Second
	defaultMaxRetries     = 3
)

// Config describes how to reach a cluster. Hosts are the seed hosts and,
// unless Filter is set, also the allow-list applied on every sniff.
type Config struct {
	Hosts  interface{}
	Filter common.NodeFilter

	RequestTimeout        time.Duration
	SniffTimeout          time.Duration
	SniffOnConnectionFail bool
	RetryOnTimeout        bool
	MaxRetries            int
	DeadTimeout           time.Duration

	Transport http.RoundTripper
	Tracker   *prometheus.NodeTracker
}

// DefaultConfig mirrors the settings the application historically used.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:        defaultRequestTimeout,
		SniffTimeout:          defaultSniffTimeout,
		SniffOnConnectionFail: true,
		RetryOnTimeout:        true,
		MaxRetries:            defaultMaxRetries,
		DeadTimeout:           defaultDeadTimeout,
	}
}
