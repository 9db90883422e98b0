// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/criteo-forks/essync/elastic"
	"github.com/criteo-forks/essync/lifecycle"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "ESSYNC"

// Settings wraps the application configuration. Connection settings are
// read once by Elastic; index names are read again on every IndexNames
// call so a reloaded file is taken into account.
type Settings struct {
	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("es_sniff_timeout", 10*time.Second)
	v.SetDefault("es_sniffer_interval", 60*time.Second)
	v.SetDefault("es_sniff_on_start", true)
	v.SetDefault("es_sniff_on_connection_fail", true)
	v.SetDefault("es_retry_on_timeout", true)
	v.SetDefault("es_max_retries", 3)
	v.SetDefault("es_dead_timeout", 60*time.Second)
	v.SetDefault("search_index_default", "records")
	v.SetDefault("search_collections", map[string]string{})
	v.SetDefault("search_mappings_dirs", []string{})
	v.SetDefault("consul_period", 120*time.Second)
	v.SetDefault("cleaning_period", 600*time.Second)
	v.SetDefault("metrics_port", 2112)
}

// Load reads the configuration file at path, if any, and the ESSYNC_*
// environment variables.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("unable to expand config path %s: %w", path, err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config %s: %w", expanded, err)
		}
		log.Info("Configuration loaded from ", v.ConfigFileUsed())
	}
	return &Settings{v: v}, nil
}

// Watch reloads the configuration file whenever it changes.
func (s *Settings) Watch() {
	if s.v.ConfigFileUsed() == "" {
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed: ", e.Name)
	})
	s.v.WatchConfig()
}

// Hosts returns es_hosts as configured: nil, a string or a list of host
// strings and host maps.
func (s *Settings) Hosts() interface{} {
	hosts := s.v.Get("es_hosts")
	if str, ok := hosts.(string); ok && strings.Contains(str, ",") {
		// comma separated list, as set from the environment
		var list []interface{}
		for _, h := range strings.Split(str, ",") {
			if h = strings.TrimSpace(h); h != "" {
				list = append(list, h)
			}
		}
		return list
	}
	return hosts
}

// Elastic builds the search client configuration.
func (s *Settings) Elastic() elastic.Config {
	cfg := elastic.DefaultConfig()
	cfg.Hosts = s.Hosts()
	cfg.SniffTimeout = s.v.GetDuration("es_sniff_timeout")
	cfg.SniffOnConnectionFail = s.v.GetBool("es_sniff_on_connection_fail")
	cfg.RetryOnTimeout = s.v.GetBool("es_retry_on_timeout")
	cfg.MaxRetries = s.v.GetInt("es_max_retries")
	cfg.DeadTimeout = s.v.GetDuration("es_dead_timeout")
	if s.v.IsSet("es_request_timeout") {
		cfg.RequestTimeout = s.v.GetDuration("es_request_timeout")
	}
	return cfg
}

func (s *Settings) SnifferInterval() time.Duration {
	return s.v.GetDuration("es_sniffer_interval")
}

func (s *Settings) SniffOnStart() bool {
	return s.v.GetBool("es_sniff_on_start")
}

// IndexNames implements lifecycle.IndexSource.
func (s *Settings) IndexNames() []string {
	return lifecycle.IndexNames(s.v.GetStringMapString("search_collections"), s.v.GetString("search_index_default"))
}

func (s *Settings) MappingsDirs() ([]string, error) {
	var dirs []string
	for _, dir := range s.v.GetStringSlice("search_mappings_dirs") {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, fmt.Errorf("unable to expand mappings dir %s: %w", dir, err)
		}
		dirs = append(dirs, expanded)
	}
	return dirs, nil
}

func (s *Settings) ConsulApi() string {
	return s.v.GetString("consul_api")
}

func (s *Settings) ConsulService() string {
	return s.v.GetString("consul_service")
}

func (s *Settings) ConsulPeriod() time.Duration {
	return s.v.GetDuration("consul_period")
}

func (s *Settings) CleaningPeriod() time.Duration {
	return s.v.GetDuration("cleaning_period")
}

func (s *Settings) MetricsPort() int {
	return s.v.GetInt("metrics_port")
}

func (s *Settings) AdminListen() string {
	return s.v.GetString("admin_listen")
}
