// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/criteo-forks/essync/prometheus"
	log "github.com/sirupsen/logrus"
)

// IndexAdmin is the part of the search client the manager needs.
type IndexAdmin interface {
	DeleteIndex(ctx context.Context, name string, ignoreNotFound bool) error
	CreateIndex(ctx context.Context, name string, body []byte) error
}

// IndexChecker is implemented by admins able to tell whether an index exists.
type IndexChecker interface {
	IndexExists(ctx context.Context, name string) (bool, error)
}

// IndexSource returns the index names currently configured. It is asked
// again on every event.
type IndexSource interface {
	IndexNames() []string
}

type IndexSourceFunc func() []string

func (f IndexSourceFunc) IndexNames() []string {
	return f()
}

// IndexNames returns the sorted, deduplicated union of the collections
// target indices and the default index.
func IndexNames(collections map[string]string, defaultIndex string) []string {
	seen := make(map[string]struct{}, len(collections)+1)
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, index := range collections {
		add(index)
	}
	add(defaultIndex)
	sort.Strings(names)
	return names
}

// Manager keeps the cluster indices in line with the application data
// lifecycle. It holds no lock: concurrent events for the same indices must
// be serialized by the caller.
type Manager struct {
	admin    IndexAdmin
	registry MappingRegistry
	source   IndexSource
}

func NewManager(admin IndexAdmin, registry MappingRegistry, source IndexSource) *Manager {
	if registry == nil {
		registry = MapRegistry{}
	}
	return &Manager{admin: admin, registry: registry, source: source}
}

// Register subscribes the manager to the create, drop and recreate events.
func (m *Manager) Register(d Dispatcher) {
	d.Subscribe(EventBeforeCreate, m.CreateIndices)
	d.Subscribe(EventBeforeDrop, m.DeleteIndices)
	d.Subscribe(EventBeforeRecreate, m.RecreateIndices)
}

func (m *Manager) names() []string {
	names := m.source.IndexNames()
	seen := make(map[string]struct{}, len(names))
	unique := names[:0:0]
	for _, name := range names {
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	return unique
}

// CreateIndices recreates every configured index from scratch: an existing
// index is deleted first, then created with its mapping body.
func (m *Manager) CreateIndices(ctx context.Context) error {
	for _, name := range m.names() {
		if err := m.deleteIndex(ctx, name); err != nil {
			return err
		}

		body, found, err := m.registry.MappingBody(name)
		if err != nil {
			prometheus.ErrorsCount.Inc()
			return err
		}
		if !found {
			log.WithField("index", name).Info("No mapping found, creating index with default mapping")
		}

		err = m.admin.CreateIndex(ctx, name, body)
		prometheus.IndexOperationCount.WithLabelValues("create", name, prometheus.Result(err)).Inc()
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"index": name, "mapping": found}).Info("Index created")
	}
	return nil
}

// DeleteIndices deletes every configured index. Missing indices are fine.
func (m *Manager) DeleteIndices(ctx context.Context) error {
	for _, name := range m.names() {
		if err := m.deleteIndex(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// RecreateIndices deletes all configured indices before creating any.
func (m *Manager) RecreateIndices(ctx context.Context) error {
	if err := m.DeleteIndices(ctx); err != nil {
		return err
	}
	return m.CreateIndices(ctx)
}

// Missing returns the configured indices the cluster does not hold.
func (m *Manager) Missing(ctx context.Context) ([]string, error) {
	checker, ok := m.admin.(IndexChecker)
	if !ok {
		return nil, fmt.Errorf("index admin %T cannot check for existing indices", m.admin)
	}

	var missing []string
	for _, name := range m.names() {
		exists, err := checker.IndexExists(ctx, name)
		if err != nil {
			prometheus.ErrorsCount.Inc()
			return nil, err
		}
		log.WithFields(log.Fields{"index": name, "exists": exists}).Debug("Index checked")
		if !exists {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func (m *Manager) deleteIndex(ctx context.Context, name string) error {
	err := m.admin.DeleteIndex(ctx, name, true)
	prometheus.IndexOperationCount.WithLabelValues("delete", name, prometheus.Result(err)).Inc()
	if err != nil {
		return err
	}
	log.WithField("index", name).Info("Index removed if present")
	return nil
}
