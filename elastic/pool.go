// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package elastic

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/criteo-forks/essync/common"
	"github.com/criteo-forks/essync/prometheus"
	log "github.com/sirupsen/logrus"
)

var ErrNoLiveConnection = errors.New("no connection available")

type connection struct {
	descriptor common.Descriptor
	base       string

	failures  int
	deadUntil time.Time
}

func newConnection(d common.Descriptor) *connection {
	host := d.Host
	if host == "" {
		host = "localhost"
	}
	port := d.Port
	if port == 0 {
		port = defaultPort
	}
	scheme := d.Scheme
	if d.UseTLS {
		scheme = "https"
	} else if scheme == "" {
		scheme = "http"
	}

	return &connection{
		descriptor: d,
		base:       fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)), d.PathPrefix),
	}
}

func (c *connection) name() string {
	return c.base
}

func (c *connection) url(path string) string {
	return c.base + path
}

// pool hands out live connections round-robin. Failed connections are put
// aside until their dead timeout, which doubles with every consecutive
// failure.
type pool struct {
	mu          sync.Mutex
	live        []*connection
	dead        []*connection
	next        int
	deadTimeout time.Duration
	now         func() time.Time
}

func newPool(descriptors []common.Descriptor, deadTimeout time.Duration) *pool {
	p := &pool{deadTimeout: deadTimeout, now: time.Now}
	p.replace(descriptors)
	return p
}

// replace routes to descriptors from now on. A node that already had a
// connection keeps it, so a dead node stays dead until its timeout is over.
func (p *pool) replace(descriptors []common.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing := make(map[string]*connection, len(p.live)+len(p.dead))
	for _, c := range p.live {
		existing[c.name()] = c
	}
	for _, c := range p.dead {
		existing[c.name()] = c
	}

	live := make([]*connection, 0, len(descriptors))
	var dead []*connection
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		c := newConnection(d)
		if _, ok := seen[c.name()]; ok {
			continue
		}
		seen[c.name()] = struct{}{}

		if previous, ok := existing[c.name()]; ok {
			c.failures, c.deadUntil = previous.failures, previous.deadUntil
		}
		if c.failures > 0 && p.now().Before(c.deadUntil) {
			dead = append(dead, c)
		} else {
			live = append(live, c)
		}
	}

	p.live = live
	p.dead = dead
	p.next = 0
	prometheus.PoolSize.Set(float64(len(p.live)))
}

func (p *pool) get() (*connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	stillDead := p.dead[:0]
	for _, c := range p.dead {
		if now.After(c.deadUntil) {
			log.Debug("Resurrecting connection ", c.name())
			p.live = append(p.live, c)
		} else {
			stillDead = append(stillDead, c)
		}
	}
	p.dead = stillDead

	if len(p.live) == 0 {
		if len(p.dead) == 0 {
			return nil, ErrNoLiveConnection
		}
		// every node failed recently: retry the one that failed first
		oldest := 0
		for i, c := range p.dead {
			if c.deadUntil.Before(p.dead[oldest].deadUntil) {
				oldest = i
			}
		}
		c := p.dead[oldest]
		p.dead = append(p.dead[:oldest], p.dead[oldest+1:]...)
		p.live = append(p.live, c)
		log.Debug("Forcing resurrection of connection ", c.name())
	}

	c := p.live[p.next%len(p.live)]
	p.next++
	return c, nil
}

func (p *pool) markDead(c *connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, l := range p.live {
		if l.name() == c.name() {
			c = l
			p.live = append(p.live[:i], p.live[i+1:]...)
			c.failures++
			timeout := p.deadTimeout * time.Duration(1<<uint(minInt(c.failures-1, 5)))
			c.deadUntil = p.now().Add(timeout)
			p.dead = append(p.dead, c)
			log.WithFields(log.Fields{"node": c.name(), "retry_in": timeout.String()}).Warning("Connection marked dead")
			prometheus.NodeAvailabilityGauge.WithLabelValues(c.name()).Set(0)
			return
		}
	}
}

func (p *pool) markLive(c *connection) {
	p.mu.Lock()
	c.failures = 0
	p.mu.Unlock()
	prometheus.NodeAvailabilityGauge.WithLabelValues(c.name()).Set(1)
}

func (p *pool) connections() []*connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := make([]*connection, 0, len(p.live)+len(p.dead))
	all = append(all, p.live...)
	return append(all, p.dead...)
}

func (p *pool) descriptors() []common.Descriptor {
	var ds []common.Descriptor
	for _, c := range p.connections() {
		ds = append(ds, c.descriptor)
	}
	return ds
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
