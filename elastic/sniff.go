// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package elastic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/criteo-forks/essync/common"
	"github.com/criteo-forks/essync/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
)

const sniffPath = "/_nodes/_all/http"

var (
	ErrSniffInProgress = errors.New("sniff already in progress")
	ErrNoNodeAdmitted  = errors.New("no sniffed node was admitted")
)

// Sniff asks the cluster for its nodes and routes requests to the ones the
// node filter admits. Current connections are asked first, then the seeds.
// The pool is left untouched when no node could be admitted.
func (c *Client) Sniff(ctx context.Context) error {
	if !c.trySniffLock() {
		return ErrSniffInProgress
	}
	defer c.sniffUnlock()

	start := time.Now()
	defer func() {
		prometheus.SniffDurationSummary.Observe(float64(time.Since(start).Nanoseconds()))
	}()

	candidates := c.pool.connections()
	for _, seed := range c.Seeds() {
		candidates = append(candidates, newConnection(seed))
	}

	var lastErr error = ErrNoLiveConnection
	for _, conn := range candidates {
		nodes, err := c.discover(ctx, conn)
		if err != nil {
			log.Debug("Sniffing through ", conn.name(), " failed: ", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		admitted := c.admit(nodes)
		if len(admitted) == 0 {
			prometheus.ErrorsCount.Inc()
			return ErrNoNodeAdmitted
		}

		c.pool.replace(admitted)
		if c.cfg.Tracker != nil {
			for _, conn := range c.pool.connections() {
				c.cfg.Tracker.Seen(conn.name())
			}
		}
		log.WithFields(log.Fields{"discovered": len(nodes), "admitted": len(admitted)}).Info("Cluster topology refreshed")
		return nil
	}

	prometheus.ErrorsCount.Inc()
	return fmt.Errorf("sniffing failed: %w", lastErr)
}

func (c *Client) admit(nodes []common.DiscoveredNode) []common.Descriptor {
	var admitted []common.Descriptor
	for _, node := range nodes {
		d := c.filter.Admit(node)
		if d == nil {
			log.WithFields(log.Fields{"node": node.Name, "host": node.Host}).Debug("Node filtered out")
			prometheus.NodeAdmissionCount.WithLabelValues("rejected").Inc()
			continue
		}
		log.WithFields(log.Fields{"node": node.Name, "host": node.Host, "route": d.String()}).Debug("Node admitted")
		prometheus.NodeAdmissionCount.WithLabelValues("admitted").Inc()
		admitted = append(admitted, *d)
	}
	return admitted
}

func (c *Client) discover(ctx context.Context, conn *connection) ([]common.DiscoveredNode, error) {
	resp, err := c.do(ctx, conn, http.MethodGet, sniffPath, nil, c.cfg.SniffTimeout)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newResponseError(resp.StatusCode, resp.Body)
	}
	return parseNodes(resp.Body, conn.descriptor)
}

// parseNodes reads a nodes info answer. Candidates inherit scheme, TLS,
// credentials and path prefix from the connection that answered.
func parseNodes(body []byte, via common.Descriptor) ([]common.DiscoveredNode, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse nodes info: %w", err)
	}

	nodesObject := v.GetObject("nodes")
	if nodesObject == nil {
		return nil, errors.New("nodes info has no nodes")
	}

	var nodes []common.DiscoveredNode
	var parseErr error
	nodesObject.Visit(func(id []byte, node *fastjson.Value) {
		if parseErr != nil {
			return
		}
		address := string(node.GetStringBytes("http", "publish_address"))
		if address == "" {
			log.Debug("Node ", string(id), " has no http publish address, skipping")
			return
		}

		candidate, err := candidateFromAddress(address, via)
		if err != nil {
			parseErr = err
			return
		}
		nodes = append(nodes, common.DiscoveredNode{
			Name:      string(node.GetStringBytes("name")),
			Host:      string(node.GetStringBytes("host")),
			Candidate: candidate,
		})
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return nodes, nil
}

// candidateFromAddress reads publish addresses such as "10.0.0.1:9200" or
// "es1.example.com/10.0.0.1:9200", preferring the hostname.
func candidateFromAddress(address string, via common.Descriptor) (common.Descriptor, error) {
	hostname := ""
	if i := strings.Index(address, "/"); i >= 0 {
		hostname, address = address[:i], address[i+1:]
	}

	host, portString, err := net.SplitHostPort(address)
	if err != nil {
		return common.Descriptor{}, fmt.Errorf("invalid publish address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portString)
	if err != nil {
		return common.Descriptor{}, fmt.Errorf("invalid publish address %q: %w", address, err)
	}
	if hostname != "" {
		host = hostname
	}

	return common.Descriptor{
		Host:        host,
		Port:        port,
		Scheme:      via.Scheme,
		UseTLS:      via.UseTLS,
		Credentials: via.Credentials,
		PathPrefix:  via.PathPrefix,
	}, nil
}
