// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package elastic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/criteo-forks/essync/common"
	"github.com/criteo-forks/essync/prometheus"
	"github.com/criteo-forks/essync/serializer"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
)

// Response is a fully read cluster response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ResponseError is returned for every non 2xx answer of the cluster.
type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
	Body       []byte
}

func (e *ResponseError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("search cluster answered %d: %s: %s", e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("search cluster answered %d", e.StatusCode)
}

func IsNotFound(err error) bool {
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func newResponseError(status int, body []byte) *ResponseError {
	e := &ResponseError{StatusCode: status, Body: body}

	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return e
	}
	e.Type = string(v.GetStringBytes("error", "type"))
	e.Reason = string(v.GetStringBytes("error", "reason"))
	return e
}

// connectionError is a failure to get any answer from a node.
type connectionError struct {
	node    string
	timeout bool
	err     error
}

func (e *connectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.node, e.err)
}

func (e *connectionError) Unwrap() error {
	return e.err
}

// Client is the connection handle shared by everything talking to the
// cluster. It owns the connection pool and keeps it in sync with the
// cluster topology through Sniff.
type Client struct {
	cfg    Config
	http   *http.Client
	pool   *pool
	filter common.NodeFilter

	seedsMu sync.RWMutex
	seeds   []common.Descriptor

	sniffing int32
}

// NewClient validates the configured hosts and builds the initial pool from
// them. It does not contact the cluster.
func NewClient(cfg Config) (*Client, error) {
	seeds, err := common.Normalize(cfg.Hosts)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		seeds = []common.Descriptor{{}}
	}

	filter := cfg.Filter
	if filter == nil {
		allowList, err := common.NewAllowList(cfg.Hosts)
		if err != nil {
			return nil, err
		}
		filter = allowList
	}

	if cfg.DeadTimeout <= 0 {
		cfg.DeadTimeout = defaultDeadTimeout
	}
	if cfg.SniffTimeout <= 0 {
		cfg.SniffTimeout = defaultSniffTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	log.WithFields(log.Fields{"seeds": len(seeds), "request_timeout": cfg.RequestTimeout.String()}).Info("Search client initialized")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		pool:   newPool(seeds, cfg.DeadTimeout),
		filter: filter,
		seeds:  seeds,
	}, nil
}

// Nodes returns the descriptors requests are currently routed to.
func (c *Client) Nodes() []common.Descriptor {
	return c.pool.descriptors()
}

// SetSeeds replaces the hosts used to bootstrap a sniff.
func (c *Client) SetSeeds(seeds []common.Descriptor) {
	c.seedsMu.Lock()
	c.seeds = append([]common.Descriptor(nil), seeds...)
	c.seedsMu.Unlock()
}

func (c *Client) Seeds() []common.Descriptor {
	c.seedsMu.RLock()
	defer c.seedsMu.RUnlock()
	return append([]common.Descriptor(nil), c.seeds...)
}

func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Perform sends one request, retrying on other nodes when a node cannot be
// reached. The body goes through serializer.Encode.
func (c *Client) Perform(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	payload, err := serializer.Encode(body)
	if err != nil {
		prometheus.ErrorsCount.Inc()
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		conn, err := c.pool.get()
		if err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, conn, method, path, payload, c.cfg.RequestTimeout)
		if err == nil && !retryableStatus(resp.StatusCode) {
			c.pool.markLive(conn)
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			return resp, newResponseError(resp.StatusCode, resp.Body)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if err != nil {
			lastErr = err
			var connErr *connectionError
			if errors.As(err, &connErr) && connErr.timeout && !c.cfg.RetryOnTimeout {
				c.pool.markDead(conn)
				prometheus.ErrorsCount.Inc()
				return nil, err
			}
		} else {
			lastErr = newResponseError(resp.StatusCode, resp.Body)
		}

		log.WithFields(log.Fields{"node": conn.name(), "attempt": attempt + 1}).Warning("Request failed: ", lastErr)
		c.pool.markDead(conn)
		if c.cfg.SniffOnConnectionFail {
			if sniffErr := c.Sniff(ctx); sniffErr != nil {
				log.Debug("Sniff after connection failure failed: ", sniffErr)
			}
		}
	}

	prometheus.ErrorsCount.Inc()
	return nil, lastErr
}

func retryableStatus(status int) bool {
	return status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
}

func (c *Client) do(ctx context.Context, conn *connection, method, path string, payload []byte, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, conn.url(path), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Opaque-Id", uuid.New().String())
	if conn.descriptor.Credentials != "" {
		req.SetBasicAuth(conn.descriptor.BasicAuth())
	}

	log.Debug("Sending ", method, " ", path, " to ", conn.name())
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &connectionError{node: conn.name(), timeout: isTimeout(err), err: err}
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &connectionError{node: conn.name(), timeout: isTimeout(err), err: err}
	}
	prometheus.RequestLatencySummary.WithLabelValues(conn.name()).Observe(float64(time.Since(start).Nanoseconds()))

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) trySniffLock() bool {
	return atomic.CompareAndSwapInt32(&c.sniffing, 0, 1)
}

func (c *Client) sniffUnlock() {
	atomic.StoreInt32(&c.sniffing, 0)
}
