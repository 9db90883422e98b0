package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/criteo-forks/essync/common"
	"github.com/criteo-forks/essync/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu     sync.Mutex
	sniffs int
	seeds  [][]common.Descriptor
	err    error
}

func (c *fakeClient) Sniff(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sniffs++
	return c.err
}

func (c *fakeClient) SetSeeds(seeds []common.Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeds = append(c.seeds, seeds)
}

func (c *fakeClient) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sniffs, len(c.seeds)
}

func shortPeriods(t *testing.T) {
	sniff, consul, cleaning := minSniffPeriod, minConsulPeriod, minCleaningPeriod
	minSniffPeriod, minConsulPeriod, minCleaningPeriod = time.Millisecond, time.Millisecond, time.Millisecond
	t.Cleanup(func() {
		minSniffPeriod, minConsulPeriod, minCleaningPeriod = sniff, consul, cleaning
	})
}

func TestNewWatcherWithoutConsul(t *testing.T) {
	w := NewWatcher(&fakeClient{}, prometheus.NewNodeTracker(time.Minute), "", "", time.Millisecond, time.Millisecond, time.Millisecond)
	defer w.stopTickers()

	assert.Nil(t, w.consulTicker)
	assert.False(t, w.consulEnabled())
}

func TestBootstrap(t *testing.T) {
	client := &fakeClient{}
	w := NewWatcher(client, prometheus.NewNodeTracker(time.Minute), "127.0.0.1:8500", "elasticsearch-all", time.Minute, time.Minute, time.Hour)
	defer w.stopTickers()
	w.discoverSeeds = func(consulApi, service string) ([]common.Descriptor, error) {
		assert.Equal(t, "127.0.0.1:8500", consulApi)
		assert.Equal(t, "elasticsearch-all", service)
		return []common.Descriptor{{Host: "10.0.0.1", Port: 9200}}, nil
	}

	require.NoError(t, w.Bootstrap(context.Background(), true))
	sniffs, seeds := client.counts()
	assert.Equal(t, 1, sniffs)
	assert.Equal(t, 1, seeds)
	assert.Equal(t, []common.Descriptor{{Host: "10.0.0.1", Port: 9200}}, client.seeds[0])

	require.NoError(t, w.Bootstrap(context.Background(), false))
	sniffs, _ = client.counts()
	assert.Equal(t, 1, sniffs)
}

func TestBootstrapErrors(t *testing.T) {
	boom := errors.New("consul unreachable")
	client := &fakeClient{}
	w := NewWatcher(client, prometheus.NewNodeTracker(time.Minute), "127.0.0.1:8500", "elasticsearch-all", time.Minute, time.Minute, time.Hour)
	defer w.stopTickers()
	w.discoverSeeds = func(string, string) ([]common.Descriptor, error) { return nil, boom }

	assert.Same(t, boom, w.Bootstrap(context.Background(), true))
	sniffs, _ := client.counts()
	assert.Equal(t, 0, sniffs)

	// an empty service keeps the configured seeds
	w.discoverSeeds = func(string, string) ([]common.Descriptor, error) { return nil, nil }
	client.err = errors.New("sniff failed")
	assert.EqualError(t, w.Bootstrap(context.Background(), true), "sniff failed")
	_, seeds := client.counts()
	assert.Equal(t, 0, seeds)
}

func TestWatchLoop(t *testing.T) {
	shortPeriods(t)

	client := &fakeClient{}
	tracker := prometheus.NewNodeTracker(time.Millisecond)
	tracker.Seen("http://vanished:9200")
	w := NewWatcher(client, tracker, "127.0.0.1:8500", "elasticsearch-all", 5*time.Millisecond, 5*time.Millisecond, 5*time.Millisecond)
	w.discoverSeeds = func(string, string) ([]common.Descriptor, error) {
		return []common.Descriptor{{Host: "10.0.0.1"}}, nil
	}

	go w.Watch(context.Background())

	assert.Eventually(t, func() bool {
		sniffs, seeds := client.counts()
		return sniffs >= 2 && seeds >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return tracker.Known() == 0 }, 2*time.Second, 5*time.Millisecond)

	w.Stop()
	sniffs, _ := client.counts()
	time.Sleep(20 * time.Millisecond)
	after, _ := client.counts()
	assert.Equal(t, sniffs, after)
}

func TestWatchStopsWithContext(t *testing.T) {
	w := NewWatcher(&fakeClient{}, prometheus.NewNodeTracker(time.Minute), "", "", time.Minute, time.Minute, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Watch(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	w.Stop()
}
