package database

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/event"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "storefront")

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, 8, n)
}

func TestMongoPoolMetrics_TracksEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMongoPoolMetrics(reg, "storefront")
	mon := m.Monitor()

	for _, typ := range []string{
		event.ConnectionCreated, event.ConnectionCreated,
		event.GetSucceeded, event.GetSucceeded, event.ConnectionReturned,
		event.GetFailed,
		event.ConnectionClosed,
	} {
		mon.Event(&event.PoolEvent{Type: typ})
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.open))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.checkedOut))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failures))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}
