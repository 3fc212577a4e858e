package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describePool(t *testing.T, c *PoolStatsCollector) []*prometheus.Desc {
	t.Helper()
	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)
	var descs []*prometheus.Desc
	for d := range ch {
		descs = append(descs, d)
	}
	return descs
}

func TestPoolStatsCollector_ImplementsCollector(t *testing.T) {
	var _ prometheus.Collector = NewPoolStatsCollector(nil, "storefront")
}

func TestPoolStatsCollector_DescribesAllStats(t *testing.T) {
	// Describe works without a live pool; only Collect touches it.
	c := NewPoolStatsCollector(nil, "storefront")
	require.NotNil(t, c)

	descs := describePool(t, c)
	assert.Len(t, descs, 12)
}

func TestPoolStatsCollector_DescriptorNames(t *testing.T) {
	c := NewPoolStatsCollector(nil, "storefront")
	descs := describePool(t, c)

	joined := make([]string, len(descs))
	for i, d := range descs {
		joined[i] = d.String()
	}
	all := strings.Join(joined, "\n")

	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_constructing_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_canceled_acquire_count_total",
		"db_pool_empty_acquire_count_total",
		"db_pool_new_connections_total",
		"db_pool_max_lifetime_destroy_total",
		"db_pool_max_idle_destroy_total",
	} {
		assert.Contains(t, all, name)
	}
}
