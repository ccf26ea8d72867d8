package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/event"
)

// PoolStatsCollector implements prometheus.Collector for pgxpool connection metrics.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string

	acquiredConns    *prometheus.Desc
	idleConns        *prometheus.Desc
	totalConns       *prometheus.Desc
	maxConns         *prometheus.Desc
	acquireCount     *prometheus.Desc
	acquireDuration  *prometheus.Desc
	canceledAcquires *prometheus.Desc
	emptyAcquires    *prometheus.Desc
}

// NewPoolStatsCollector creates a collector exporting pgxpool statistics.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	labels := []string{"service"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("db_pool_"+name, help, labels, nil)
	}
	return &PoolStatsCollector{
		pool:             pool,
		service:          service,
		acquiredConns:    desc("acquired_connections", "Number of currently acquired connections"),
		idleConns:        desc("idle_connections", "Number of currently idle connections"),
		totalConns:       desc("total_connections", "Total number of connections in the pool"),
		maxConns:         desc("max_connections", "Maximum number of connections allowed"),
		acquireCount:     desc("acquire_count_total", "Total number of connection acquires"),
		acquireDuration:  desc("acquire_duration_seconds_total", "Total time spent acquiring connections in seconds"),
		canceledAcquires: desc("canceled_acquire_count_total", "Total number of canceled connection acquires"),
		emptyAcquires:    desc("empty_acquire_count_total", "Total number of acquires that had to wait for a connection"),
	}
}

// Describe sends the descriptors of all metrics to the provided channel.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.acquireDuration
	ch <- c.canceledAcquires
	ch <- c.emptyAcquires
}

// Collect reads current pool statistics and sends them as Prometheus metrics.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, c.service)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, c.service)
	}

	gauge(c.acquiredConns, float64(stat.AcquiredConns()))
	gauge(c.idleConns, float64(stat.IdleConns()))
	gauge(c.totalConns, float64(stat.TotalConns()))
	gauge(c.maxConns, float64(stat.MaxConns()))
	counter(c.acquireCount, float64(stat.AcquireCount()))
	counter(c.acquireDuration, stat.AcquireDuration().Seconds())
	counter(c.canceledAcquires, float64(stat.CanceledAcquireCount()))
	counter(c.emptyAcquires, float64(stat.EmptyAcquireCount()))
}

// RegisterPoolMetrics registers a pgxpool collector with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}

// MongoPoolMetrics tracks the MongoDB driver's connection pool through its
// event monitor.
type MongoPoolMetrics struct {
	checkedOut prometheus.Gauge
	open       prometheus.Gauge
	failures   prometheus.Counter
}

// NewMongoPoolMetrics creates the pool gauges and registers them with reg.
func NewMongoPoolMetrics(reg prometheus.Registerer, service string) *MongoPoolMetrics {
	labels := prometheus.Labels{"service": service}
	m := &MongoPoolMetrics{
		checkedOut: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mongo_pool_checked_out_connections",
			Help:        "Connections currently checked out of the MongoDB pool",
			ConstLabels: labels,
		}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mongo_pool_open_connections",
			Help:        "Connections currently open to MongoDB",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mongo_pool_checkout_failures_total",
			Help:        "Connection checkouts that failed",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.checkedOut, m.open, m.failures)
	return m
}

// Monitor returns the driver hook feeding these metrics.
func (m *MongoPoolMetrics) Monitor() *event.PoolMonitor {
	return &event.PoolMonitor{Event: m.handle}
}

func (m *MongoPoolMetrics) handle(e *event.PoolEvent) {
	switch e.Type {
	case event.ConnectionCreated:
		m.open.Inc()
	case event.ConnectionClosed:
		m.open.Dec()
	case event.GetSucceeded:
		m.checkedOut.Inc()
	case event.ConnectionReturned:
		m.checkedOut.Dec()
	case event.GetFailed:
		m.failures.Inc()
	}
}
