// Package metrics collects run metrics and writes them as a Prometheus
// text file next to the report.
package metrics

import (
	"bytes"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Collector owns a private registry so parallel runs never collide.
type Collector struct {
	registry       *prometheus.Registry
	recordsTotal   *prometheus.CounterVec
	recordDuration *prometheus.HistogramVec
	waitDuration   *prometheus.HistogramVec
	httpAttempts   *prometheus.CounterVec
	runInfo        *prometheus.GaugeVec
}

// NewCollector creates a Collector with every series registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pageflow_records_total", Help: "Records executed, by outcome"},
			[]string{"scenario", "status"},
		),
		recordDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageflow_record_duration_seconds",
				Help:    "Record duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scenario", "status"},
		),
		waitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageflow_wait_duration_seconds",
				Help:    "Time spent polling wait conditions",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"outcome"},
		),
		httpAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pageflow_http_attempts_total", Help: "HTTP attempts, by method and status"},
			[]string{"method", "status"},
		),
		runInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pageflow_run_info", Help: "Run metadata"},
			[]string{"run_id", "driver", "scenario"},
		),
	}
	c.registry.MustRegister(c.recordsTotal, c.recordDuration, c.waitDuration, c.httpAttempts, c.runInfo)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveRecord records one finished record.
func (c *Collector) ObserveRecord(scenario string, status core.Status, duration time.Duration) {
	c.recordsTotal.WithLabelValues(scenario, status.String()).Inc()
	c.recordDuration.WithLabelValues(scenario, status.String()).Observe(duration.Seconds())
}

// ObserveWait matches wait.Observer.
func (c *Collector) ObserveWait(_ string, elapsed time.Duration, err error) {
	outcome := "met"
	var wte *core.WaitTimeoutError
	switch {
	case err == nil:
	case errors.As(err, &wte) && wte.Cancelled():
		outcome = "cancelled"
	case errors.As(err, &wte):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	c.waitDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveHTTP matches httpclient.Observer.
func (c *Collector) ObserveHTTP(method string, status, _ int, err error) {
	label := strconv.Itoa(status)
	if err != nil && status == 0 {
		label = "error"
	}
	c.httpAttempts.WithLabelValues(method, label).Inc()
}

// SetRunInfo records run metadata as a constant gauge.
func (c *Collector) SetRunInfo(runID, driver, scenario string) {
	c.runInfo.WithLabelValues(runID, driver, scenario).Set(1)
}

// WriteTextfile writes every metric family to path in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
