// Package metrics exposes Prometheus gauges for a running benchcounter
// session: root-access and max-access totals, max-access ratio,
// throughput, and operation count, set from a scount.Counter's
// diagnostics each time Reporter.Observe is called.
package metrics

import (
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scount"
)

// Reporter owns one registered set of gauges for a single benchmark run.
// Registering twice against the default registry panics, so each run
// builds its own prometheus.Registry rather than using the package
// default, letting the CLI run the correctness check and the throughput
// benchmark back to back without a metrics collision.
type Reporter struct {
	registry *prometheus.Registry

	rootAccess   prometheus.Gauge
	maxAccess    prometheus.Gauge
	accessRatio  prometheus.Gauge
	throughput   prometheus.Gauge
	opsCompleted prometheus.Counter
}

// NewReporter builds a Reporter and registers its gauges under variant,
// a short label such as "plain", "stump", or "funnel" distinguishing
// concurrent runs in a single process.
func NewReporter(variant string) *Reporter {
	r := &Reporter{registry: prometheus.NewRegistry()}

	labels := prometheus.Labels{"variant": variant}

	r.rootAccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "scount_root_access_total",
		Help:        "Number of times the root atomic was touched during the run",
		ConstLabels: labels,
	})
	r.maxAccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "scount_max_access_total",
		Help:        "Highest touch count observed on the root or any single auxiliary node",
		ConstLabels: labels,
	})
	r.accessRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "scount_max_access_ratio",
		Help:        "max_access / operations, lower is better distributed",
		ConstLabels: labels,
	})
	r.throughput = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "scount_throughput_ops_per_second",
		Help:        "Counter operations (loads and FetchAdds) completed per second over the run",
		ConstLabels: labels,
	})
	r.opsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "scount_operations_total",
		Help:        "Total counter operations (loads and FetchAdds) completed",
		ConstLabels: labels,
	})

	r.registry.MustRegister(r.rootAccess, r.maxAccess, r.accessRatio, r.throughput, r.opsCompleted)
	return r
}

// Observe reads c's diagnostics and the run's elapsed duration and total
// operation count, and updates every gauge accordingly.
func (r *Reporter) Observe(c scount.Counter, ops uint64, elapsed time.Duration) {
	root := c.RootAccess()
	max := c.MaxAccess()

	r.rootAccess.Set(float64(root))
	r.maxAccess.Set(float64(max))
	if ops > 0 {
		r.accessRatio.Set(float64(max) / float64(ops))
	}
	if elapsed > 0 {
		r.throughput.Set(float64(ops) / elapsed.Seconds())
	}
	r.opsCompleted.Add(float64(ops))
}

// Serve exposes this reporter's registry on addr until the returned
// shutdown func is called. Errors from ListenAndServe after a
// successful start are not surfaced; the caller decides the process
// lifetime.
func (r *Reporter) Serve(addr string) (shutdown func(), err error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		_ = server.Serve(ln)
	}()
	return func() { _ = server.Close() }, nil
}
