package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles Prometheus metrics for the visualizer core and its HTTP
// surface.
type Collector struct {
	gatherer prometheus.Gatherer

	FrameDuration prometheus.Histogram
	Frames        prometheus.Counter

	TopologyNodes  prometheus.Gauge
	TopologySpines prometheus.Gauge
	Agents         prometheus.Gauge
	Payloads       prometheus.Gauge

	IngestUpdates *prometheus.CounterVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewCollector registers visualizer metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frameDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "viz_frame_duration_seconds",
		Help:    "Wall-clock duration of one reconciler frame pass.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "viz_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "viz_frames_total",
		Help: "Total number of reconciler frame passes.",
	}), "viz_frames_total")
	if err != nil {
		return nil, err
	}

	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viz_topology_nodes",
		Help: "Number of nodes in the compiled graph.",
	}), "viz_topology_nodes")
	if err != nil {
		return nil, err
	}
	spines, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viz_topology_spines",
		Help: "Number of directed spines in the compiled graph.",
	}), "viz_topology_spines")
	if err != nil {
		return nil, err
	}
	agents, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viz_agents",
		Help: "Current number of live agents in the registry.",
	}), "viz_agents")
	if err != nil {
		return nil, err
	}
	payloads, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viz_station_payloads",
		Help: "Current number of payloads waiting at stations.",
	}), "viz_station_payloads")
	if err != nil {
		return nil, err
	}

	ingest, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viz_ingest_updates_total",
		Help: "Inbound feed updates by outcome (applied, rejected, dropped).",
	}, []string{"result"}), "viz_ingest_updates_total")
	if err != nil {
		return nil, err
	}

	httpRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viz_http_requests_total",
		Help: "Handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "viz_http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "viz_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"}), "viz_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		FrameDuration:  frameDuration,
		Frames:         frames,
		TopologyNodes:  nodes,
		TopologySpines: spines,
		Agents:         agents,
		Payloads:       payloads,
		IngestUpdates:  ingest,
		HTTPRequests:   httpRequests,
		HTTPDurations:  httpDurations,
	}, nil
}

// ObserveFrame records one frame pass. Satisfies core.EngineMetrics.
func (c *Collector) ObserveFrame(seconds float64) {
	if c == nil {
		return
	}
	if c.Frames != nil {
		c.Frames.Inc()
	}
	if c.FrameDuration != nil {
		c.FrameDuration.Observe(seconds)
	}
}

// IncIngest records one inbound update outcome. Satisfies core.IngestRecorder.
func (c *Collector) IncIngest(result string) {
	if c == nil || c.IngestUpdates == nil {
		return
	}
	c.IngestUpdates.WithLabelValues(result).Inc()
}

// SetTopologyCounts drives the topology gauges after a (re)load.
func (c *Collector) SetTopologyCounts(nodes, spines int) {
	if c == nil {
		return
	}
	if c.TopologyNodes != nil {
		c.TopologyNodes.Set(float64(nodes))
	}
	if c.TopologySpines != nil {
		c.TopologySpines.Set(float64(spines))
	}
}

// SetRegistryCounts drives the agent and payload gauges.
func (c *Collector) SetRegistryCounts(agents, payloads int) {
	if c == nil {
		return
	}
	if c.Agents != nil {
		c.Agents.Set(float64(agents))
	}
	if c.Payloads != nil {
		c.Payloads.Set(float64(payloads))
	}
}

// Middleware instruments HTTP handlers with request counts and durations,
// labeled by the matched mux route template.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := routeTemplate(r)
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, r.Method, fmt.Sprintf("%d", sw.code)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func routeTemplate(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil && tpl != "" {
			return tpl
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
