package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "respkv"

// Error kinds used as the "kind" label of the errors counter.
const (
	ErrKindProtocol       = "protocol"
	ErrKindUnknownCommand = "unknown_command"
	ErrKindArguments      = "arguments"
	ErrKindSnapshot       = "snapshot"
	ErrKindRateLimit      = "rate_limit"
)

var knownCommands = map[string]bool{
	"PING":   true,
	"ECHO":   true,
	"SET":    true,
	"GET":    true,
	"CONFIG": true,
	"KEYS":   true,
}

// Stats owns a private registry so several servers (and tests) can run in
// one process.
type Stats struct {
	reg      *prometheus.Registry
	commands *prometheus.CounterVec
	hits     prometheus.Counter
	misses   prometheus.Counter
	errors   *prometheus.CounterVec
	conns    prometheus.Gauge
}

func New() *Stats {
	s := &Stats{
		reg: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by command name.",
		}, []string{"command"}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyspace_hits_total",
			Help:      "GET lookups that found a live key.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyspace_misses_total",
			Help:      "GET lookups that found no key or an expired one.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error replies sent, by kind.",
		}, []string{"kind"}),
		conns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open client connections.",
		}),
	}
	s.reg.MustRegister(s.commands, s.hits, s.misses, s.errors, s.conns)
	return s
}

// RecordCommand counts a command. Names outside the supported set share
// the "unknown" label.
func (s *Stats) RecordCommand(name string) {
	if !knownCommands[name] {
		name = "unknown"
	}
	s.commands.WithLabelValues(name).Inc()
}

func (s *Stats) RecordGet(hit bool) {
	if hit {
		s.hits.Inc()
	} else {
		s.misses.Inc()
	}
}

func (s *Stats) RecordError(kind string) {
	s.errors.WithLabelValues(kind).Inc()
}

func (s *Stats) ConnOpened() {
	s.conns.Inc()
}

func (s *Stats) ConnClosed() {
	s.conns.Dec()
}

func (s *Stats) Registry() *prometheus.Registry {
	return s.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{Registry: s.reg})
}

// Snapshot sums every metric family into one value per family name.
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	families, err := s.reg.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
		out[mf.GetName()] = int64(total)
	}
	return out
}
