// Package metrics exports session activity as Prometheus metrics and serves
// a small admin HTTP endpoint.
package metrics

import (
	"sort"
	"strconv"
	"sync"

	"github.com/backkem/mlle/pkg/protocol"
	"github.com/backkem/mlle/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "mlle"

// Collector records session events. It implements session.Observer.
type Collector struct {
	registry *prometheus.Registry

	sessionsTotal  *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	commands       *prometheus.CounterVec
	errorReplies   *prometheus.CounterVec
	filesServed    *prometheus.CounterVec
	bytesServed    prometheus.Counter

	mu     sync.Mutex
	active map[string]session.Info
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "Sessions started, by channel type and authorization result.",
		}, []string{"channel", "authorized"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently being served.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Commands accepted by the session state machine.",
		}, []string{"command"}),
		errorReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "error_replies_total",
			Help:      "ERROR replies sent, by error code.",
		}, []string{"code"}),
		filesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_served_total",
			Help:      "Files served, by whether they were decrypted.",
		}, []string{"encrypted"}),
		bytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "served_bytes_total",
			Help:      "Plaintext bytes sent in FILECONT replies.",
		}),
		active: make(map[string]session.Info),
	}

	c.registry.MustRegister(
		c.sessionsTotal,
		c.sessionsActive,
		c.commands,
		c.errorReplies,
		c.filesServed,
		c.bytesServed,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SessionStarted implements session.Observer.
func (c *Collector) SessionStarted(info session.Info) {
	c.sessionsTotal.WithLabelValues(info.Channel.String(), strconv.FormatBool(info.Authorized)).Inc()
	c.sessionsActive.Inc()

	c.mu.Lock()
	c.active[info.ID] = info
	c.mu.Unlock()
}

// SessionEnded implements session.Observer.
func (c *Collector) SessionEnded(id string) {
	c.sessionsActive.Dec()

	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()
}

// CommandHandled implements session.Observer.
func (c *Collector) CommandHandled(id protocol.CommandID) {
	c.commands.WithLabelValues(id.String()).Inc()
}

// ErrorReplied implements session.Observer.
func (c *Collector) ErrorReplied(code protocol.ErrorCode) {
	c.errorReplies.WithLabelValues(code.String()).Inc()
}

// FileServed implements session.Observer.
func (c *Collector) FileServed(encrypted bool, size int) {
	c.filesServed.WithLabelValues(strconv.FormatBool(encrypted)).Inc()
	c.bytesServed.Add(float64(size))
}

// Sessions returns the running sessions, oldest first.
func (c *Collector) Sessions() []session.Info {
	c.mu.Lock()
	out := make([]session.Info, 0, len(c.active))
	for _, info := range c.active {
		out = append(out, info)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

var _ session.Observer = (*Collector)(nil)
