// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"github.com/btcsuite/walletbridge/port"
	"github.com/prometheus/client_golang/prometheus"
)

// Handle kinds used as metric labels.
const (
	kindRuntime      = "runtime"
	kindTransport    = "transport"
	kindSubscription = "subscription"
)

// Metrics collects the bridge's Prometheus metrics in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	liveHandles   *prometheus.GaugeVec
	posts         *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	subscriptions *prometheus.CounterVec
	statuses      *prometheus.CounterVec
}

// NewMetrics creates the bridge collectors under namespace, which defaults to
// "walletbridge".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "walletbridge"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.liveHandles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "live",
			Help:      "Number of live handles by kind",
		},
		[]string{"kind"},
	)

	m.posts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "port",
			Name:      "posts_total",
			Help:      "Messages posted to completion ports",
		},
		[]string{"tag", "delivered"},
	)

	m.dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "port",
			Name:      "dropped_total",
			Help:      "Wallet notifications not forwarded",
		},
		[]string{"tag", "reason"},
	)

	m.subscriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "subscriptions_total",
			Help:      "Completed subscription requests by status",
		},
		[]string{"status"},
	)

	m.statuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "total",
			Help:      "Boundary calls by name and synchronous status",
		},
		[]string{"call", "status"},
	)

	m.registry.MustRegister(
		m.liveHandles, m.posts, m.dropped, m.subscriptions, m.statuses,
	)

	return m
}

// Registry returns the registry holding the bridge metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) handleOpened(kind string) {
	m.liveHandles.WithLabelValues(kind).Inc()
}

func (m *Metrics) handleClosed(kind string) {
	m.liveHandles.WithLabelValues(kind).Dec()
}

func (m *Metrics) posted(tag port.Tag, delivered bool) {
	label := "false"
	if delivered {
		label = "true"
	}
	m.posts.WithLabelValues(tag.String(), label).Inc()
}

func (m *Metrics) droppedEvent(tag port.Tag, reason string) {
	m.dropped.WithLabelValues(tag.String(), reason).Inc()
}

func (m *Metrics) subscribed(code StatusCode) {
	m.subscriptions.WithLabelValues(code.String()).Inc()
}

// call records the synchronous status of a boundary call and returns err.
func (m *Metrics) call(name string, err error) error {
	m.statuses.WithLabelValues(name, Status(err, Ok).String()).Inc()
	return err
}
