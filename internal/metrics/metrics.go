// Package metrics exposes the Prometheus collectors of the framework.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluations counts the fitness evaluations performed per node.
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "th_evaluations_total",
		Help: "Fitness function evaluations performed, per node.",
	}, []string{"node"})

	// Iterations counts the TH iterations completed per node.
	Iterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "th_iterations_total",
		Help: "TH iterations completed, per node.",
	}, []string{"node"})

	// MessagesSent counts the packets posted per node and tag.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "th_messages_sent_total",
		Help: "Messages posted to the bus, per node and channel tag.",
	}, []string{"node", "tag"})

	// BestFitness tracks the headline fitness of each node's general best.
	BestFitness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "th_best_fitness",
		Help: "Headline fitness of the node's general best solution.",
	}, []string{"node"})
)

// NodeLabel renders a node id as the label value used by every collector.
func NodeLabel(id int) string { return strconv.Itoa(id) }
