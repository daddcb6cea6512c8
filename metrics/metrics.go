// Package metrics exposes the server's prometheus counters and gauges:
// connection churn, command throughput by name, and rehash activity.
package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(ConnectionsAccepted)
	prometheus.MustRegister(ConnectionsClosed)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(CommandsByName)
	prometheus.MustRegister(CommandErrors)
	prometheus.MustRegister(ProtocolResyncs)
	prometheus.MustRegister(RehashSteps)
}

var ConnectionsAccepted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "kvcore_connections_accepted_total",
		Help: "Total connections accepted by the reactor.",
	},
)

var ConnectionsClosed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "kvcore_connections_closed_total",
		Help: "Total connections torn down (peer close, error, or hangup).",
	},
)

var ConnectionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "kvcore_connections_active",
		Help: "Connections currently registered with the reactor.",
	},
)

var CommandsByName = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kvcore_commands_total",
		Help: "Commands executed, by command name.",
	},
	[]string{"command"},
)

var CommandErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kvcore_command_errors_total",
		Help: "Command executions that produced a RESP error reply, by kind.",
	},
	[]string{"kind"},
)

var ProtocolResyncs = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "kvcore_protocol_resyncs_total",
		Help: "Times the parser resynchronized after a malformed command.",
	},
)

var RehashSteps = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "kvcore_hashdict_rehash_steps_total",
		Help: "Bucket-migration steps performed by the hash dictionary.",
	},
)
