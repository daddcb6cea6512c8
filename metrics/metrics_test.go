package metrics

import "testing"

func TestCountersAreUsable(t *testing.T) {
	ConnectionsAccepted.Inc()
	ConnectionsClosed.Inc()
	ConnectionsActive.Set(3)
	CommandsByName.WithLabelValues("GET").Inc()
	CommandErrors.WithLabelValues("wrong_arity").Inc()
	ProtocolResyncs.Inc()
	RehashSteps.Inc()
}
