package paxos

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Prometheus instruments a Proposer reports to. The
// caller owns registration; a Proposer never registers these itself and
// works fine with a nil *Metrics, in which case it never touches
// Prometheus at runtime (the package still imports it).
type Metrics struct {
	InstancesOpen   prometheus.Gauge
	QueueDepth      prometheus.Gauge
	Preemptions     prometheus.Counter
	InstancesClosed prometheus.Counter
}

func (m *Metrics) instancesOpen(delta float64) {
	if m != nil && m.InstancesOpen != nil {
		m.InstancesOpen.Add(delta)
	}
}

func (m *Metrics) queueDepth(v int) {
	if m != nil && m.QueueDepth != nil {
		m.QueueDepth.Set(float64(v))
	}
}

func (m *Metrics) preempted() {
	if m != nil && m.Preemptions != nil {
		m.Preemptions.Inc()
	}
}

func (m *Metrics) closed() {
	if m != nil && m.InstancesClosed != nil {
		m.InstancesClosed.Inc()
	}
}
