package echobuf

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels used in metrics and logs.
const (
	opCreate          = "create"
	opWriteOnce       = "write_once"
	opAuthorizedWrite = "authorized_write"
)

type metrics struct {
	ops   *prometheus.CounterVec
	bytes prometheus.Counter
	slots prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echobuf",
			Name:      "operations_total",
			Help:      "Store operations by operation and result.",
		}, []string{"op", "result"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "echobuf",
			Name:      "bytes_written_total",
			Help:      "Payload bytes copied into slots after truncation.",
		}),
		slots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "echobuf",
			Name:      "slots",
			Help:      "Number of registered slots.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.ops, m.bytes, m.slots} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return m, nil
}

func (m *metrics) observe(op string, err error) {
	m.ops.WithLabelValues(op, resultLabel(err)).Inc()
}

// resultLabel maps an operation error to a bounded label value.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, ErrBufferOverwrite):
		return "buffer_overwrite"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPolicyMismatch):
		return "policy_mismatch"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "backend_error"
	}
}
