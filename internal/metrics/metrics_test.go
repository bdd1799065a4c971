package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.MessageSent("accepted")
	m.MessageSent("accepted")
	m.Receipt("message_delivered", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesSent.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.receipts.WithLabelValues("message_delivered", "false")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageSent("accepted")
		m.Receipt("message_read", true)
		m.AutoReply("sent")
		m.Transition("running")
	})
}
