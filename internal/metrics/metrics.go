// Package metrics holds the prometheus counters of the delivery engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	messagesSent *prometheus.CounterVec
	receipts     *prometheus.CounterVec
	autoReplies  *prometheus.CounterVec
	transitions  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_messages_sent_total",
			Help: "Send attempts by outcome.",
		}, []string{"result"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_receipts_total",
			Help: "Inbound receipts and replies, by type and whether a record matched.",
		}, []string{"type", "matched"}),
		autoReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_auto_replies_total",
			Help: "Auto-reply evaluations by outcome.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_transitions_total",
			Help: "Campaign status transitions by target status.",
		}, []string{"to"}),
	}
	if reg != nil {
		reg.MustRegister(m.messagesSent, m.receipts, m.autoReplies, m.transitions)
	}
	return m
}

func (m *Metrics) MessageSent(result string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(result).Inc()
}

func (m *Metrics) Receipt(kind string, matched bool) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(kind, strconv.FormatBool(matched)).Inc()
}

func (m *Metrics) AutoReply(result string) {
	if m == nil {
		return
	}
	m.autoReplies.WithLabelValues(result).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}
