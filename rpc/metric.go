package rpc

import (
	"github.com/MixinNetwork/rworld/session"
	"github.com/MixinNetwork/rworld/world"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports world state on every scrape instead of keeping
// duplicated counters in sync with the session metric pools.
type Collector struct {
	world *world.World

	role     *prometheus.Desc
	peers    *prometheus.Desc
	epoch    *prometheus.Desc
	received *prometheus.Desc
	events   *prometheus.Desc
	messages *prometheus.Desc
	bytes    *prometheus.Desc
}

func NewCollector(w *world.World) *Collector {
	return &Collector{
		world:    w,
		role:     prometheus.NewDesc("rworld_role", "Current session role.", []string{"role"}, nil),
		peers:    prometheus.NewDesc("rworld_peers", "Connected peers.", nil, nil),
		epoch:    prometheus.NewDesc("rworld_session_epoch", "Sessions started or joined.", nil, nil),
		received: prometheus.NewDesc("rworld_application_messages_total", "Application messages delivered.", nil, nil),
		events:   prometheus.NewDesc("rworld_events_total", "Events written to the journal.", nil, nil),
		messages: prometheus.NewDesc("rworld_messages_total", "Peer messages by direction and type.", []string{"direction", "type"}, nil),
		bytes:    prometheus.NewDesc("rworld_message_bytes_total", "Peer message bytes by direction.", []string{"direction"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.role
	ch <- c.peers
	ch <- c.epoch
	ch <- c.received
	ch <- c.events
	ch <- c.messages
	ch <- c.bytes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	info := c.world.Info()
	for _, r := range []session.Role{session.Idle, session.Hosting, session.Joined} {
		var v float64
		if r.String() == info.Session.Role {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.role, prometheus.GaugeValue, v, r.String())
	}
	ch <- prometheus.MustNewConstMetric(c.peers, prometheus.GaugeValue, float64(info.Session.Peers))
	ch <- prometheus.MustNewConstMetric(c.epoch, prometheus.CounterValue, float64(info.Session.Epoch))
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(info.Received))
	ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(info.Events))

	pools := map[string]session.MetricPool{
		"sent":     info.Session.Sent,
		"received": info.Session.Received,
	}
	for dir, mp := range pools {
		types := map[string]uint32{
			"ping":    mp.MessageTypePing,
			"hello":   mp.MessageTypeHello,
			"data":    mp.MessageTypeData,
			"relay":   mp.MessageTypeRelay,
			"unknown": mp.MessageUnknown,
		}
		for typ, v := range types {
			ch <- prometheus.MustNewConstMetric(c.messages, prometheus.CounterValue, float64(v), dir, typ)
		}
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(mp.Bytes), dir)
	}
}
