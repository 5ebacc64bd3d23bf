package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	mailboxDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vlmd",
		Subsystem: "relay",
		Name:      "mailbox_depth",
		Help:      "Prompts waiting to be picked up by the frame loop",
	})

	storeSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vlmd",
		Subsystem: "relay",
		Name:      "reply_store_size",
		Help:      "Replies waiting to be collected",
	})

	repliesEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vlmd",
		Subsystem: "relay",
		Name:      "replies_evicted_total",
		Help:      "Uncollected replies evicted after their TTL",
	})

	queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vlmd",
		Subsystem: "relay",
		Name:      "queries_total",
		Help:      "Control queries by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(mailboxDepth, storeSize, repliesEvicted, queriesTotal)
}
