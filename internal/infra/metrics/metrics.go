package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	MessagesTotal     *prometheus.CounterVec
	RepliesTotal      prometheus.Counter
	CommandsTotal     *prometheus.CounterVec
	BackupsTotal      *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_messages_total",
			Help: "Inbound messages by routing decision.",
		}, []string{"decision"}),
		RepliesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bot_replies_total",
			Help: "Outbound reply chunks sent.",
		}),
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Admin commands by outcome.",
		}, []string{"outcome"}),
		BackupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_backups_total",
			Help: "Backup runs by result.",
		}, []string{"result"}),
		InferenceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_inference_duration_seconds",
			Help:    "LLM call latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}
