package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

const subsystem = "vip"

// Business holds the domain counters. A nil *Business is valid and
// records nothing, which keeps service tests free of registry setup.
type Business struct {
	codeClaims       *prometheus.CounterVec
	dispatched       *prometheus.CounterVec
	deliveries       prometheus.Counter
	paymentAdvances  *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	vipRecalculation *prometheus.CounterVec
}

// NewRegistry returns the process registry with go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewBusiness(reg *prometheus.Registry) *Business {
	b := &Business{
		codeClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem, Name: "activation_claims_total",
			Help: "Activation code claim attempts by result.",
		}, []string{"result"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem, Name: "notifications_dispatched_total",
			Help: "Notification deliveries by channel and result.",
		}, []string{"channel", "result"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem, Name: "message_deliveries_total",
			Help: "Message deliveries created by broadcasts.",
		}),
		paymentAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem, Name: "payment_advances_total",
			Help: "Payment status changes by target status and result.",
		}, []string{"status", "result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem, Name: "scheduler_runs_total",
			Help: "Scheduler job runs by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem, Name: "scheduler_run_ms",
			Help: "Scheduler job latency in milliseconds.", Buckets: HistogramBuckets,
		}, []string{"job"}),
		vipRecalculation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem, Name: "vip_recounts_total",
			Help: "VIP flag recounts by resulting state.",
		}, []string{"is_vip"}),
	}
	if reg != nil {
		reg.MustRegister(b.codeClaims, b.dispatched, b.deliveries, b.paymentAdvances, b.jobRuns, b.jobDuration, b.vipRecalculation)
	}
	return b
}

func (b *Business) CodeClaim(result string) {
	if b == nil {
		return
	}
	b.codeClaims.WithLabelValues(result).Inc()
}

func (b *Business) Dispatched(channel, result string, n int) {
	if b == nil || n <= 0 {
		return
	}
	b.dispatched.WithLabelValues(channel, result).Add(float64(n))
}

func (b *Business) DeliveriesCreated(n int64) {
	if b == nil || n <= 0 {
		return
	}
	b.deliveries.Add(float64(n))
}

func (b *Business) PaymentAdvance(status, result string) {
	if b == nil {
		return
	}
	b.paymentAdvances.WithLabelValues(status, result).Inc()
}

func (b *Business) JobRun(job, result string, ms float64) {
	if b == nil {
		return
	}
	b.jobRuns.WithLabelValues(job, result).Inc()
	b.jobDuration.WithLabelValues(job).Observe(ms)
}

func (b *Business) VipRecount(isVip bool) {
	if b == nil {
		return
	}
	label := "false"
	if isVip {
		label = "true"
	}
	b.vipRecalculation.WithLabelValues(label).Inc()
}

var Module = fx.Options(
	fx.Provide(NewRegistry, NewBusiness),
)
