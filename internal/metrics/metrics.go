package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the business counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	DepositsCreated      prometheus.Counter
	DepositAmountCents   *prometheus.CounterVec
	DepositsOrphaned     prometheus.Counter
	SettlementsApplied   *prometheus.CounterVec
	WithdrawalsTotal     *prometheus.CounterVec
	WithdrawAmountCents  *prometheus.CounterVec
	WithdrawalsAmbiguous prometheus.Counter
	WithdrawalsStale     prometheus.Gauge
	CommissionCents      prometheus.Counter
	LedgerConflicts      prometheus.Counter
	OutboxPublished      *prometheus.CounterVec
	GatewayDuration      *prometheus.HistogramVec
	HTTPDuration         *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DepositsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "pixledger_deposit_created_total",
			Help: "Deposits persisted after the gateway opened a charge",
		}),
		DepositAmountCents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixledger_deposit_amount_cents_total",
			Help: "Deposit amounts in cents by lifecycle stage",
		}, []string{"stage"}),
		DepositsOrphaned: f.NewCounter(prometheus.CounterOpts{
			Name: "pixledger_deposit_orphaned_total",
			Help: "Gateway charges opened whose deposit could not be persisted",
		}),
		SettlementsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixledger_settlement_events_total",
			Help: "Gateway events handled by the settlement processor by result",
		}, []string{"result"}),
		WithdrawalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixledger_withdraw_total",
			Help: "Withdrawals by final or current status",
		}, []string{"status"}),
		WithdrawAmountCents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixledger_withdraw_amount_cents_total",
			Help: "Withdrawal amounts in cents by status",
		}, []string{"status"}),
		WithdrawalsAmbiguous: f.NewCounter(prometheus.CounterOpts{
			Name: "pixledger_withdraw_ambiguous_total",
			Help: "Payout calls whose outcome is unknown",
		}),
		WithdrawalsStale: f.NewGauge(prometheus.GaugeOpts{
			Name: "pixledger_withdraw_stale",
			Help: "Withdrawals still waiting on the gateway past the stale threshold",
		}),
		CommissionCents: f.NewCounter(prometheus.CounterOpts{
			Name: "pixledger_commission_cents_total",
			Help: "Affiliate commission accrued in cents",
		}),
		LedgerConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "pixledger_ledger_conflicts_total",
			Help: "Ledger transactions retried after a concurrency conflict",
		}),
		OutboxPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixledger_outbox_published_total",
			Help: "Outbox messages handed to the broker by topic and result",
		}, []string{"topic", "result"}),
		GatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixledger_gateway_request_duration_seconds",
			Help:    "Gateway call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) DepositCreated(amount int64) {
	if m == nil {
		return
	}
	m.DepositsCreated.Inc()
	m.DepositAmountCents.WithLabelValues("created").Add(float64(amount))
}

func (m *Metrics) DepositOrphaned() {
	if m == nil {
		return
	}
	m.DepositsOrphaned.Inc()
}

func (m *Metrics) Settlement(result string, paidAmount int64) {
	if m == nil {
		return
	}
	m.SettlementsApplied.WithLabelValues(result).Inc()
	if paidAmount > 0 {
		m.DepositAmountCents.WithLabelValues("paid").Add(float64(paidAmount))
	}
}

func (m *Metrics) Withdrawal(status string, amount int64) {
	if m == nil {
		return
	}
	m.WithdrawalsTotal.WithLabelValues(status).Inc()
	m.WithdrawAmountCents.WithLabelValues(status).Add(float64(amount))
}

func (m *Metrics) WithdrawalAmbiguous() {
	if m == nil {
		return
	}
	m.WithdrawalsAmbiguous.Inc()
}

func (m *Metrics) StaleWithdrawals(n int) {
	if m == nil {
		return
	}
	m.WithdrawalsStale.Set(float64(n))
}

func (m *Metrics) Commission(amount int64) {
	if m == nil {
		return
	}
	m.CommissionCents.Add(float64(amount))
}

func (m *Metrics) LedgerConflict() {
	if m == nil {
		return
	}
	m.LedgerConflicts.Inc()
}

func (m *Metrics) OutboxResult(topic string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "error"
	}
	m.OutboxPublished.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) ObserveGateway(operation, outcome string, since time.Time) {
	if m == nil {
		return
	}
	m.GatewayDuration.WithLabelValues(operation, outcome).Observe(time.Since(since).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, since time.Time) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(since).Seconds())
}
