package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 申请生命周期指标
type Metrics struct {
	RequestsCreated  prometheus.Counter
	StatusChanges    *prometheus.CounterVec
	CascadeUpdates   prometheus.Counter
	UsersApproved    prometheus.Counter
	SimulationsArmed prometheus.Gauge
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时使用默认注册表
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_requests_created_total",
			Help:      "Total access requests created",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_request_status_changes_total",
			Help:      "Access request status changes by target status and source",
		}, []string{"status", "source"}),
		CascadeUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_request_cascade_updates_total",
			Help:      "Requests rewritten to Approved by Chair by user approval",
		}),
		UsersApproved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_approved_total",
			Help:      "Total user approvals",
		}),
		SimulationsArmed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "access_request_simulations_in_flight",
			Help:      "Auto-advance simulations scheduled but not yet resolved",
		}),
	}
}
