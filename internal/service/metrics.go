// Prometheus 카운터 정의 (Gateway / Pipeline 공용)

package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	AlertsReceived       prometheus.Counter
	DuplicatesSuppressed prometheus.Counter
	IntakeRejected       prometheus.Counter
	RunsInFlightRejected prometheus.Counter
	PipelineRuns         *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homelab_ir_alerts_received_total",
			Help: "Total alerts accepted by the gateway.",
		}),
		DuplicatesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homelab_ir_duplicates_suppressed_total",
			Help: "Alerts dropped inside the dedup window.",
		}),
		IntakeRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homelab_ir_intake_rejected_total",
			Help: "Alerts rejected because the intake buffer was full.",
		}),
		RunsInFlightRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homelab_ir_pipeline_inflight_rejected_total",
			Help: "Pipeline runs rejected because the fingerprint was already in flight.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homelab_ir_pipeline_runs_total",
			Help: "Completed pipeline runs by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.AlertsReceived,
			m.DuplicatesSuppressed,
			m.IntakeRejected,
			m.RunsInFlightRejected,
			m.PipelineRuns,
		)
	}
	return m
}
