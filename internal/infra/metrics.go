package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

// Metrics holds the Prometheus collectors of the ledger. A nil *Metrics is
// valid and records nothing, so services and tests can run without it.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	cierres            *prometheus.CounterVec
	cpcPagos           prometheus.Counter
	cpcMontoRecuperado prometheus.Counter
	devoluciones       *prometheus.CounterVec
	egresoDevoluciones prometheus.Counter
	jobs               *prometheus.CounterVec
	breakers           *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hospital_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cierres: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_cuentas_cerradas_total",
			Help: "Closed patient accounts, by whether a receivable was created.",
		}, []string{"resultado"}),
		cpcPagos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hospital_cpc_pagos_total",
			Help: "Payments applied to accounts receivable.",
		}),
		cpcMontoRecuperado: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hospital_cpc_monto_recuperado",
			Help: "Amount recovered on accounts receivable.",
		}),
		devoluciones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_devoluciones_total",
			Help: "Devolución state changes by resulting estado.",
		}, []string{"estado"}),
		egresoDevoluciones: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hospital_devoluciones_egreso_monto",
			Help: "Cash paid out by processed devoluciones.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_jobs_total",
			Help: "Async jobs by queue and result.",
		}, []string{"queue", "resultado"}),
		breakers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hospital_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPLatency,
		m.cierres, m.cpcPagos, m.cpcMontoRecuperado,
		m.devoluciones, m.egresoDevoluciones, m.jobs, m.breakers,
	)
	return m
}

func (m *Metrics) CuentaCerrada(conCPC bool) {
	if m == nil {
		return
	}
	resultado := "sin_deuda"
	if conCPC {
		resultado = "cpc"
	}
	m.cierres.WithLabelValues(resultado).Inc()
}

func (m *Metrics) PagoCPC(monto decimal.Decimal) {
	if m == nil {
		return
	}
	m.cpcPagos.Inc()
	m.cpcMontoRecuperado.Add(monto.InexactFloat64())
}

func (m *Metrics) Devolucion(estado string) {
	if m == nil {
		return
	}
	m.devoluciones.WithLabelValues(estado).Inc()
}

func (m *Metrics) EgresoDevolucion(monto decimal.Decimal) {
	if m == nil {
		return
	}
	m.egresoDevoluciones.Add(monto.InexactFloat64())
}

func (m *Metrics) Job(queue, resultado string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(queue, resultado).Inc()
}

func (m *Metrics) BreakerChanged(name string, _, to BreakerState) {
	if m == nil {
		return
	}
	m.breakers.WithLabelValues(name).Set(float64(to))
}
