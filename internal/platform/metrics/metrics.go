// Package metrics exposes Prometheus counters for the template engine and
// the /metrics scrape endpoint.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	TemplatesCreated prometheus.Counter
	FieldSaves       prometheus.Counter
	Renders          prometheus.Counter
	RenderFallbacks  prometheus.Counter
	ImagesIngested   prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics set backed by its own registry, so tests can create
// as many instances as they like without duplicate-registration panics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		TemplatesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_templates_created_total",
			Help: "Number of PDF templates created.",
		}),
		FieldSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_field_saves_total",
			Help: "Number of field-list save operations.",
		}),
		Renders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_renders_total",
			Help: "Number of filled PDFs rendered.",
		}),
		RenderFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_render_field_fallbacks_total",
			Help: "Number of fields that fell back to a placeholder during rendering.",
		}),
		ImagesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_images_ingested_total",
			Help: "Number of uploaded images normalized to data URLs.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.TemplatesCreated, m.FieldSaves, m.Renders, m.RenderFallbacks, m.ImagesIngested)
	return m
}

// Handler returns the echo handler serving the Prometheus text exposition.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
