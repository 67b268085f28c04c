package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the tenant module.
type Metrics struct {
	TenantCreated            prometheus.Counter
	PortalRequestsRegistered prometheus.Counter
	DataModeRejections       *prometheus.CounterVec
}

// New registers the tenant module metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TenantCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_tenants_created_total",
			Help: "Total number of tenants created",
		}),
		PortalRequestsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_portal_requests_registered_total",
			Help: "Total number of supplier-portal requests registered",
		}),
		DataModeRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_data_mode_rejections_total",
			Help: "Submissions refused because their data origin does not match the tenant mode",
		}, []string{"origin"}),
	}
}
