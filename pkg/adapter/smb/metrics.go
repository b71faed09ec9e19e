package smb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/handlers"
	"github.com/marmos91/dittosmb/pkg/metrics"
)

const (
	metricsNamespace = "dittosmb"
	metricsSubsystem = "smb"
)

// Metrics holds the Prometheus collectors of the SMB server.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	commands           *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
	connectionsActive  prometheus.Gauge
	connectionsOpened  prometheus.Counter
	connectionsClosed  prometheus.Counter
	connectionsForced  prometheus.Counter
	protocolViolations prometheus.Counter
	notifyPending      prometheus.Gauge
}

// NewMetrics registers the SMB collectors with reg. The session, open file
// and pending notification gauges read h. Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer, h *handlers.Handler) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		commands: metrics.RegisterOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "commands_total",
			Help:      "SMB2 commands dispatched, by command and NT status",
		}, []string{"command", "status"})).(*prometheus.CounterVec),
		commandDuration: metrics.RegisterOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "command_duration_seconds",
			Help:      "Time spent dispatching an SMB2 command",
			Buckets: []float64{
				0.00005, // 50us
				0.0001,  // 100us
				0.0005,  // 500us
				0.001,   // 1ms
				0.005,   // 5ms
				0.01,    // 10ms
				0.05,    // 50ms
				0.1,     // 100ms
				0.5,     // 500ms
				1,       // 1s
			},
		}, []string{"command"})).(*prometheus.HistogramVec),
		connectionsActive: metrics.RegisterOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connections_active",
			Help:      "Open client connections",
		})).(prometheus.Gauge),
		connectionsOpened: metrics.RegisterOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connections_accepted_total",
			Help:      "Client connections accepted",
		})).(prometheus.Counter),
		connectionsClosed: metrics.RegisterOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connections_closed_total",
			Help:      "Client connections closed",
		})).(prometheus.Counter),
		connectionsForced: metrics.RegisterOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connections_force_closed_total",
			Help:      "Client connections closed by the shutdown timeout",
		})).(prometheus.Counter),
		protocolViolations: metrics.RegisterOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "protocol_violations_total",
			Help:      "Connections dropped for a protocol violation",
		})).(prometheus.Counter),
		notifyPending: metrics.RegisterOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "notifications_pending",
			Help:      "CHANGE_NOTIFY requests waiting for a change",
		})).(prometheus.Gauge),
	}

	if h != nil {
		metrics.RegisterOrReuse(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sessions_active",
			Help:      "Established sessions across all connections",
		}, func() float64 { return float64(h.ActiveSessions()) }))
		metrics.RegisterOrReuse(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "open_files",
			Help:      "Open file handles across all sessions",
		}, func() float64 { return float64(h.Opens.Len()) }))

		m.notifyPending.Set(float64(h.Notify.Pending()))
		h.Notify.OnChange = func(pending int) { m.notifyPending.Set(float64(pending)) }
	}

	return m
}

// ObserveCommand records one dispatched command.
func (m *Metrics) ObserveCommand(cmd types.Command, status types.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	name := cmd.String()
	m.commands.WithLabelValues(name, status.String()).Inc()
	m.commandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) connectionAccepted(active int32) {
	if m == nil {
		return
	}
	m.connectionsOpened.Inc()
	m.connectionsActive.Set(float64(active))
}

func (m *Metrics) connectionClosed(active int32) {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
	m.connectionsActive.Set(float64(active))
}

func (m *Metrics) connectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForced.Inc()
}

func (m *Metrics) protocolViolation() {
	if m == nil {
		return
	}
	m.protocolViolations.Inc()
}
