package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	turnsCounter        metric.Int64Counter
	turnDuration        metric.Float64Histogram
	ticketOpsCounter    metric.Int64Counter
	dispatchCounter     metric.Int64Counter
	advisorCounter      metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		turnsCounter, err = m.Int64Counter("anmar_turns_total", metric.WithDescription("Total consultation turns processed"))
		if err != nil {
			return
		}
		turnDuration, err = m.Float64Histogram("anmar_turn_duration_seconds", metric.WithDescription("Consultation turn duration in seconds"))
		if err != nil {
			return
		}
		ticketOpsCounter, err = m.Int64Counter("anmar_ticket_operations_total", metric.WithDescription("Total ticket operations (create, status transitions)"))
		if err != nil {
			return
		}
		dispatchCounter, err = m.Int64Counter("anmar_dispatch_assignments_total", metric.WithDescription("Total dispatch assignments by engineer"))
		if err != nil {
			return
		}
		advisorCounter, err = m.Int64Counter("anmar_advisor_replies_total", metric.WithDescription("Advisor replies by source (generated or composed)"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("anmar_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("anmar_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordTurn records one consultation turn with its decided action and phase.
func RecordTurn(ctx context.Context, action, phase string, duration time.Duration) {
	attrs := metric.WithAttributes(AttrAction.String(action), AttrPhase.String(phase))
	if turnsCounter != nil {
		turnsCounter.Add(ctx, 1, attrs)
	}
	if turnDuration != nil {
		turnDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordTicketOp records a ticket operation (create, accept, deliver, update).
func RecordTicketOp(ctx context.Context, op, status, priority string) {
	if ticketOpsCounter == nil {
		return
	}
	ticketOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		AttrStatus.String(status),
		AttrPriority.String(priority),
	))
}

// RecordDispatch records one assignment decision.
func RecordDispatch(ctx context.Context, engineer string) {
	if dispatchCounter != nil {
		dispatchCounter.Add(ctx, 1, metric.WithAttributes(AttrEngineer.String(engineer)))
	}
}

// RecordAdvisorReply records where a reply came from ("generated" or "composed").
func RecordAdvisorReply(ctx context.Context, source string) {
	if advisorCounter != nil {
		advisorCounter.Add(ctx, 1, metric.WithAttributes(AttrSource.String(source)))
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// TicketCountFunc returns per-status ticket counts for the queue gauge.
type TicketCountFunc func() (pending, accepted, developing, completed int64)

// InitMetricsWithTicketCount creates instruments and optionally registers a callback
// for queue gauges. Call after InitMeterProvider. If ticketCount is nil, queue
// gauges are not reported.
func InitMetricsWithTicketCount(ctx context.Context, ticketCount TicketCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if ticketCount == nil {
		return nil
	}
	m := Meter()
	queueGauge, err := m.Float64ObservableGauge("anmar_tickets_total", metric.WithDescription("Number of tickets by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		pending, accepted, developing, completed := ticketCount()
		o.ObserveFloat64(queueGauge, float64(pending), metric.WithAttributes(AttrStatus.String("pending")))
		o.ObserveFloat64(queueGauge, float64(accepted), metric.WithAttributes(AttrStatus.String("accepted")))
		o.ObserveFloat64(queueGauge, float64(developing), metric.WithAttributes(AttrStatus.String("developing")))
		o.ObserveFloat64(queueGauge, float64(completed), metric.WithAttributes(AttrStatus.String("completed")))
		return nil
	}, queueGauge)
	return err
}
