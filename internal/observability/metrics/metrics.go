// Package metrics captures low-cardinality service metrics via the otel API.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
)

// RaffleMetrics counts the domain events the draw core produces.
type RaffleMetrics struct {
	adViews        metric.Int64Counter
	drawsCompleted metric.Int64Counter
	drawsCancelled metric.Int64Counter
	rewardsIssued  metric.Int64Counter
}

// NewRaffleMetrics creates the domain counters on the global meter provider.
// With no SDK installed the instruments are no-ops.
func NewRaffleMetrics() (*RaffleMetrics, error) {
	meter := otel.GetMeterProvider().Meter("raffled/core")

	adViews, err := meter.Int64Counter("raffle.ad_views")
	if err != nil {
		return nil, err
	}
	drawsCompleted, err := meter.Int64Counter("raffle.draws_completed")
	if err != nil {
		return nil, err
	}
	drawsCancelled, err := meter.Int64Counter("raffle.draws_cancelled")
	if err != nil {
		return nil, err
	}
	rewardsIssued, err := meter.Int64Counter("raffle.rewards_issued")
	if err != nil {
		return nil, err
	}

	return &RaffleMetrics{
		adViews:        adViews,
		drawsCompleted: drawsCompleted,
		drawsCancelled: drawsCancelled,
		rewardsIssued:  rewardsIssued,
	}, nil
}

func (m *RaffleMetrics) AddAdViews(ctx context.Context, count int64) {
	if m == nil {
		return
	}
	m.adViews.Add(ctx, count)
}

func (m *RaffleMetrics) IncDrawCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.drawsCompleted.Add(ctx, 1)
}

func (m *RaffleMetrics) IncDrawCancelled(ctx context.Context) {
	if m == nil {
		return
	}
	m.drawsCancelled.Add(ctx, 1)
}

func (m *RaffleMetrics) IncRewardIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.rewardsIssued.Add(ctx, 1)
}

// HTTPMetrics records request duration and in-flight counts.
type HTTPMetrics struct {
	requestDuration metric.Float64Histogram
	inFlight        metric.Int64UpDownCounter
}

func NewHTTPMetrics() (*HTTPMetrics, error) {
	meter := otel.GetMeterProvider().Meter("raffled/http")

	requestDuration, err := meter.Float64Histogram("http.server.duration_ms")
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("http.server.in_flight")
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{requestDuration: requestDuration, inFlight: inFlight}, nil
}

// GinMiddleware instruments each request with duration and in-flight metrics.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		ctx := c.Request.Context()
		endpointAttr := metric.WithAttributes(attribute.String("endpoint", endpoint))

		m.inFlight.Add(ctx, 1, endpointAttr)
		start := time.Now()
		c.Next()
		m.inFlight.Add(ctx, -1, endpointAttr)

		m.requestDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		))
	}
}

var Module = fx.Module("metrics",
	fx.Provide(NewRaffleMetrics),
	fx.Provide(NewHTTPMetrics),
)
