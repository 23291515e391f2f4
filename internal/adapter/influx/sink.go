// Package influx mirrors cycle results into an InfluxDB v2 bucket for
// dashboarding. The pipeline wraps it as a best-effort sink: the bucket is a
// projection of MySQL, never the system of record.
package influx

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/airshedlabs/enviro-risk-service/internal/config"
	"github.com/airshedlabs/enviro-risk-service/internal/domain"
)

// Sink writes readings and assessments as time-series points.
// It implements pipeline.ResultSink.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// New initializes the InfluxDB v2 client and verifies connectivity.
func New(cfg *config.Config, logger *slog.Logger) (*Sink, error) {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)

	if _, err := client.Health(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check: %w", err)
	}

	return &Sink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		logger:   logger,
	}, nil
}

// LoadCycle writes every result's points in one call.
func (s *Sink) LoadCycle(ctx context.Context, results []domain.CycleResult) error {
	var points []*write.Point
	for _, r := range results {
		points = append(points, pointsForResult(r)...)
	}
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	return nil
}

// Close closes the InfluxDB client.
func (s *Sink) Close() {
	s.client.Close()
}

// pointsForResult converts one cycle result into time-series points: one
// environmental_readings point per reading, plus an environmental_alerts
// point when the cycle raised an alert.
func pointsForResult(r domain.CycleResult) []*write.Point {
	fields := map[string]interface{}{
		"risk_score": r.Assessment.Score,
	}
	for _, f := range []domain.Factor{
		domain.FactorPM25, domain.FactorNoise, domain.FactorTemp, domain.FactorHumidity, domain.FactorWind,
	} {
		if v, ok := r.Reading.Value(f); ok {
			fields[string(f)] = v
		}
	}

	points := []*write.Point{write.NewPoint(
		"environmental_readings",
		map[string]string{
			"location_id": r.Reading.LocationID,
			"risk_level":  string(r.Assessment.Level),
		},
		fields,
		r.Reading.Timestamp,
	)}

	if r.Alert != nil {
		points = append(points, write.NewPoint(
			"environmental_alerts",
			map[string]string{
				"location_id": r.Alert.LocationID,
				"risk_level":  string(r.Alert.Risk.Level),
			},
			map[string]interface{}{
				"alert_id":   r.Alert.ID,
				"risk_score": r.Alert.Risk.Score,
				"message":    r.Alert.Message,
			},
			r.Alert.Timestamp,
		))
	}
	return points
}
