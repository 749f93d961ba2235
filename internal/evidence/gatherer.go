// Package evidence assembles the per-run evidence bundle from the external
// history, related-metric, and change-event sources.
package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/anomalyzer/internal/changes"
	"github.com/kiranshivaraju/anomalyzer/internal/history"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Gatherer fans out to the evidence sources and joins with a deadline.
// A source that errors or misses the deadline is omitted from the bundle;
// partial evidence is valid evidence.
type Gatherer struct {
	history       history.Client
	changes       changes.Client
	timeout       time.Duration
	historyWindow time.Duration
	lookback      time.Duration
}

// NewGatherer creates a Gatherer. timeout bounds the whole fan-out;
// historyWindow controls how far back historical comparisons reach;
// lookback is the change-event window.
func NewGatherer(h history.Client, c changes.Client, timeout, historyWindow, lookback time.Duration) *Gatherer {
	return &Gatherer{
		history:       h,
		changes:       c,
		timeout:       timeout,
		historyWindow: historyWindow,
		lookback:      lookback,
	}
}

// Gather builds the evidence bundle for one anomaly. It never fails: the
// worst case is an empty bundle marked partial.
func (g *Gatherer) Gather(ctx context.Context, anomaly *models.Anomaly) *models.EvidenceBundle {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		points  []models.MetricPoint
		related map[string]float64
		events  []models.ChangeEvent

		historyErr, relatedErr, changesErr error
	)

	// The three fetches are independent; each records its own result and
	// error so one failure never aborts the others.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		points, historyErr = g.history.HistoricalValues(egCtx, anomaly.MetricName,
			anomaly.DetectedAt.Add(-g.historyWindow), anomaly.DetectedAt)
		return nil
	})
	eg.Go(func() error {
		related, relatedErr = g.history.RelatedMetrics(egCtx, anomaly.MetricFamily(), anomaly.DetectedAt)
		return nil
	})
	eg.Go(func() error {
		events, changesErr = g.changes.EventsInWindow(egCtx,
			anomaly.DetectedAt.Add(-g.lookback), anomaly.DetectedAt)
		return nil
	})
	_ = eg.Wait()

	bundle := &models.EvidenceBundle{GatheredAt: time.Now().UTC()}

	if historyErr != nil {
		slog.Warn("evidence source omitted", "source", "history", "error", historyErr)
		bundle.Partial = true
		bundle.OmittedSources = append(bundle.OmittedSources, "history")
	} else {
		bundle.Facts = append(bundle.Facts, historicalFacts(anomaly, points)...)
	}

	if relatedErr != nil {
		slog.Warn("evidence source omitted", "source", "related_metrics", "error", relatedErr)
		bundle.Partial = true
		bundle.OmittedSources = append(bundle.OmittedSources, "related_metrics")
	} else {
		bundle.Facts = append(bundle.Facts, relatedMetricFacts(anomaly, related)...)
	}

	if changesErr != nil {
		slog.Warn("evidence source omitted", "source", "changes", "error", changesErr)
		bundle.Partial = true
		bundle.OmittedSources = append(bundle.OmittedSources, "changes")
	} else {
		bundle.Facts = append(bundle.Facts, changeFacts(events)...)
	}

	bundle.Facts = append(bundle.Facts, temporalFacts(anomaly, points)...)

	return bundle
}

// historicalFacts summarizes how the current value sits against history.
func historicalFacts(anomaly *models.Anomaly, points []models.MetricPoint) []models.Fact {
	if len(points) == 0 {
		return nil
	}

	var sum, peak float64
	for _, p := range points {
		sum += p.Value
		if p.Value > peak {
			peak = p.Value
		}
	}
	mean := sum / float64(len(points))

	facts := []models.Fact{{
		Kind:    models.FactHistoricalComparison,
		Metric:  anomaly.MetricName,
		Value:   mean,
		Summary: fmt.Sprintf("%s averaged %.2f over the comparison window; current value is %.2f", anomaly.MetricName, mean, anomaly.CurrentValue),
	}}

	if anomaly.CurrentValue > peak {
		facts = append(facts, models.Fact{
			Kind:    models.FactHistoricalComparison,
			Metric:  anomaly.MetricName,
			Value:   peak,
			Summary: fmt.Sprintf("current value %.2f exceeds the historical peak of %.2f", anomaly.CurrentValue, peak),
		})
	}
	return facts
}

// relatedMetricFacts reports family metrics that moved alongside the anomaly.
// Deltas are fractions of baseline; only material moves (>10%) are kept.
func relatedMetricFacts(anomaly *models.Anomaly, related map[string]float64) []models.Fact {
	names := make([]string, 0, len(related))
	for name := range related {
		if name == anomaly.MetricName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var facts []models.Fact
	for _, name := range names {
		delta := related[name]
		if delta > -0.10 && delta < 0.10 {
			continue
		}
		direction := "up"
		if delta < 0 {
			direction = "down"
		}
		facts = append(facts, models.Fact{
			Kind:    models.FactRelatedMetric,
			Metric:  name,
			Delta:   delta,
			Summary: fmt.Sprintf("related metric %s moved %s %.0f%% against baseline", name, direction, abs(delta)*100),
		})
	}
	return facts
}

func changeFacts(events []models.ChangeEvent) []models.Fact {
	// Most recent first so evidence refs favor the likeliest culprit.
	sorted := make([]models.ChangeEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	facts := make([]models.Fact, 0, len(sorted))
	for i := range sorted {
		e := sorted[i]
		facts = append(facts, models.Fact{
			Kind:      models.FactRecentChange,
			Timestamp: e.Timestamp,
			Change:    &e,
			Summary:   fmt.Sprintf("%s to %s at %s: %s", e.ChangeType, e.Component, e.Timestamp.Format(time.RFC3339), e.Description),
		})
	}
	return facts
}

// temporalFacts derives pattern tags from the detection time and history.
func temporalFacts(anomaly *models.Anomaly, points []models.MetricPoint) []models.Fact {
	var facts []models.Fact

	hour := anomaly.DetectedAt.UTC().Hour()
	switch {
	case hour >= 9 && hour < 18:
		facts = append(facts, models.Fact{
			Kind:    models.FactTemporalPattern,
			Summary: "detected during business hours, when load is typically elevated",
		})
	case hour >= 0 && hour < 6:
		facts = append(facts, models.Fact{
			Kind:    models.FactTemporalPattern,
			Summary: "detected during off-peak hours, when load is typically low",
		})
	}

	if wd := anomaly.DetectedAt.UTC().Weekday(); wd == time.Saturday || wd == time.Sunday {
		facts = append(facts, models.Fact{
			Kind:    models.FactTemporalPattern,
			Summary: "detected on a weekend",
		})
	}

	// A sustained climb across the window points at gradual degradation
	// rather than a step change.
	if len(points) >= 4 {
		half := len(points) / 2
		var early, late float64
		for _, p := range points[:half] {
			early += p.Value
		}
		for _, p := range points[half:] {
			late += p.Value
		}
		early /= float64(half)
		late /= float64(len(points) - half)
		if early > 0 && late > early*1.25 {
			facts = append(facts, models.Fact{
				Kind:    models.FactTemporalPattern,
				Summary: fmt.Sprintf("%s shows a sustained upward trend across the comparison window", anomaly.MetricName),
			})
		}
	}

	return facts
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
