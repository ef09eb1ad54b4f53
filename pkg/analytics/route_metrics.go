package analytics

import (
	"context"
	"math"

	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

const (
	delayThresholdSeconds  = 300
	headwayVariationTarget = 0.3

	delayWeight    = 0.375
	headwayWeight  = 0.375
	bunchingWeight = 0.25
)

type RouteMetrics struct {
	RouteID string `csv:"route_id"`

	AverageDelayMinutes float64 `csv:"average_delay_minutes"`

	HeadwaySamples         int     `csv:"headway_samples"`
	HeadwayVarianceSeconds float64 `csv:"headway_variance_seconds"`
	HeadwayVariation       float64 `csv:"headway_variation"`

	// BunchingScore is the share of headways shorter than the route bunching threshold
	BunchingScore float64 `csv:"bunching_score"`

	EfficiencyScore float64 `csv:"efficiency_score"`
}

// CalculateRouteMetrics combines the stored delay rows and the live headways of
// a route into a single efficiency score between 0 and 100
func (a *Analyzer) CalculateRouteMetrics(ctx context.Context, routeID string) (*RouteMetrics, error) {
	delays, err := a.GetDelayHistory(ctx, routeID, a.Config.DelayHoursBack)
	if err != nil {
		return nil, err
	}

	samples, err := a.headwaySamples(ctx, routeID)
	if err != nil {
		return nil, err
	}

	return ComputeRouteMetrics(routeID, delays, samples[routeID], a.Config.RouteBunchingThreshold.Minutes()), nil
}

func ComputeRouteMetrics(routeID string, delays []*ctdf.RouteDelay, headways []float64, bunchingThresholdMinutes float64) *RouteMetrics {
	metrics := &RouteMetrics{
		RouteID:        routeID,
		HeadwaySamples: len(headways),
	}

	if len(delays) > 0 {
		var total float64
		for _, delay := range delays {
			total += delay.AvgDelayMinutes
		}
		metrics.AverageDelayMinutes = total / float64(len(delays))
	}

	if len(headways) > 0 {
		var mean float64
		bunched := 0
		for _, headway := range headways {
			mean += headway
			if headway < bunchingThresholdMinutes {
				bunched++
			}
		}
		mean /= float64(len(headways))

		var variance float64
		for _, headway := range headways {
			variance += math.Pow((headway-mean)*60, 2)
		}
		variance /= float64(len(headways))

		metrics.HeadwayVarianceSeconds = variance
		if mean > 0 {
			metrics.HeadwayVariation = math.Sqrt(variance) / (mean * 60)
		}
		metrics.BunchingScore = float64(bunched) / float64(len(headways))
	}

	delayScore := 1 - math.Min(math.Max(metrics.AverageDelayMinutes*60, 0)/delayThresholdSeconds, 1)
	headwayScore := 1 - math.Min(metrics.HeadwayVariation/headwayVariationTarget, 1)
	bunchingScore := 1 - metrics.BunchingScore

	metrics.EfficiencyScore = 100 * (delayWeight*delayScore + headwayWeight*headwayScore + bunchingWeight*bunchingScore)

	return metrics
}
