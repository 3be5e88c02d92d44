package anomaly

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Reasons reported by the detector
const (
	ReasonNegativeConsumption = "negative_consumption"
	ReasonSpike               = "consumption_spike"
)

// Finding is a single flagged condition on a consumption value
type Finding struct {
	Reason string
	Detail string
}

// Detector flags suspicious consumption with configurable thresholds
type Detector struct {
	spikeThreshold            decimal.Decimal
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            decimal.NewFromFloat(spikeThreshold),
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// Inspect checks a period's consumption against the meter's earlier
// consumptions. Negative consumption is always reported; it marks a meter
// replacement or rollover and is never corrected here.
func (d *Detector) Inspect(consumption decimal.Decimal, history []decimal.Decimal) (Finding, bool) {
	if consumption.IsNegative() {
		return Finding{
			Reason: ReasonNegativeConsumption,
			Detail: fmt.Sprintf("consumption %s is below zero (meter replaced or rolled over?)", consumption.String()),
		}, true
	}

	if len(history) == 0 || len(history) < d.minDataPointsForDetection {
		return Finding{}, false
	}

	average := decimal.Avg(history[0], history[1:]...)

	// Detect sudden spike (>threshold x rolling average)
	if average.IsPositive() && consumption.GreaterThan(d.spikeThreshold.Mul(average)) {
		return Finding{
			Reason: ReasonSpike,
			Detail: fmt.Sprintf("consumption %s exceeds %sx rolling average %s",
				consumption.StringFixed(3), d.spikeThreshold.String(), average.StringFixed(3)),
		}, true
	}

	return Finding{}, false
}
