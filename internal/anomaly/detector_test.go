package anomaly_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/anomaly"
)

const (
	testSpikeThreshold            = 3.0
	testMinDataPointsForDetection = 3
)

func decs(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.NewFromInt(v))
	}
	return out
}

func TestInspect_NegativeConsumption(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	finding, flagged := detector.Inspect(decimal.NewFromInt(-20), nil)

	if !flagged {
		t.Fatal("Expected negative consumption to be flagged")
	}

	if finding.Reason != anomaly.ReasonNegativeConsumption {
		t.Errorf("Expected reason '%s', got '%s'", anomaly.ReasonNegativeConsumption, finding.Reason)
	}
}

func TestInspect_SuddenSpike(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	history := decs(100, 105, 98, 102, 99)
	value := decimal.NewFromInt(350) // More than 3x the average (~100)

	finding, flagged := detector.Inspect(value, history)

	if !flagged {
		t.Fatal("Expected spike to be flagged")
	}

	if finding.Reason != anomaly.ReasonSpike {
		t.Errorf("Expected reason '%s', got '%s'", anomaly.ReasonSpike, finding.Reason)
	}

	if finding.Detail == "" {
		t.Error("Expected a detail message for spike")
	}
}

func TestInspect_NormalConsumption(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	_, flagged := detector.Inspect(decimal.NewFromInt(110), decs(100, 105, 98))

	if flagged {
		t.Error("Expected no finding for normal consumption")
	}
}

func TestInspect_InsufficientHistory(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	_, flagged := detector.Inspect(decimal.NewFromInt(1000), decs(100, 105))

	if flagged {
		t.Error("Expected no spike detection with fewer data points than required")
	}
}

func TestInspect_EmptyHistoryWithZeroMinimum(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, 0)

	if _, flagged := detector.Inspect(decimal.NewFromInt(1000), nil); flagged {
		t.Error("Expected no spike detection without history")
	}
}

func TestInspect_ZeroAverage(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	if _, flagged := detector.Inspect(decimal.NewFromInt(5), decs(0, 0, 0)); flagged {
		t.Error("Expected no spike against an all-zero history")
	}
}
