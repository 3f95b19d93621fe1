package monitor

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pricewatch/internal/models"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		direction models.Direction
		threshold float64
		price     float64
		want      bool
	}{
		{"above below threshold", models.DirectionAbove, 100, 95, false},
		{"above at threshold", models.DirectionAbove, 100, 100, true},
		{"above over threshold", models.DirectionAbove, 100, 101, true},
		{"below over threshold", models.DirectionBelow, 100, 101, false},
		{"below at threshold", models.DirectionBelow, 100, 100, true},
		{"below under threshold", models.DirectionBelow, 100, 95, true},
		{"unknown direction", models.Direction("sideways"), 100, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := models.Alert{Symbol: "SYM", Threshold: tt.threshold, Direction: tt.direction}
			if got := Check(alert, tt.price); got != tt.want {
				t.Errorf("Check(%s %v, %v) = %v, want %v", tt.direction, tt.threshold, tt.price, got, tt.want)
			}
		})
	}
}

// Property: Above triggers iff price >= threshold, Below iff price <= threshold.
func TestProperty_CheckMatchesComparison(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)

	properties.Property("above is price >= threshold", prop.ForAll(
		func(threshold, price float64) bool {
			alert := models.Alert{Threshold: threshold, Direction: models.DirectionAbove}
			return Check(alert, price) == (price >= threshold)
		},
		gen.Float64Range(0.01, 1e6),
		gen.Float64Range(0.01, 1e6),
	))

	properties.Property("below is price <= threshold", prop.ForAll(
		func(threshold, price float64) bool {
			alert := models.Alert{Threshold: threshold, Direction: models.DirectionBelow}
			return Check(alert, price) == (price <= threshold)
		},
		gen.Float64Range(0.01, 1e6),
		gen.Float64Range(0.01, 1e6),
	))

	properties.Property("threshold itself triggers both directions", prop.ForAll(
		func(threshold float64) bool {
			above := models.Alert{Threshold: threshold, Direction: models.DirectionAbove}
			below := models.Alert{Threshold: threshold, Direction: models.DirectionBelow}
			return Check(above, threshold) && Check(below, threshold)
		},
		gen.Float64Range(0.01, 1e6),
	))

	properties.TestingRun(t)
}
