package monitor

import "pricewatch/internal/models"

// Check reports whether price crosses the alert's threshold.
// Above triggers at or over the threshold, Below at or under it.
func Check(alert models.Alert, price float64) bool {
	switch alert.Direction {
	case models.DirectionAbove:
		return price >= alert.Threshold
	case models.DirectionBelow:
		return price <= alert.Threshold
	default:
		return false
	}
}
