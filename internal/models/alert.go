package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the side of the threshold that triggers an alert.
type Direction string

const (
	// DirectionAbove triggers when the price is at or above the threshold.
	DirectionAbove Direction = "above"
	// DirectionBelow triggers when the price is at or below the threshold.
	DirectionBelow Direction = "below"
)

// ParseDirection parses a direction name. Accepts "above"/"below" and the
// "upper"/"lower" aliases, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "above", "upper", "up":
		return DirectionAbove, nil
	case "below", "lower", "down":
		return DirectionBelow, nil
	default:
		return "", fmt.Errorf("unknown direction %q (must be 'above' or 'below')", s)
	}
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive    Status = "active"
	StatusTriggered Status = "triggered"
)

// Alert represents a threshold price alert on a single symbol.
//
// An Active alert has nil TriggeredAt and TriggeredPrice; a Triggered alert
// has both set and is never modified again.
type Alert struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Threshold      float64    `json:"threshold"`
	Direction      Direction  `json:"alert_type"`
	CreatedAt      time.Time  `json:"created_at"`
	Status         Status     `json:"status"`
	TriggeredAt    *time.Time `json:"triggered_at"`
	TriggeredPrice *float64   `json:"triggered_price"`
}

// IsActive reports whether the alert is still awaiting a price crossing.
func (a Alert) IsActive() bool {
	return a.Status == StatusActive
}

// Clone returns a deep copy so callers never share the optional fields.
func (a Alert) Clone() Alert {
	c := a
	if a.TriggeredAt != nil {
		t := *a.TriggeredAt
		c.TriggeredAt = &t
	}
	if a.TriggeredPrice != nil {
		p := *a.TriggeredPrice
		c.TriggeredPrice = &p
	}
	return c
}

// Triggered returns a copy of the alert transitioned to StatusTriggered.
func (a Alert) Triggered(price float64, at time.Time) Alert {
	c := a.Clone()
	c.Status = StatusTriggered
	c.TriggeredAt = &at
	c.TriggeredPrice = &price
	return c
}

// String returns a short human readable description.
func (a Alert) String() string {
	return fmt.Sprintf("%s %s %.2f", a.Symbol, a.Direction, a.Threshold)
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// PriceQuote is a price observed for a symbol at a point in time.
type PriceQuote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	FetchedAt time.Time `json:"fetched_at"`
}
