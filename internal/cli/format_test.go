package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: FormatCurrency keeps two decimals, groups digits by three and
// preserves the value.
func TestProperty_CurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^-?\$\d{1,3}(,\d{3})*\.\d{2}$`)

	properties.Property("format is $d,ddd.dd", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCurrency(amount)
			if !grouped.MatchString(formatted) {
				t.Logf("unexpected format for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("value survives formatting", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCurrency(amount)
			clean := strings.NewReplacer("$", "", ",", "").Replace(formatted)
			parsed, err := strconv.ParseFloat(clean, 64)
			if err != nil {
				return false
			}
			return math.Abs(parsed-amount) <= 0.005+1e-9*math.Abs(amount)
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "$0.00"},
		{101, "$101.00"},
		{1000, "$1,000.00"},
		{65000.5, "$65,000.50"},
		{1234567.891, "$1,234,567.89"},
		{-42.1, "-$42.10"},
	}
	for _, tt := range tests {
		if got := FormatCurrency(tt.amount); got != tt.want {
			t.Errorf("FormatCurrency(%v) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestFormatOptional(t *testing.T) {
	if FormatOptionalPrice(nil) != "-" || FormatOptionalTime(nil) != "-" {
		t.Error("nil values should render as -")
	}
	p := 12.5
	if got := FormatOptionalPrice(&p); got != "$12.50" {
		t.Errorf("unexpected price %s", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m 0s"},
		{90 * time.Minute, "1h 30m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("0123456789", 8); got != "01234..." {
		t.Errorf("unexpected truncation %s", got)
	}
	if got := TruncateString("short", 8); got != "short" {
		t.Errorf("short strings should be unchanged, got %s", got)
	}
}
