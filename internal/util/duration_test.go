package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "one minute", input: "PT1M", expected: time.Minute},
		{name: "seconds", input: "PT30S", expected: 30 * time.Second},
		{name: "hours and minutes", input: "PT1H30M", expected: 90 * time.Minute},
		{name: "days", input: "P2D", expected: 2 * Day},
		{name: "days and time", input: "P1DT2H", expected: Day + 2*time.Hour},
		{name: "fractional seconds", input: "PT0.5S", expected: 500 * time.Millisecond},
		{name: "comma fraction", input: "PT1,5S", expected: 1500 * time.Millisecond},
		{name: "lowercase", input: "pt5m", expected: 5 * time.Minute},
		{name: "negative", input: "-PT10S", expected: -10 * time.Second},
		{name: "explicit plus", input: "+PT10S", expected: 10 * time.Second},
		{name: "zero", input: "PT0S", expected: 0},

		{name: "missing designator", input: "T1M", wantErr: true},
		{name: "no components", input: "P", wantErr: true},
		{name: "empty time section", input: "P1DT", wantErr: true},
		{name: "years unsupported", input: "P1Y", wantErr: true},
		{name: "months in date part unsupported", input: "P1M", wantErr: true},
		{name: "missing unit", input: "PT10", wantErr: true},
		{name: "duplicate unit", input: "PT1M2M", wantErr: true},
		{name: "fraction on minutes", input: "PT1.5M", wantErr: true},
		{name: "overflow", input: "PT9999999999999H", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseISO8601Duration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "iso", input: "PT1M", expected: time.Minute},
		{name: "go syntax", input: "90s", expected: 90 * time.Second},
		{name: "extended days", input: "1d12h", expected: Day + 12*time.Hour},
		{name: "extended weeks", input: "2w", expected: 2 * Week},
		{name: "surrounding spaces", input: "  PT2M ", expected: 2 * time.Minute},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtendedParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "standard minutes", input: "5m", expected: 5 * time.Minute},
		{name: "complex standard duration", input: "1h30m45s", expected: time.Hour + 30*time.Minute + 45*time.Second},
		{name: "days", input: "7d", expected: 7 * Day},
		{name: "weeks and days", input: "1w2d", expected: Week + 2*Day},
		{name: "days with hours", input: "1d6h", expected: Day + 6*time.Hour},
		{name: "missing number", input: "d", wantErr: true},
		{name: "overflow", input: "999999999999w", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtendedParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("PT1M")))
	assert.Equal(t, time.Minute, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("nope")))
}
