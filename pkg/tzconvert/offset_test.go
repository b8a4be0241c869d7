package tzconvert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "UTC+00:00"},
		{-10800, "UTC-03:00"},
		{19800, "UTC+05:30"},
		{20700, "UTC+05:45"},
		{-34200, "UTC-09:30"},
		{50400, "UTC+14:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatOffset(tt.seconds))
	}
}

func TestOffsetHours(t *testing.T) {
	assert.InDelta(t, 5.5, OffsetHours(19800), 1e-9)
	assert.InDelta(t, -3.0, OffsetHours(-10800), 1e-9)
	assert.InDelta(t, 5.75, OffsetHours(20700), 1e-9)
}
