package claims

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2025-01-15", Date{2025, time.January, 15}, false},
		{" 2024-02-29 ", Date{2024, time.February, 29}, false},
		{"2025-01-15T10:30:00Z", Date{2025, time.January, 15}, false},
		{"not-a-date", Date{}, true},
		{"2025-02-30", Date{}, true},
		{"", Date{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateWeekdayStartsMonday(t *testing.T) {
	// 2024-01-01 was a Monday.
	monday := MustParseDate("2024-01-01")
	for i := 0; i < 7; i++ {
		assert.Equal(t, i, monday.AddDays(i).Weekday())
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2023-12-31")
	assert.Equal(t, "2024-01-01", d.AddDays(1).String())
	assert.Equal(t, 365, d.YearDay())
	assert.Equal(t, 366, MustParseDate("2024-12-31").YearDay())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))
}

func TestDateJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		D Date `json:"d"`
	}{MustParseDate("2025-03-07")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-03-07"}`, string(payload))

	var back struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal(payload, &back))
	assert.Equal(t, MustParseDate("2025-03-07"), back.D)
}
