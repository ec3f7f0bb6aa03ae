package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rota-engine/generic"
)

func TestDate_ParseAndFormat(t *testing.T) {
	d, err := generic.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, time.Thursday, d.Weekday())

	_, err = generic.ParseDate("29/02/2024")
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestDate_JSON(t *testing.T) {
	var payload struct {
		Date generic.Date  `json:"date"`
		Due  *generic.Date `json:"due,omitempty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-01-05T00:00:00.000Z"}`), &payload))
	assert.Equal(t, "2025-01-05", payload.Date.String())
	assert.Nil(t, payload.Due)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-01-05"}`, string(out))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, generic.DaysInMonth(2024, time.February))
	assert.Equal(t, 28, generic.DaysInMonth(2025, time.February))
	assert.Equal(t, 31, generic.DaysInMonth(2025, time.December))
	assert.Equal(t, 30, generic.DaysInMonth(2025, time.April))
}

func TestPeriod_ContainsIsInclusive(t *testing.T) {
	p := generic.Period{Start: generic.MustParseDate("2025-03-10"), End: generic.MustParseDate("2025-03-12")}
	require.NoError(t, p.Validate())

	assert.True(t, p.Contains(generic.MustParseDate("2025-03-10")))
	assert.True(t, p.Contains(generic.MustParseDate("2025-03-12")))
	assert.False(t, p.Contains(generic.MustParseDate("2025-03-13")))
	assert.Equal(t, 3, p.Days())

	bad := generic.Period{Start: p.End, End: p.Start}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)
}

func TestAmount_JSONIsNumeric(t *testing.T) {
	out, err := json.Marshal(generic.USD(1200.5))
	require.NoError(t, err)
	assert.Equal(t, "1200.5", string(out))

	var a generic.Amount
	require.NoError(t, json.Unmarshal([]byte(`4250`), &a))
	assert.True(t, a.Equal(generic.USD(4250)))
	assert.Equal(t, generic.CurrencyUSD, a.Currency)
}
