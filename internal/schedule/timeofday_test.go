package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
)

func TestParseTimeFormats(t *testing.T) {
	valid := map[string]string{
		"10:00":    "10:00",
		"00:00":    "00:00",
		"23:59":    "23:59",
		"10:00 AM": "10:00",
		"10:00AM":  "10:00",
		"9:05 pm":  "21:05",
		"12:00 AM": "00:00",
		"12:30 PM": "12:30",
		" 1:15 PM": "13:15",
	}
	for raw, want := range valid {
		got, err := ParseTime(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got.String(), raw)
	}

	for _, raw := range []string{"", "9:00", "24:00", "10:60", "0:30 AM", "13:00 PM", "10", "10:0", "ten", "10:00 XM", "10:00:00"} {
		_, err := ParseTime(raw)
		assert.ErrorIs(t, err, apperr.ErrValidation, raw)
	}
}

func TestParseDateCanonicalOnly(t *testing.T) {
	d, err := ParseDate(" 2025-12-03 ")
	require.NoError(t, err)
	assert.Equal(t, Date("2025-12-03"), d)
	assert.Equal(t, "03 Dec 2025", d.Display())

	for _, raw := range []string{"", "3 Dec 2025", "03 Dec 2025", "2025-2-3", "2025-02-30", "2025/02/03"} {
		_, err := ParseDate(raw)
		assert.ErrorIs(t, err, apperr.ErrValidation, raw)
	}
}

func TestParseSlotReportsBothFields(t *testing.T) {
	_, err := ParseSlot("tomorrow", "noon")

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "date", verr.Fields[0].Field)
	assert.Equal(t, "time", verr.Fields[1].Field)
}

func TestSlotDisplayAndInstant(t *testing.T) {
	s := Slot{Date: MustDate("2025-12-03"), Time: MustTime("10:00 AM")}
	assert.Equal(t, "03 Dec 2025 • 10:00 AM", s.Display())

	loc := time.FixedZone("UTC+3", 3*60*60)
	assert.True(t, s.At(loc).Equal(time.Date(2025, 12, 3, 10, 0, 0, 0, loc)))
}

func TestTimeOfDayJSON(t *testing.T) {
	var payload struct {
		Date Date      `json:"date"`
		Time TimeOfDay `json:"time"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-07-01","time":"2:00 PM"}`), &payload))
	assert.Equal(t, MustTime("14:00"), payload.Time)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-07-01","time":"14:00"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"1 Jul 2025","time":"14:00"}`), &payload))
}
