package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recurring = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:w1\r\n" +
	"DTSTART:20250106T090000Z\r\n" +
	"DTEND:20250106T100000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE:20250113T090000Z\r\n" +
	"SUMMARY:Weekly\r\n" +
	"LOCATION:HS1\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:w1\r\n" +
	"RECURRENCE-ID:20250120T090000Z\r\n" +
	"DTSTART:20250121T090000Z\r\n" +
	"DTEND:20250121T100000Z\r\n" +
	"SUMMARY:Weekly (moved)\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:d1\r\n" +
	"DTSTART;VALUE=DATE:20250110\r\n" +
	"SUMMARY:Holiday\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:s1\r\n" +
	"DTSTART:20250301T090000Z\r\n" +
	"SUMMARY:Outside\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestPreview(t *testing.T) {
	doc, err := Decode([]byte(recurring))
	require.NoError(t, err)

	occ, err := doc.Preview(PreviewOptions{
		From:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	require.NoError(t, err)

	var got []string
	for _, o := range occ {
		got = append(got, o.Start.Format("01-02 15:04")+" "+o.Summary)
	}
	assert.Equal(t, []string{
		"01-06 09:00 Weekly",
		"01-10 00:00 Holiday",
		"01-21 09:00 Weekly (moved)",
		"01-27 09:00 Weekly",
	}, got)

	assert.Equal(t, time.Hour, occ[0].End.Sub(occ[0].Start))
	assert.Equal(t, "HS1", occ[0].Location)
	assert.True(t, occ[1].AllDay)
	assert.Equal(t, 24*time.Hour, occ[1].End.Sub(occ[1].Start))
}

func TestPreview_Cap(t *testing.T) {
	doc, err := Decode([]byte(recurring))
	require.NoError(t, err)

	occ, err := doc.Preview(PreviewOptions{
		From:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Location:    time.UTC,
		MaxPerEvent: 1,
	})
	require.NoError(t, err)

	weekly := 0
	for _, o := range occ {
		if o.Summary == "Weekly" {
			weekly++
		}
	}
	assert.Equal(t, 1, weekly)
}

func TestPreview_InvalidWindow(t *testing.T) {
	doc, err := Decode([]byte(recurring))
	require.NoError(t, err)

	now := time.Now()
	_, err = doc.Preview(PreviewOptions{From: now, To: now.Add(-time.Hour)})
	assert.Error(t, err)
}
