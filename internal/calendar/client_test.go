package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCalendar = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//test//placeholder//EN",
	"BEGIN:VEVENT",
	"UID:lecture-1",
	"DTSTAMP:20240301T000000Z",
	"DTSTART:20240306T200000Z",
	"DTEND:20240306T220000Z",
	"SUMMARY:Lecture",
	`DESCRIPTION:user-alpha: 5\nuser-beta: 2`,
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:lab-1",
	"DTSTAMP:20240301T000000Z",
	"DTSTART:20240306T210000Z",
	"DTEND:20240306T230000Z",
	"SUMMARY:Lab",
	"DESCRIPTION:user-alpha: 3",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:later",
	"DTSTAMP:20240301T000000Z",
	"DTSTART:20240410T170000Z",
	"DTEND:20240410T180000Z",
	"SUMMARY:Exam",
	"DESCRIPTION:user-alpha: 40",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetEvents_ActiveAt(t *testing.T) {
	srv := serve(t, http.StatusOK, testCalendar)
	logger, _ := test.NewNullLogger()
	c := NewClient(5*time.Second, logger)

	asOf := time.Date(2024, 3, 6, 21, 30, 0, 0, time.UTC)
	events, err := c.GetEvents(context.Background(), srv.URL, asOf)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "lecture-1", events[0].UID)
	assert.Equal(t, "user-alpha: 5\nuser-beta: 2", events[0].Description)
	assert.Equal(t, "lab-1", events[1].UID)

	events, err = c.GetEvents(context.Background(), srv.URL, time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetEvents_EndIsExclusive(t *testing.T) {
	srv := serve(t, http.StatusOK, testCalendar)
	c := NewClient(0, nil)

	events, err := c.GetEvents(context.Background(), srv.URL, time.Date(2024, 4, 10, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = c.GetEvents(context.Background(), srv.URL, time.Date(2024, 4, 10, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "later", events[0].UID)
}

func TestGetEvents_NoURL(t *testing.T) {
	events, err := NewClient(0, nil).GetEvents(context.Background(), "", time.Now())
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestGetEvents_FetchFailures(t *testing.T) {
	srv := serve(t, http.StatusNotFound, "nope")
	c := NewClient(time.Second, nil)

	_, err := c.GetEvents(context.Background(), srv.URL, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCalendarFetch))

	_, err = c.GetEvents(context.Background(), "http://127.0.0.1:1/unreachable.ics", time.Now())
	assert.True(t, errors.Is(err, ErrCalendarFetch))
}

func TestUnescapeText(t *testing.T) {
	assert.Equal(t, "a: 1\nb: 2", unescapeText(`a: 1\nb: 2`))
	assert.Equal(t, "a: 1\nb: 2", unescapeText("a: 1<br>b: 2"))
	assert.Equal(t, "x, y; z", unescapeText(`x\, y\; z`))
}
