package overrides

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/node-placeholder-scaler/pkg/models"
)

func event(desc string) models.CalendarEvent {
	start := time.Date(2024, 3, 6, 20, 0, 0, 0, time.UTC)
	return models.CalendarEvent{Summary: "lab", Description: desc, Start: start, End: start.Add(time.Hour)}
}

func TestParsePayload(t *testing.T) {
	res := ParsePayload("alpha: 3\nbeta: 0\n")
	require.True(t, res.OK())
	assert.Equal(t, map[string]int{"alpha": 3, "beta": 0}, res.Entries)
	assert.Empty(t, res.Skipped)
}

func TestParsePayload_SkipsNonIntegers(t *testing.T) {
	res := ParsePayload("alpha: 2.5\nbeta: \"4\"\ngamma: true\ndelta: [1]\nepsilon: -1\nzeta: 7\n")
	require.True(t, res.OK())
	assert.Equal(t, map[string]int{"zeta": 7}, res.Entries)
	assert.Len(t, res.Skipped, 5)
}

func TestParsePayload_SkipsCountsBeyondInt32(t *testing.T) {
	r := ParsePayload("alpha: 2147483648\nbeta: 2147483647\n")
	require.True(t, r.OK())
	assert.Equal(t, map[string]int{"beta": 2147483647}, r.Entries)
	require.Len(t, r.Skipped, 1)
	assert.Contains(t, r.Skipped[0], "alpha")
}

func TestParsePayload_NotAMapping(t *testing.T) {
	for _, desc := range []string{"", "   ", "just some text", "- a\n- b", "alpha: [unclosed"} {
		res := ParsePayload(desc)
		assert.False(t, res.OK(), desc)
		assert.True(t, errors.Is(res.Err, ErrCalendarParse), desc)
		assert.Nil(t, res.Entries, desc)
	}
}

func TestResolve_MaxNotSumNotLastWrite(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := NewResolver(logger)

	got := r.Resolve([]models.CalendarEvent{event("poolA: 2"), event("poolA: 5"), event("poolA: 3")})
	assert.Equal(t, Overrides{"poolA": 5}, got)
}

func TestResolve_IsolatesBadEvents(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewResolver(logger)

	got := r.Resolve([]models.CalendarEvent{
		event("not: [valid"),
		event("poolA: 1\npoolB: 4"),
		event("plain words"),
		event(""),
		event("poolB: 2"),
	})

	assert.Equal(t, Overrides{"poolA": 1, "poolB": 4}, got)

	errorsLogged := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorsLogged++
		}
	}
	assert.Equal(t, 3, errorsLogged)
}

func TestResolve_AbsentVersusZero(t *testing.T) {
	logger, _ := test.NewNullLogger()
	got := NewResolver(logger).Resolve([]models.CalendarEvent{event("poolA: 0")})

	v, ok := got.Get("poolA")
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	_, ok = got.Get("poolB")
	assert.False(t, ok)
	assert.Equal(t, []string{"poolA"}, got.Pools())
}

func TestResolve_NoEvents(t *testing.T) {
	got := NewResolver(nil).Resolve(nil)
	assert.Empty(t, got)
}
