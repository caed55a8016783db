package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/telcoagent/internal/agentengine"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"", time.Time{}},
		{"1700000000", time.Unix(1700000000, 0).UTC()},
		{"now-2h", now.Add(-2 * time.Hour)},
		{"now - 30m", now.Add(-30 * time.Minute)},
		{"NOW-3d", now.AddDate(0, 0, -3)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSince(tt.input, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseSinceNaturalLanguage(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2 days ago", now)
	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.June, got.Month())
	assert.Equal(t, 13, got.Day())

	got, err = parseSince("2025-01-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.January, got.Month())
	assert.Equal(t, 31, got.Day())
}

func TestParseSinceErrors(t *testing.T) {
	now := time.Now()
	for _, input := range []string{"-5", "now-", "now-2x", "zzqx wqpl"} {
		_, err := parseSince(input, now)
		assert.Error(t, err, input)
	}
}

func TestPrintEngines(t *testing.T) {
	var buf bytes.Buffer
	printEngines(&buf, []agentengine.Engine{
		{DisplayName: "Agent App", ResourceName: "projects/p/locations/l/reasoningEngines/1"},
		{DisplayName: "Other", ResourceName: "projects/p/locations/l/reasoningEngines/2"},
	})
	assert.Equal(t,
		"Agent App\nprojects/p/locations/l/reasoningEngines/1\n\nOther\nprojects/p/locations/l/reasoningEngines/2\n\n",
		buf.String())

	buf.Reset()
	printEngines(&buf, nil)
	assert.Empty(t, buf.String())
}
