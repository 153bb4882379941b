package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndTailNewestFirst(t *testing.T) {
	s, err := New(Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	s.Append(Record{Actor: "operator", Action: "tool.call", Outcome: "success"})
	s.Append(Record{Actor: "operator", Action: "tool.call", Outcome: "failure", Error: "timeout"})

	records, err := s.Tail(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "failure", records[0].Outcome)
	require.Equal(t, "success", records[1].Outcome)
}

func TestAppendDefaultsTimestampAndOutcome(t *testing.T) {
	s, err := New(Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	s.Append(Record{Actor: "operator", Action: "agent.start"})

	records, err := s.Tail(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "success", records[0].Outcome)
	require.NotEmpty(t, records[0].Timestamp)
}

func TestDestructiveRecordsAreFlagged(t *testing.T) {
	s, err := New(Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	s.Append(Record{
		Actor:       "operator",
		Action:      "tool.call",
		Arguments:   map[string]any{"command": "rm -rf /tmp/scratch"},
		Destructive: true,
	})

	records, err := s.Tail(1)
	require.NoError(t, err)
	require.Equal(t, "destructive", records[0].Arguments["_flag"])
}

func TestRedactKeysReplaceValues(t *testing.T) {
	s, err := New(Options{DataDir: t.TempDir(), RedactKeys: []string{"api_key"}})
	require.NoError(t, err)

	s.Append(Record{
		Actor:     "operator",
		Action:    "llm.call",
		Arguments: map[string]any{"api_key": "sk-secret", "model": "gpt-test"},
	})

	records, err := s.Tail(1)
	require.NoError(t, err)
	require.Equal(t, redactedValue, records[0].Arguments["api_key"])
	require.Equal(t, "gpt-test", records[0].Arguments["model"])
}

func TestRotationKeepsOnlyConfiguredBackups(t *testing.T) {
	s, err := New(Options{DataDir: t.TempDir(), MaxBytes: 1, MaxBackups: 2})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		s.Append(Record{Actor: "operator", Action: "tick"})
	}

	records, err := s.Tail(1000)
	require.NoError(t, err)
	require.NotEmpty(t, records)
}
