package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopPublishes(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Publish(context.Background(), BuildEvent{BuildID: "b1"}))
	assert.NoError(t, n.Close())
}

func TestBuildEventJSONShape(t *testing.T) {
	ev := BuildEvent{
		BuildID:    "b1",
		Outcome:    "failed",
		Pages:      3,
		Failed:     []string{"bad.md"},
		DurationMS: 12.5,
		At:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "b1", decoded["build_id"])
	assert.Equal(t, "failed", decoded["outcome"])
	assert.Equal(t, float64(3), decoded["pages"])
	assert.Equal(t, []any{"bad.md"}, decoded["failed"])
}

func TestBuildEventOmitsEmptyFailures(t *testing.T) {
	payload, err := json.Marshal(BuildEvent{BuildID: "b2", Outcome: "success"})
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "failed")
}
