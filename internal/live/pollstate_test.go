package live

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker(filepath.Join(t.TempDir(), "poll_state.json"), 3, 6)
	require.NoError(t, err)
	return tr
}

func TestTracker_SuccessClearsFailures(t *testing.T) {
	tr := newTestTracker(t)

	tr.Failure("polizei_berlin", "fetch: status 503")
	tr.Failure("polizei_berlin", "fetch: status 503")
	tr.Success("polizei_berlin", 12, time.Now())

	states := tr.States()
	s := states["polizei_berlin"]
	assert.Zero(t, s.ConsecutiveFailures)
	assert.Empty(t, s.LastError)
	assert.Equal(t, 12, s.LastArticlesCount)
	assert.Equal(t, 1, s.SuccessCount)
	require.NotNil(t, s.LastSuccessAt)
}

func TestTracker_BackoffSkipsEverySecondCycle(t *testing.T) {
	tr := newTestTracker(t)

	for range 3 {
		tr.Failure("presseportal_hessen", "timeout")
	}

	// Multiplier 2: one cycle skipped, then polled again.
	assert.False(t, tr.ShouldPoll("presseportal_hessen"))
	assert.True(t, tr.ShouldPoll("presseportal_hessen"))

	// Healthy sources are never skipped.
	assert.True(t, tr.ShouldPoll("polizei_berlin"))
}

func TestTracker_SecondThresholdWidensBackoff(t *testing.T) {
	tr := newTestTracker(t)

	for range 6 {
		tr.Failure("polizei_sachsen", "connection reset")
	}

	for range 3 {
		assert.False(t, tr.ShouldPoll("polizei_sachsen"))
	}
	assert.True(t, tr.ShouldPoll("polizei_sachsen"))
}

func TestTracker_SuccessClearsBackoff(t *testing.T) {
	tr := newTestTracker(t)

	for range 3 {
		tr.Failure("polizei_berlin", "timeout")
	}
	tr.Success("polizei_berlin", 3, time.Now())
	assert.True(t, tr.ShouldPoll("polizei_berlin"))
}

func TestTracker_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poll_state.json")
	tr, err := NewTracker(path, 3, 6)
	require.NoError(t, err)

	tr.Success("polizei_berlin", 7, time.Now())
	tr.Failure("presseportal_hessen", "fetch: status 503")
	require.NoError(t, tr.Save())

	reloaded, err := NewTracker(path, 3, 6)
	require.NoError(t, err)

	states := reloaded.States()
	assert.Equal(t, 7, states["polizei_berlin"].LastArticlesCount)
	assert.Equal(t, 1, states["presseportal_hessen"].ConsecutiveFailures)
	assert.Equal(t, "fetch: status 503", states["presseportal_hessen"].LastError)
}

func TestTracker_Snapshot(t *testing.T) {
	tr := newTestTracker(t)
	tr.Success("polizei_berlin", 4, time.Now())
	tr.Failure("presseportal_hessen", "timeout")

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	for _, st := range snap {
		assert.False(t, st.UpdatedAt.IsZero())
		switch st.Source {
		case "polizei_berlin":
			assert.Equal(t, 1, st.SuccessCount)
		case "presseportal_hessen":
			assert.Equal(t, 1, st.ConsecutiveFailures)
		default:
			t.Fatalf("unexpected source %s", st.Source)
		}
	}
}
