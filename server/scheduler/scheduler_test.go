package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)

// waitForTimer blocks until the dispatch loop has armed its next-deadline
// timer, so a subsequent Advance is guaranteed to reach it.
func waitForTimer(t *testing.T, clock *FakeClock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for clock.TimerCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dispatch loop never armed a timer")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitFired(t *testing.T, fired <-chan string) string {
	t.Helper()
	select {
	case id := <-fired:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
		return ""
	}
}

// advanceUntilFired steps fake time forward until a job id arrives.
// Stepping tolerates any interleaving between Add and the dispatch
// loop's timer arming.
func advanceUntilFired(t *testing.T, clock *FakeClock, fired <-chan string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case id := <-fired:
			return id
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("job never fired")
		}
		clock.Advance(30 * time.Second)
		time.Sleep(2 * time.Millisecond)
	}
}

func TestAddRequiresStart(t *testing.T) {
	s := New(NewFakeClock(testEpoch))
	err := s.Add("notify:1", testEpoch.Add(time.Minute), "test", func() {})
	assert.ErrorIs(t, err, ErrSchedulerNotInitialized)
}

func TestFiresAtFireTime(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	require.NoError(t, s.Start())
	defer s.Stop()

	fired := make(chan string, 1)
	require.NoError(t, s.Add("notify:1", testEpoch.Add(time.Minute), "event start", func() {
		fired <- "notify:1"
	}))

	waitForTimer(t, clock)
	clock.Advance(time.Minute)

	assert.Equal(t, "notify:1", waitFired(t, fired))

	// Fired jobs leave the pending set.
	deadline := time.Now().Add(2 * time.Second)
	for len(s.ListPending()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("fired job still pending")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAddReplacesPendingJob(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	require.NoError(t, s.Start())
	defer s.Stop()

	fired := make(chan string, 2)
	require.NoError(t, s.Add("reminder:1", testEpoch.Add(time.Minute), "first", func() {
		fired <- "first"
	}))
	require.NoError(t, s.Add("reminder:1", testEpoch.Add(2*time.Minute), "second", func() {
		fired <- "second"
	}))

	pending := s.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "reminder:1", pending[0].ID)
	assert.Equal(t, "second", pending[0].Description)
	assert.Equal(t, testEpoch.Add(2*time.Minute), pending[0].FireAt)

	assert.Equal(t, "second", advanceUntilFired(t, clock, fired))
	select {
	case id := <-fired:
		t.Fatalf("superseded job fired: %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelAbsentIsNoop(t *testing.T) {
	s := New(NewFakeClock(testEpoch))
	require.NoError(t, s.Start())
	defer s.Stop()

	s.Cancel("never-added")
	assert.Empty(t, s.ListPending())
}

func TestCancelRemovesPendingJob(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	require.NoError(t, s.Start())
	defer s.Stop()

	fired := make(chan string, 1)
	require.NoError(t, s.Add("notify:9", testEpoch.Add(time.Minute), "doomed", func() {
		fired <- "notify:9"
	}))
	s.Cancel("notify:9")

	assert.Empty(t, s.ListPending())

	clock.Advance(time.Hour)
	select {
	case <-fired:
		t.Fatal("cancelled job fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestListPendingOrderedByFireTime(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, s.Add("notify:1", testEpoch.Add(3*time.Minute), "c", func() {}))
	require.NoError(t, s.Add("reminder:1", testEpoch.Add(2*time.Minute), "b", func() {}))
	require.NoError(t, s.Add("reminder:2", testEpoch.Add(time.Minute), "a", func() {}))

	pending := s.ListPending()
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"reminder:2", "reminder:1", "notify:1"},
		[]string{pending[0].ID, pending[1].ID, pending[2].ID})
}

func TestDueJobsFireInSubmissionOrder(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	require.NoError(t, s.Start())
	defer s.Stop()

	fired := make(chan string, 2)
	at := testEpoch.Add(time.Minute)
	require.NoError(t, s.Add("reminder:1", at, "r", func() { fired <- "reminder:1" }))
	require.NoError(t, s.Add("notify:1", at, "n", func() { fired <- "notify:1" }))

	assert.Equal(t, "reminder:1", advanceUntilFired(t, clock, fired))
	assert.Equal(t, "notify:1", waitFired(t, fired))
}

func TestCallbackPanicDoesNotStopDispatch(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	require.NoError(t, s.Start())
	defer s.Stop()

	fired := make(chan string, 1)
	require.NoError(t, s.Add("reminder:1", testEpoch.Add(time.Minute), "boom", func() {
		panic("delivery exploded")
	}))
	waitForTimer(t, clock)
	clock.Advance(time.Minute)

	// The loop must survive and serve the next job.
	require.NoError(t, s.Add("notify:1", testEpoch.Add(2*time.Minute), "ok", func() {
		fired <- "notify:1"
	}))
	waitForTimer(t, clock)
	clock.Advance(time.Minute)

	assert.Equal(t, "notify:1", waitFired(t, fired))
}

func TestStopDrainsInFlightJobs(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	require.NoError(t, s.Start())

	fired := make(chan string, 1)
	require.NoError(t, s.Add("notify:1", testEpoch.Add(time.Minute), "drain", func() {
		fired <- "notify:1"
	}))
	waitForTimer(t, clock)
	clock.Advance(time.Minute)

	assert.Equal(t, "notify:1", waitFired(t, fired))
	s.Stop()

	// After Stop, submissions are rejected again.
	err := s.Add("notify:2", testEpoch.Add(time.Hour), "late", func() {})
	assert.ErrorIs(t, err, ErrSchedulerNotInitialized)
}
