package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordabot/recorda/plugin/ai/aitime"
	"github.com/recordabot/recorda/server/scheduler"
	"github.com/recordabot/recorda/store"
	storetest "github.com/recordabot/recorda/store/test"
)

var planEpoch = time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu        sync.Mutex
	delivered []string
	ch        chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan string, 8)}
}

func (s *recordingSink) Deliver(_ context.Context, recipient string, text string) error {
	s.mu.Lock()
	s.delivered = append(s.delivered, recipient+"|"+text)
	s.mu.Unlock()
	s.ch <- text
	return nil
}

type plannerFixture struct {
	planner  *Planner
	store    *store.Store
	sched    *scheduler.Scheduler
	clock    *scheduler.FakeClock
	sink     *recordingSink
	customer *store.Customer
}

func newPlannerFixture(t *testing.T) *plannerFixture {
	t.Helper()
	ctx := context.Background()

	st := storetest.NewTestStore(ctx, t)
	customer, err := st.FindOrCreateCustomer(ctx, "+59891234567")
	require.NoError(t, err)

	clock := scheduler.NewFakeClock(planEpoch)
	sched := scheduler.New(clock)
	require.NoError(t, sched.Start())
	t.Cleanup(sched.Stop)

	sink := newRecordingSink()
	planner := NewPlanner(Config{
		Store:     st,
		Scheduler: sched,
		Sink:      sink,
		Advance:   time.Minute,
		Grace:     10 * time.Second,
		Location:  time.UTC,
		Clock:     clock,
	})

	return &plannerFixture{planner: planner, store: st, sched: sched, clock: clock, sink: sink, customer: customer}
}

func pendingByID(sched *scheduler.Scheduler) map[string]scheduler.PendingJob {
	byID := make(map[string]scheduler.PendingJob)
	for _, j := range sched.ListPending() {
		byID[j.ID] = j
	}
	return byID
}

func TestCreateEventSchedulesJobPair(t *testing.T) {
	f := newPlannerFixture(t)

	created, err := f.planner.CreateEvent(context.Background(), f.customer.ID, "2025-06-25 16:00", "pagar el alquiler")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-25 16:00:00", created.Date)
	assert.Equal(t, "pagar el alquiler", created.Title)
	assert.NotEmpty(t, created.UID)

	pending := pendingByID(f.sched)
	require.Len(t, pending, 2)

	start := time.Date(2025, 6, 25, 16, 0, 0, 0, time.UTC)
	reminder, ok := pending[ReminderJobID(created.UID)]
	require.True(t, ok)
	assert.True(t, reminder.FireAt.Equal(start.Add(-time.Minute)),
		"reminder fires one advance before the event, got %s", reminder.FireAt)

	notify, ok := pending[NotifyJobID(created.UID)]
	require.True(t, ok)
	assert.True(t, notify.FireAt.Equal(start), "notify fires at the event start, got %s", notify.FireAt)
}

func TestCreateEventInvalidDate(t *testing.T) {
	f := newPlannerFixture(t)

	_, err := f.planner.CreateEvent(context.Background(), f.customer.ID, "mañana a la tarde", "algo")
	require.Error(t, err)
	assert.True(t, aitime.IsInvalidFormat(err))
	assert.Empty(t, f.sched.ListPending(), "no jobs scheduled for an unparseable date")
}

func TestScheduleIsIdempotent(t *testing.T) {
	f := newPlannerFixture(t)

	created, err := f.planner.CreateEvent(context.Background(), f.customer.ID, "2025-06-25 16:00", "reunión")
	require.NoError(t, err)

	event, err := f.store.GetEvent(context.Background(), &store.FindEvent{UID: &created.UID})
	require.NoError(t, err)
	event.CustomerPhone = f.customer.Phone

	for range 3 {
		require.NoError(t, f.planner.Schedule(event))
	}

	assert.Len(t, f.sched.ListPending(), 2, "replanning must replace, not duplicate")
}

func TestPastDueFireTimesAreClamped(t *testing.T) {
	f := newPlannerFixture(t)

	// The event started an hour before "now": both fire times are past.
	created, err := f.planner.CreateEvent(context.Background(), f.customer.ID, "2025-06-20 09:00", "vencido")
	require.NoError(t, err)

	now := f.clock.Now()
	for _, id := range []string{ReminderJobID(created.UID), NotifyJobID(created.UID)} {
		job, ok := pendingByID(f.sched)[id]
		require.True(t, ok, "clamping must never drop job %s", id)
		assert.True(t, job.FireAt.After(now), "clamped fire time must stay in the future")
		assert.True(t, job.FireAt.Equal(now.Add(10*time.Second)), "clamped by the grace period, got %s", job.FireAt)
	}
}

func TestReplanFromStoreRestoresJobSet(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	_, err := f.planner.CreateEvent(ctx, f.customer.ID, "2025-06-25 16:00", "reunión")
	require.NoError(t, err)
	_, err = f.planner.CreateEvent(ctx, f.customer.ID, "2025-07-01", "cumpleaños")
	require.NoError(t, err)

	before := pendingByID(f.sched)
	require.Len(t, before, 4)

	// Simulated restart: fresh scheduler, same store.
	restarted := scheduler.New(f.clock)
	require.NoError(t, restarted.Start())
	t.Cleanup(restarted.Stop)

	replanner := NewPlanner(Config{
		Store:     f.store,
		Scheduler: restarted,
		Sink:      f.sink,
		Advance:   time.Minute,
		Grace:     10 * time.Second,
		Location:  time.UTC,
		Clock:     f.clock,
	})

	count, err := replanner.ReplanFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	after := pendingByID(restarted)
	require.Len(t, after, len(before))
	for id := range before {
		_, ok := after[id]
		assert.True(t, ok, "replan must restore job %s", id)
	}
}

func TestFiredJobsDeliverTemplates(t *testing.T) {
	f := newPlannerFixture(t)

	_, err := f.planner.CreateEvent(context.Background(), f.customer.ID, "2025-06-20 10:30", "pagar el alquiler")
	require.NoError(t, err)

	// Step time forward until both notifications arrive; stepping
	// tolerates any interleaving with the dispatch loop's timer arming.
	var got []string
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 2 {
		select {
		case text := <-f.sink.ch:
			got = append(got, text)
			continue
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("notifications never delivered, got %d", len(got))
		}
		f.clock.Advance(time.Minute)
		time.Sleep(2 * time.Millisecond)
	}

	assert.Contains(t, got[0], "⏰ ¡Recordatorio! Tenés el evento «pagar el alquiler» el 2025-06-20 10:30:00.")
	assert.Contains(t, got[1], "🚀 ¡Tu evento «pagar el alquiler» está empezando ahora!")
}
