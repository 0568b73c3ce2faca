// Package reminder turns persisted events into scheduled notification
// jobs: one advance reminder before the event and one notification at
// its start. The planner holds no job state of its own; the full pending
// set is re-derivable from the event store at any time.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/recordabot/recorda/plugin/ai/agent"
	"github.com/recordabot/recorda/plugin/ai/aitime"
	"github.com/recordabot/recorda/server/scheduler"
	"github.com/recordabot/recorda/store"
)

const (
	reminderTemplate = "⏰ ¡Recordatorio! Tenés el evento «%s» el %s."
	notifyTemplate   = "🚀 ¡Tu evento «%s» está empezando ahora!"

	deliveryTimeout = 30 * time.Second
)

// NotificationSink delivers a text to a recipient handle. Delivery
// failures are logged by the planner, not retried.
type NotificationSink interface {
	Deliver(ctx context.Context, recipient string, text string) error
}

// Planner implements the calendar side of event creation: parse the
// date, persist the event, and submit the reminder/notify job pair under
// deterministic ids so replanning replaces instead of duplicating.
type Planner struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	sink      NotificationSink

	advance  time.Duration
	grace    time.Duration
	location *time.Location
	clock    scheduler.Clock
	logger   *slog.Logger
}

// Config wires the planner's collaborators.
type Config struct {
	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Sink      NotificationSink

	// Advance is how long before the event the reminder fires.
	Advance time.Duration
	// Grace is how far past-due fire times are pushed into the future.
	Grace time.Duration

	Location *time.Location
	Clock    scheduler.Clock
}

// NewPlanner creates a planner. Zero durations fall back to one minute
// of advance and ten seconds of grace.
func NewPlanner(cfg Config) *Planner {
	if cfg.Advance <= 0 {
		cfg.Advance = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = scheduler.SystemClock()
	}
	return &Planner{
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		sink:      cfg.Sink,
		advance:   cfg.Advance,
		grace:     cfg.Grace,
		location:  cfg.Location,
		clock:     cfg.Clock,
		logger:    slog.Default(),
	}
}

// CreateEvent parses rawDate, persists the event for the customer and
// schedules its notification jobs. Unparseable dates surface
// aitime.ErrInvalidFormat so the caller can ask for clarification.
func (p *Planner) CreateEvent(ctx context.Context, customerID int32, rawDate string, title string) (*agent.CreatedEvent, error) {
	start, err := aitime.ParseEventDate(rawDate, p.location)
	if err != nil {
		return nil, err
	}

	event, err := p.store.CreateEvent(ctx, &store.Event{
		CustomerID: customerID,
		Title:      title,
		StartTs:    start.Unix(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	customer, err := p.store.GetCustomer(ctx, &store.FindCustomer{ID: &customerID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve event customer")
	}
	if customer == nil {
		return nil, errors.Errorf("customer %d not found", customerID)
	}
	event.CustomerPhone = customer.Phone

	if err := p.Schedule(event); err != nil {
		return nil, err
	}

	p.logger.Info("event created",
		"event_id", event.ID,
		"event_uid", event.UID,
		"customer_id", customerID,
		"start", aitime.FormatEventDate(start))

	return &agent.CreatedEvent{
		EventID: event.ID,
		UID:     event.UID,
		Date:    aitime.FormatEventDate(start),
		Title:   event.Title,
	}, nil
}

// Schedule submits the job pair for one event: reminder:<uid> firing
// advance before the start and notify:<uid> firing at the start. Fire
// times already in the past are clamped forward by the grace period
// instead of firing inline or being dropped. Resubmission replaces the
// pending jobs, so scheduling is idempotent per event.
func (p *Planner) Schedule(event *store.Event) error {
	start := time.Unix(event.StartTs, 0).In(p.location)
	now := p.clock.Now()

	remindAt := p.clampPast(start.Add(-p.advance), now)
	notifyAt := p.clampPast(start, now)

	phone := event.CustomerPhone
	title := event.Title
	startText := aitime.FormatEventDate(start)

	err := p.scheduler.Add(
		ReminderJobID(event.UID),
		remindAt,
		fmt.Sprintf("recordatorio «%s» (%s)", title, startText),
		func() {
			p.deliver(phone, fmt.Sprintf(reminderTemplate, title, startText))
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule reminder job")
	}

	err = p.scheduler.Add(
		NotifyJobID(event.UID),
		notifyAt,
		fmt.Sprintf("inicio «%s» (%s)", title, startText),
		func() {
			p.deliver(phone, fmt.Sprintf(notifyTemplate, title))
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule notify job")
	}
	return nil
}

// ReplanFromStore rebuilds the pending job set from persisted events at
// process start. Every event starting at or after now gets its job pair
// resubmitted; the deterministic ids make the operation idempotent.
func (p *Planner) ReplanFromStore(ctx context.Context) (int, error) {
	events, err := p.store.ListUpcomingEvents(ctx, p.clock.Now().Unix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to list upcoming events")
	}

	for _, event := range events {
		if err := p.Schedule(event); err != nil {
			return 0, errors.Wrapf(err, "failed to replan event %s", event.UID)
		}
	}

	if len(events) > 0 {
		p.logger.Info("replanned pending reminders", "events", len(events))
	}
	return len(events), nil
}

// clampPast pushes a past-due fire time forward so late reminders still
// arrive instead of being dropped or fired inline.
func (p *Planner) clampPast(fireAt, now time.Time) time.Time {
	if fireAt.After(now) {
		return fireAt
	}
	return now.Add(p.grace)
}

func (p *Planner) deliver(recipient, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := p.sink.Deliver(ctx, recipient, text); err != nil {
		p.logger.Error("notification delivery failed", "recipient", recipient, "error", err)
		return
	}
	p.logger.Debug("notification delivered", "recipient", recipient)
}

// ReminderJobID is the deterministic id of an event's advance-reminder job.
func ReminderJobID(eventUID string) string { return "reminder:" + eventUID }

// NotifyJobID is the deterministic id of an event's at-start notification job.
func NotifyJobID(eventUID string) string { return "notify:" + eventUID }
