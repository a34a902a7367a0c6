package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"candidash/internal/domain"
)

func dueReminder(id, toEmail, company string, freq int) domain.DueReminder {
	return domain.DueReminder{
		Reminder:  domain.Reminder{ID: id, FrequencyDays: freq, IsActive: true},
		JobTrack:  domain.JobTrack{ID: "track-" + id, Title: "Dev " + id, Company: company},
		UserEmail: toEmail,
		Username:  "ada",
	}
}

type reminderEnv struct {
	svc       *ReminderService
	tracks    *JobTrackService
	reminders *mockReminderRepo
	now       time.Time
}

func newReminderEnv() reminderEnv {
	now := time.Date(2025, 2, 10, 8, 30, 0, 0, time.UTC)
	trackRepo := newMockJobTrackRepo()
	tracks := NewJobTrackService(zap.NewNop(), trackRepo)
	tracks.now = func() time.Time { return now }
	reminders := newMockReminderRepo(trackRepo)
	svc := NewReminderService(zap.NewNop(), reminders, tracks, newMockEmailSender())
	svc.now = func() time.Time { return now }
	return reminderEnv{svc: svc, tracks: tracks, reminders: reminders, now: now}
}

func (e reminderEnv) track(t *testing.T, userID, title string) domain.JobTrack {
	t.Helper()
	track, err := e.tracks.Create(context.Background(), userID, JobTrackFields{Title: ptr(title)})
	if err != nil {
		t.Fatalf("create track: %v", err)
	}
	return track
}

func TestReminderProcessDue(t *testing.T) {
	now := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	repo := newMockReminderRepo(nil)
	repo.due = []domain.DueReminder{
		dueReminder("r1", "ada@example.com", "Acme", 3),
		dueReminder("r2", "bounce@example.com", "Globex", 7),
		dueReminder("r3", "ada@example.com", "", 1),
	}
	sender := newMockEmailSender()
	sender.failFor["bounce@example.com"] = true

	svc := NewReminderService(zap.NewNop(), repo, nil, sender)
	svc.now = func() time.Time { return now }

	result, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReminderRunResult{Processed: 3, Successful: 2, Failed: 1}, result)
	require.Equal(t, dueReminderBatch, repo.limit)

	require.Len(t, sender.reminders, 2)
	require.Equal(t, "Acme", sender.reminders[0].Company)
	require.Equal(t, "Unspecified company", sender.reminders[1].Company)
	require.Equal(t, "Dev r3", sender.reminders[1].JobTitle)

	require.Equal(t, [2]time.Time{now, now.AddDate(0, 0, 3)}, repo.marked["r1"])
	require.Equal(t, [2]time.Time{now, now.AddDate(0, 0, 1)}, repo.marked["r3"])
	_, touched := repo.marked["r2"]
	require.False(t, touched, "failed send must leave the reminder due")
}

func TestReminderProcessDue_Empty(t *testing.T) {
	svc := NewReminderService(zap.NewNop(), newMockReminderRepo(nil), nil, newMockEmailSender())

	result, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReminderRunResult{}, result)
}

func TestReminderCreate(t *testing.T) {
	env := newReminderEnv()
	ctx := context.Background()
	track := env.track(t, "u1", "Dev")
	next := env.now.Add(72 * time.Hour)

	reminder, err := env.svc.Create(ctx, "u1", CreateReminderInput{
		JobTrackID:     track.ID,
		ReminderFields: ReminderFields{Frequency: ptr(7), NextReminderAt: &next},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := uuid.Parse(reminder.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", reminder.ID)
	}
	if reminder.JobTrackID != track.ID || reminder.FrequencyDays != 7 || !reminder.IsActive || !reminder.NextReminderAt.Equal(next) {
		t.Fatalf("unexpected reminder: %+v", reminder)
	}

	if _, err := env.svc.Create(ctx, "u1", CreateReminderInput{
		JobTrackID:     track.ID,
		ReminderFields: ReminderFields{Frequency: ptr(1), NextReminderAt: &next},
	}); !errors.Is(err, ErrReminderExists) {
		t.Fatalf("second reminder on the same track: expected ErrReminderExists, got %v", err)
	}
}

func TestReminderCreate_Rejections(t *testing.T) {
	env := newReminderEnv()
	ctx := context.Background()
	track := env.track(t, "u1", "Dev")
	next := env.now.Add(time.Hour)

	cases := []struct {
		name   string
		userID string
		in     CreateReminderInput
		want   error
	}{
		{"missing frequency", "u1", CreateReminderInput{JobTrackID: track.ID, ReminderFields: ReminderFields{NextReminderAt: &next}}, ErrInvalidReminder},
		{"missing date", "u1", CreateReminderInput{JobTrackID: track.ID, ReminderFields: ReminderFields{Frequency: ptr(3)}}, ErrInvalidReminder},
		{"zero frequency", "u1", CreateReminderInput{JobTrackID: track.ID, ReminderFields: ReminderFields{Frequency: ptr(0), NextReminderAt: &next}}, ErrInvalidReminder},
		{"foreign track", "u2", CreateReminderInput{JobTrackID: track.ID, ReminderFields: ReminderFields{Frequency: ptr(3), NextReminderAt: &next}}, ErrForbidden},
		{"unknown track", "u1", CreateReminderInput{JobTrackID: uuid.NewString(), ReminderFields: ReminderFields{Frequency: ptr(3), NextReminderAt: &next}}, ErrJobTrackNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.Create(ctx, tc.userID, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if got, _ := env.reminders.ListByJobTrack(ctx, track.ID); len(got) != 0 {
		t.Fatalf("rejected creates must not persist: %+v", got)
	}
}

func TestReminderListing(t *testing.T) {
	env := newReminderEnv()
	ctx := context.Background()
	soon, later := env.now.Add(time.Hour), env.now.Add(48*time.Hour)

	first := env.track(t, "u1", "First")
	second := env.track(t, "u1", "Second")
	paused := env.track(t, "u1", "Paused")
	foreign := env.track(t, "u2", "Other")
	for _, c := range []struct {
		track  domain.JobTrack
		next   time.Time
		active bool
	}{
		{first, later, true},
		{second, soon, true},
		{paused, soon, false},
		{foreign, soon, true},
	} {
		owner := c.track.UserID
		if _, err := env.svc.Create(ctx, owner, CreateReminderInput{
			JobTrackID:     c.track.ID,
			ReminderFields: ReminderFields{Frequency: ptr(2), NextReminderAt: &c.next, IsActive: ptr(c.active)},
		}); err != nil {
			t.Fatalf("seed reminder: %v", err)
		}
	}

	active, err := env.svc.ListActive(ctx, "u1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 || active[0].JobTrackID != second.ID || active[1].JobTrackID != first.ID {
		t.Fatalf("expected u1's active reminders soonest first, got %+v", active)
	}

	empty, err := env.svc.ListActive(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", empty, err)
	}

	byTrack, err := env.svc.ListByJobTrack(ctx, paused.ID, "u1")
	if err != nil || len(byTrack) != 1 || byTrack[0].IsActive {
		t.Fatalf("list by track should include inactive reminders: %+v %v", byTrack, err)
	}
	if _, err := env.svc.ListByJobTrack(ctx, foreign.ID, "u1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestReminderGetUpdateMarkSentDelete(t *testing.T) {
	env := newReminderEnv()
	ctx := context.Background()
	track := env.track(t, "u1", "Dev")
	next := env.now.Add(24 * time.Hour)

	created, err := env.svc.Create(ctx, "u1", CreateReminderInput{
		JobTrackID:     track.ID,
		ReminderFields: ReminderFields{Frequency: ptr(3), NextReminderAt: &next},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.svc.Get(ctx, created.ID, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign get: expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.Get(ctx, uuid.NewString(), "u1"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("unknown id: expected ErrReminderNotFound, got %v", err)
	}
	if _, err := env.svc.Get(ctx, "not-a-uuid", "u1"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("malformed id: expected ErrReminderNotFound, got %v", err)
	}

	updated, err := env.svc.Update(ctx, created.ID, "u1", ReminderFields{IsActive: ptr(false)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsActive || updated.FrequencyDays != 3 || !updated.NextReminderAt.Equal(next) {
		t.Fatalf("partial update touched other fields: %+v", updated)
	}
	if _, err := env.svc.Update(ctx, created.ID, "u1", ReminderFields{Frequency: ptr(-2)}); !errors.Is(err, ErrInvalidReminder) {
		t.Fatalf("expected ErrInvalidReminder, got %v", err)
	}
	if _, err := env.svc.Update(ctx, created.ID, "u2", ReminderFields{Frequency: ptr(9)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign update: expected ErrForbidden, got %v", err)
	}

	sent, err := env.svc.MarkSent(ctx, created.ID, "u1")
	if err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if sent.LastSentAt == nil || !sent.LastSentAt.Equal(env.now) || !sent.NextReminderAt.Equal(env.now.AddDate(0, 0, 3)) {
		t.Fatalf("unexpected mark-sent result: %+v", sent)
	}
	if stored, _ := env.reminders.GetByID(ctx, created.ID); !stored.NextReminderAt.Equal(sent.NextReminderAt) {
		t.Fatalf("mark-sent not persisted: %+v", stored)
	}
	if _, err := env.svc.MarkSent(ctx, created.ID, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign mark-sent: expected ErrForbidden, got %v", err)
	}

	if _, err := env.svc.Delete(ctx, created.ID, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign delete: expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.Delete(ctx, created.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.svc.Get(ctx, created.ID, "u1"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("deleted reminder: expected ErrReminderNotFound, got %v", err)
	}
}

func TestReminderStats(t *testing.T) {
	env := newReminderEnv()
	ctx := context.Background()

	for i, next := range []time.Time{
		env.now.Add(-time.Hour),
		env.now.Add(2 * time.Hour),
		env.now.AddDate(0, 0, 3),
		env.now.AddDate(0, 0, 30),
	} {
		track := env.track(t, "u1", "Dev")
		if _, err := env.svc.Create(ctx, "u1", CreateReminderInput{
			JobTrackID:     track.ID,
			ReminderFields: ReminderFields{Frequency: ptr(i + 1), NextReminderAt: &next},
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	inactive := env.track(t, "u2", "Paused")
	past := env.now.Add(-time.Hour)
	if _, err := env.svc.Create(ctx, "u2", CreateReminderInput{
		JobTrackID:     inactive.ID,
		ReminderFields: ReminderFields{Frequency: ptr(1), NextReminderAt: &past, IsActive: ptr(false)},
	}); err != nil {
		t.Fatalf("seed inactive: %v", err)
	}

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ReminderStats{TotalActive: 4, DueNow: 1, DueToday: 2, DueThisWeek: 3}, stats)

	endOfDay := time.Date(2025, 2, 10, 23, 59, 59, 999999999, time.UTC)
	require.Equal(t, [3]time.Time{env.now, endOfDay, env.now.AddDate(0, 0, 7)}, env.reminders.statsArgs)
}
