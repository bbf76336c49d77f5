package service

import (
	"errors"
	"testing"
	"time"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/util"
)

// fakeClock pins the service clocks to a controllable instant.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newSweepEnv(t *testing.T) (*testEnv, *fakeClock) {
	e := newTestEnv(t)
	clock := &fakeClock{now: time.Now()}
	e.monitor.Now = clock.Now
	e.sweep.Now = clock.Now
	return e, clock
}

func TestSweepInactivityDebounce(t *testing.T) {
	e, clock := newSweepEnv(t)
	eval := e.createEvaluation(t, 1, 2026, clock.now.Add(-time.Hour), clock.now.Add(2*time.Hour), 60, 0, 1)
	part := e.createParticipant(t, "Ana")

	session, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Fresh activity: nothing to raise.
	raised, err := e.sweep.SweepInactivity()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if raised != 0 {
		t.Fatalf("raised %d alerts on a fresh session", raised)
	}

	// 20 minutes of silence crosses the 10 minute threshold.
	clock.Advance(20 * time.Minute)
	raised, err = e.sweep.SweepInactivity()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if raised != 1 {
		t.Fatalf("raised %d alerts, want 1", raised)
	}

	// Immediately after, the debounce suppresses a duplicate.
	raised, err = e.sweep.SweepInactivity()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if raised != 0 {
		t.Fatalf("debounce failed: raised %d", raised)
	}

	// Past the 30 minute debounce window the alert repeats.
	clock.Advance(31 * time.Minute)
	raised, err = e.sweep.SweepInactivity()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if raised != 1 {
		t.Fatalf("after debounce window: raised %d, want 1", raised)
	}

	sessions, err := e.monitors.ListByEvaluation(eval.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != session.ID {
		t.Fatalf("sessions = %+v", sessions)
	}
	if len(sessions[0].Alerts) != 2 {
		t.Fatalf("session has %d alerts, want 2", len(sessions[0].Alerts))
	}
	for _, a := range sessions[0].Alerts {
		if a.Tipo != model.AlertInactividad || a.Severidad != model.SeverityMedia {
			t.Fatalf("alert = %+v", a)
		}
	}
}

func TestSweepInactivitySkipsFinalizada(t *testing.T) {
	e, clock := newSweepEnv(t)
	eval := e.createEvaluation(t, 1, 2026, clock.now.Add(-time.Hour), clock.now.Add(2*time.Hour), 60, 0, 1)
	part := e.createParticipant(t, "Ana")

	if _, err := e.monitor.Connect(eval.ID, part.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := e.monitor.Complete(eval.ID, part.ID, nil, model.CompletionParticipantSubmitted, nil, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	clock.Advance(20 * time.Minute)
	raised, err := e.sweep.SweepInactivity()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if raised != 0 {
		t.Fatalf("raised %d alerts on a finalizada session", raised)
	}
}

func TestSweepExpiredAttemptsFinalizesSession(t *testing.T) {
	e, clock := newSweepEnv(t)
	eval := e.createEvaluation(t, 1, 2026, clock.now.Add(-time.Hour), clock.now.Add(3*time.Hour), 60, 0, 1)
	part := e.createParticipant(t, "Ana")

	attempt, err := e.result.StartAttempt(eval.ID, part.ID, clock.now)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if _, err := e.monitor.Connect(eval.ID, part.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}

	clock.Advance(61 * time.Minute)
	expired, err := e.sweep.SweepExpiredAttempts()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired %d attempts, want 1", expired)
	}

	sealed, err := e.results.FindByID(attempt.ID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if !sealed.Completed || sealed.CompletionReason != model.CompletionTimeExpired {
		t.Fatalf("attempt = %+v", sealed)
	}

	session, err := e.monitors.Find(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if session.Estado != model.SessionFinalizada {
		t.Fatalf("session estado = %s, want finalizada", session.Estado)
	}
	// Expiry is not an administrative sanction.
	if session.TerminatedBy != nil {
		t.Fatalf("expiry stamped terminated_by = %v", session.TerminatedBy)
	}

	// The sweep is idempotent.
	expired, err = e.sweep.SweepExpiredAttempts()
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("second sweep expired %d attempts", expired)
	}
}

func TestSweepStaleSessionsPurges(t *testing.T) {
	e, clock := newSweepEnv(t)
	// Window closed two days ago, past the 24 hour retention.
	stale := e.createEvaluation(t, 1, 2026, clock.now.Add(-50*time.Hour), clock.now.Add(-48*time.Hour), 60, 0, 1)
	// Window closed an hour ago, still inside retention.
	recent := e.createEvaluation(t, 1, 2026, clock.now.Add(-3*time.Hour), clock.now.Add(-time.Hour), 60, 0, 1)
	part := e.createParticipant(t, "Ana")

	staleSession := &model.MonitorSession{EvaluationID: stale.ID, ParticipantID: part.ID, Estado: model.SessionFinalizada, LastActivity: clock.now.Add(-49 * time.Hour)}
	if err := e.monitors.Create(staleSession); err != nil {
		t.Fatalf("create stale session: %v", err)
	}
	if err := e.monitors.AddAlert(&model.MonitorAlert{SessionID: staleSession.ID, Tipo: model.AlertInactividad, Descripcion: "x"}); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	recentSession := &model.MonitorSession{EvaluationID: recent.ID, ParticipantID: part.ID, Estado: model.SessionFinalizada, LastActivity: clock.now.Add(-2 * time.Hour)}
	if err := e.monitors.Create(recentSession); err != nil {
		t.Fatalf("create recent session: %v", err)
	}

	purged, err := e.sweep.SweepStaleSessions()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged %d evaluations, want 1", purged)
	}

	if _, err := e.monitors.Find(stale.ID, part.ID); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("stale session survived the purge: %v", err)
	}
	if _, err := e.monitors.Find(recent.ID, part.ID); err != nil {
		t.Fatalf("recent session purged early: %v", err)
	}
}
