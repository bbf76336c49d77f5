package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/util"
)

func TestConnectCreatesSession(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")

	session, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if session.Estado != model.SessionActiva {
		t.Fatalf("estado = %s, want activa", session.Estado)
	}
	if session.CurrentPage != 1 {
		t.Fatalf("current page = %d, want 1", session.CurrentPage)
	}

	// Reconnecting reuses the same row.
	again, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if again.ID != session.ID {
		t.Fatalf("reconnect created session %d, had %d", again.ID, session.ID)
	}
}

func TestActivityUpdatesSession(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")

	if _, err := e.monitor.Connect(eval.ID, part.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}

	page := 4
	answered := 12
	reviewed := 3
	session, err := e.monitor.Activity(eval.ID, part.ID, MsgProgressUpdate, &page, &answered, &reviewed)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if session.CurrentPage != 4 || session.PreguntasRespondidas != 12 || session.PreguntasRevisadas != 3 {
		t.Fatalf("session = %+v", session)
	}

	// A bare heartbeat only bumps last_activity.
	before := session.LastActivity
	time.Sleep(5 * time.Millisecond)
	session, err = e.monitor.Activity(eval.ID, part.ID, MsgHeartbeat, nil, nil, nil)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if !session.LastActivity.After(before) {
		t.Fatal("heartbeat did not advance last_activity")
	}
	if session.CurrentPage != 4 {
		t.Fatalf("heartbeat reset the page to %d", session.CurrentPage)
	}
}

func TestActivityRejectedAfterFinalizada(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")

	if _, err := e.result.StartAttempt(eval.ID, part.ID, now); err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if _, err := e.monitor.Connect(eval.ID, part.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := e.monitor.Complete(eval.ID, part.ID, nil, model.CompletionParticipantSubmitted, nil, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := e.monitor.Activity(eval.ID, part.ID, MsgHeartbeat, nil, nil, nil); !errors.Is(err, util.ErrSessionFinalizada) {
		t.Fatalf("activity on finalizada: got %v, want ErrSessionFinalizada", err)
	}
	if _, _, err := e.monitor.Autosave(eval.ID, part.ID, map[string]uint{"1": 1}, 100); !errors.Is(err, util.ErrSessionFinalizada) {
		t.Fatalf("autosave on finalizada: got %v, want ErrSessionFinalizada", err)
	}
}

func TestAdminTerminationIsFinalWithoutQuota(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")
	q := e.createQuestion(t, eval.ID, 1)

	attempt, err := e.result.StartAttempt(eval.ID, part.ID, now)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	session, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, _, err := e.monitor.Autosave(eval.ID, part.ID, map[string]uint{answerKey(q): 1}, 3000); err != nil {
		t.Fatalf("autosave: %v", err)
	}

	finalized, err := e.monitor.FinalizeByMonitor(session.ID, "uso de material no permitido", 42)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Estado != model.SessionFinalizada {
		t.Fatalf("estado = %s, want finalizada", finalized.Estado)
	}
	if finalized.TerminatedBy == nil || *finalized.TerminatedBy != 42 {
		t.Fatalf("terminated_by = %v", finalized.TerminatedBy)
	}
	if finalized.TerminationReason != "uso de material no permitido" {
		t.Fatalf("termination_reason = %q", finalized.TerminationReason)
	}

	// The score is 0/10 regardless of the saved answers.
	sealed, err := e.results.FindByID(attempt.ID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if sealed.PointsEarned != 0 || sealed.CompletionReason != model.CompletionAdminTerminated {
		t.Fatalf("sealed = points %v reason %s", sealed.PointsEarned, sealed.CompletionReason)
	}

	// With the single attempt burnt, reconnecting cannot reopen the session.
	again, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if again.Estado != model.SessionFinalizada {
		t.Fatalf("terminated session reactivated without quota: %s", again.Estado)
	}
}

func TestReactivationRequiresQuota(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 2)
	part := e.createParticipant(t, "Ana")

	if _, err := e.result.StartAttempt(eval.ID, part.ID, now); err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if _, err := e.monitor.Connect(eval.ID, part.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := e.monitor.Complete(eval.ID, part.ID, nil, model.CompletionParticipantSubmitted, nil, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// One of two attempts used: the reconnect reopens the session with
	// counters reset.
	session, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if session.Estado != model.SessionActiva {
		t.Fatalf("estado = %s, want activa", session.Estado)
	}
	if session.PreguntasRespondidas != 0 || session.CurrentPage != 1 {
		t.Fatalf("counters not reset: %+v", session)
	}
	if session.TerminatedBy != nil || session.TerminationReason != "" {
		t.Fatalf("termination metadata survived reactivation: %+v", session)
	}
}

func TestAlertsSurviveFinalization(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")

	session, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := e.monitor.AddAlert(session.ID, "cambio_pestana", "Cambio de pestaña detectado", model.SeverityBaja); err != nil {
		t.Fatalf("alert: %v", err)
	}
	if _, err := e.monitor.Complete(eval.ID, part.ID, nil, model.CompletionParticipantSubmitted, nil, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Late irregularities still land on the record.
	if _, err := e.monitor.AddAlert(session.ID, model.AlertInactividad, "Revisión posterior", model.SeverityAlta); err != nil {
		t.Fatalf("post-finalization alert: %v", err)
	}

	reloaded, err := e.monitors.FindByID(session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Alerts) != 2 {
		t.Fatalf("session carries %d alerts, want 2", len(reloaded.Alerts))
	}
	// Newest first, so the dashboard row leads with the latest incident.
	if reloaded.Alerts[0].Tipo != model.AlertInactividad || reloaded.Alerts[1].Tipo != "cambio_pestana" {
		t.Fatalf("alert order = [%s, %s]", reloaded.Alerts[0].Tipo, reloaded.Alerts[1].Tipo)
	}
}

func TestSuspendReactivate(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")

	session, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	suspended, err := e.monitor.Suspend(session.ID, "verificación de identidad")
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if suspended.Estado != model.SessionSuspendida {
		t.Fatalf("estado = %s, want suspendida", suspended.Estado)
	}

	// Suspending twice is rejected; reactivating restores activa.
	if _, err := e.monitor.Suspend(session.ID, "otra vez"); err == nil {
		t.Fatal("double suspend succeeded")
	}
	restored, err := e.monitor.Reactivate(session.ID)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if restored.Estado != model.SessionActiva {
		t.Fatalf("estado = %s, want activa", restored.Estado)
	}
}

func TestSnapshotListsSessions(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	a := e.createParticipant(t, "Ana")
	b := e.createParticipant(t, "Benito")

	if _, err := e.monitor.Connect(eval.ID, a.ID); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	if _, err := e.monitor.Connect(eval.ID, b.ID); err != nil {
		t.Fatalf("connect b: %v", err)
	}

	snap, err := e.monitor.Snapshot(eval.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.EvaluationID != eval.ID || len(snap.Sessions) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	names := map[string]bool{}
	for _, s := range snap.Sessions {
		names[s.ParticipantName] = true
	}
	if !names["Ana"] || !names["Benito"] {
		t.Fatalf("participant names missing from snapshot: %v", names)
	}

	if _, err := e.monitor.Snapshot(9999); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("snapshot of unknown evaluation: got %v, want ErrNotFound", err)
	}
}

// The exam channel burns the quota slot at StartAttempt and only then
// connects; on the last allowed attempt the remaining allowance is already
// zero, so reactivation must key off the open attempt instead.
func TestLastAllowedAttemptReactivates(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 2)
	part := e.createParticipant(t, "Ana")

	if _, err := e.result.StartAttempt(eval.ID, part.ID, now); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := e.monitor.Connect(eval.ID, part.ID); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if _, err := e.monitor.Complete(eval.ID, part.ID, nil, model.CompletionParticipantSubmitted, nil, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Second and final slot: the ledger authorizes the start, then the
	// channel connects with zero allowance left.
	if _, err := e.result.StartAttempt(eval.ID, part.ID, now); err != nil {
		t.Fatalf("second start: %v", err)
	}
	session, err := e.monitor.Connect(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if session.Estado != model.SessionActiva {
		t.Fatalf("estado = %s, want activa on the authorized last attempt", session.Estado)
	}

	if _, err := e.monitor.Activity(eval.ID, part.ID, "heartbeat", nil, nil, nil); err != nil {
		t.Fatalf("heartbeat on last attempt: %v", err)
	}
	if _, _, err := e.monitor.Autosave(eval.ID, part.ID, map[string]uint{"1": 2}, 3000); err != nil {
		t.Fatalf("autosave on last attempt: %v", err)
	}
}

// The loser of a submit/expiry race must not re-announce a transition that
// already happened.
func TestRepeatCompleteBroadcastsOnce(t *testing.T) {
	e := newTestEnv(t)
	hub := NewMonitorHub(nil)
	go hub.Run()
	defer hub.Stop()
	monitor := NewMonitorService(e.monitors, e.evaluations, e.result, e.ledger, hub)

	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")

	admin := newHubClient(hub, "a1", AdminTopic(eval.ID), "admin", eval.ID, 0)
	registerAll(hub, admin)

	if _, err := e.result.StartAttempt(eval.ID, part.ID, now); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := monitor.Connect(eval.ID, part.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := monitor.Complete(eval.ID, part.ID, nil, model.CompletionParticipantSubmitted, nil, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Race loser: the attempt and session are already sealed.
	if _, err := monitor.Complete(eval.ID, part.ID, nil, model.CompletionTimeExpired, nil, ""); err != nil {
		t.Fatalf("repeat complete: %v", err)
	}

	finalizada := 0
	for drained := false; !drained; {
		select {
		case raw := <-admin.Send:
			var msg struct {
				Type string `json:"type"`
				Data struct {
					EventType string `json:"event_type"`
				} `json:"data"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			if msg.Type == MsgParticipantUpdate && msg.Data.EventType == EventFinalizada {
				finalizada++
			}
		default:
			drained = true
		}
	}
	if finalizada != 1 {
		t.Fatalf("finalizada broadcast %d times, want 1", finalizada)
	}
}
