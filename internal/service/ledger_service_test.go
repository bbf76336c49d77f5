package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"olimpo_backend/internal/util"
)

func TestQuotaLazyDefault(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 3)
	part := e.createParticipant(t, "Ana")

	quota, err := e.ledger.GetOrCreate(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if quota.AttemptsAllowed != 3 || quota.AttemptsUsed != 0 {
		t.Fatalf("quota = %d/%d, want 0/3", quota.AttemptsUsed, quota.AttemptsAllowed)
	}

	again, err := e.ledger.GetOrCreate(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if again.ID != quota.ID {
		t.Fatalf("second GetOrCreate created a new row: %d vs %d", again.ID, quota.ID)
	}
}

func TestRegisterAttemptStartExhaustion(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 2)
	part := e.createParticipant(t, "Ana")

	for i := 0; i < 2; i++ {
		if _, err := e.ledger.RegisterAttemptStart(eval.ID, part.ID); err != nil {
			t.Fatalf("attempt %d rejected: %v", i+1, err)
		}
	}
	if _, err := e.ledger.RegisterAttemptStart(eval.ID, part.ID); !errors.Is(err, util.ErrQuotaExhausted) {
		t.Fatalf("third attempt: got %v, want ErrQuotaExhausted", err)
	}

	can, err := e.ledger.CanAttempt(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("CanAttempt: %v", err)
	}
	if can {
		t.Fatal("CanAttempt reported headroom on an exhausted quota")
	}
}

func TestRegisterAttemptStartConcurrent(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 1)
	part := e.createParticipant(t, "Ana")

	// Pre-create so every goroutine races the guarded increment, not the
	// insert.
	if _, err := e.ledger.GetOrCreate(eval.ID, part.ID); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.ledger.RegisterAttemptStart(eval.ID, part.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, util.ErrQuotaExhausted):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d goroutines won the single slot, want exactly 1", wins)
	}

	quota, err := e.ledger.GetOrCreate(eval.ID, part.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if quota.AttemptsUsed != 1 {
		t.Fatalf("attempts_used = %d, want 1", quota.AttemptsUsed)
	}
}

func TestSetAllowed(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now()
	eval := e.openEvaluation(t, now, 2)
	part := e.createParticipant(t, "Ana")

	for i := 0; i < 2; i++ {
		if _, err := e.ledger.RegisterAttemptStart(eval.ID, part.ID); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	// Below used: rejected without mutation.
	if _, err := e.ledger.SetAllowed(eval.ID, part.ID, 1, 99); !errors.Is(err, util.ErrQuotaBelowUsed) {
		t.Fatalf("lowering below used: got %v, want ErrQuotaBelowUsed", err)
	}

	// Equal to used is a legal no-op even though zero rows change.
	if _, err := e.ledger.SetAllowed(eval.ID, part.ID, 2, 99); err != nil {
		t.Fatalf("setting allowed == used: %v", err)
	}

	// Raising grants another slot.
	quota, err := e.ledger.SetAllowed(eval.ID, part.ID, 3, 99)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if quota.AttemptsAllowed != 3 {
		t.Fatalf("allowed = %d, want 3", quota.AttemptsAllowed)
	}
	if !quota.CanAttempt() {
		t.Fatal("raised quota still reports no headroom")
	}
}
