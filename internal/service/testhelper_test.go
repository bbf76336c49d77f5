package service

import (
	"testing"
	"time"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/model"
	"olimpo_backend/internal/repository"
	"olimpo_backend/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes
	// concurrent test writers the way the MySQL row locks would.
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db *gorm.DB

	evaluations  *repository.EvaluationRepository
	participants *repository.ParticipantRepository
	questions    *repository.QuestionRepository
	quotas       *repository.QuotaRepository
	results      *repository.ResultRepository
	monitors     *repository.MonitorRepository
	overrides    *repository.AdvancementRepository

	ledger  *LedgerService
	result  *ResultService
	ranking *RankingService
	monitor *MonitorService
	sweep   *SweepService
}

func testMonitorCfg() config.MonitorConfig {
	return config.MonitorConfig{
		InactivityThresholdMinutes: 10,
		InactivityDebounceMinutes:  30,
		InactivitySweepSeconds:     120,
		ExpirySweepSeconds:         30,
		RefreshSweepSeconds:        60,
		StaleRetentionHours:        24,
		StaleSweepHours:            24,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	e := &testEnv{
		db:           db,
		evaluations:  repository.NewEvaluationRepository(db),
		participants: repository.NewParticipantRepository(db),
		questions:    repository.NewQuestionRepository(db),
		quotas:       repository.NewQuotaRepository(db),
		results:      repository.NewResultRepository(db),
		monitors:     repository.NewMonitorRepository(db),
		overrides:    repository.NewAdvancementRepository(db),
	}

	e.ledger = NewLedgerService(e.quotas, e.evaluations)
	e.result = NewResultService(e.results, e.questions, e.evaluations, e.ledger)
	e.ranking = NewRankingService(e.results, e.evaluations, e.participants, e.overrides)
	e.monitor = NewMonitorService(e.monitors, e.evaluations, e.result, e.ledger, nil)
	e.sweep = NewSweepService(e.monitors, e.evaluations, e.result, e.monitor, nil, testMonitorCfg())
	return e
}

func (e *testEnv) createEvaluation(t *testing.T, stage, year int, startsAt, endsAt time.Time, durationMinutes, sampleSize, attemptsDefault int) *model.Evaluation {
	t.Helper()
	eval := &model.Evaluation{
		Title:           "Prueba",
		Stage:           stage,
		Year:            year,
		StartsAt:        startsAt,
		EndsAt:          endsAt,
		DurationMinutes: durationMinutes,
		SampleSize:      sampleSize,
		AttemptsDefault: attemptsDefault,
	}
	if err := e.evaluations.Create(eval); err != nil {
		t.Fatalf("create evaluation: %v", err)
	}
	return eval
}

// openEvaluation is the common case: a window containing now.
func (e *testEnv) openEvaluation(t *testing.T, now time.Time, attemptsDefault int) *model.Evaluation {
	t.Helper()
	return e.createEvaluation(t, 1, now.Year(), now.Add(-time.Hour), now.Add(time.Hour), 60, 0, attemptsDefault)
}

func (e *testEnv) createParticipant(t *testing.T, name string) *model.Participant {
	t.Helper()
	p := &model.Participant{FullName: name, Year: 2026}
	if err := e.participants.Create(p); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	return p
}

func (e *testEnv) createQuestion(t *testing.T, evaluationID, correctOptionID uint) *model.Question {
	t.Helper()
	q := &model.Question{
		EvaluationID:    evaluationID,
		Statement:       "¿?",
		Options:         []byte(`[{"id":1,"text":"a"},{"id":2,"text":"b"},{"id":3,"text":"c"}]`),
		CorrectOptionID: correctOptionID,
		Enabled:         true,
	}
	if err := e.questions.Create(q); err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

// completedResult inserts a sealed attempt directly, for ranking tests that
// do not care how the attempt was produced.
func (e *testEnv) completedResult(t *testing.T, evaluationID, participantID uint, attemptNumber int, points, elapsed float64) *model.AttemptResult {
	t.Helper()
	r := &model.AttemptResult{
		EvaluationID:   evaluationID,
		ParticipantID:  participantID,
		AttemptNumber:  attemptNumber,
		PointsEarned:   points,
		PointsTotal:    10,
		ElapsedMinutes: elapsed,
		StartedAt:      time.Now().Add(-time.Hour),
		Completed:      true,
	}
	if err := e.results.Create(r); err != nil {
		t.Fatalf("create result: %v", err)
	}
	return r
}
