package service

import (
	"sort"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/model"
	"olimpo_backend/internal/repository"
)

// RankingService derives rankings and advancement sets from the result store.
// Nothing here is persisted as authoritative: every answer is re-derivable
// from completed attempts plus the olympiad config passed in explicitly.
type RankingService struct {
	Results      *repository.ResultRepository
	Evaluations  *repository.EvaluationRepository
	Participants *repository.ParticipantRepository
	Overrides    *repository.AdvancementRepository
}

func NewRankingService(results *repository.ResultRepository, evaluations *repository.EvaluationRepository, participants *repository.ParticipantRepository, overrides *repository.AdvancementRepository) *RankingService {
	return &RankingService{
		Results:      results,
		Evaluations:  evaluations,
		Participants: participants,
		Overrides:    overrides,
	}
}

// RankingEntry is one dashboard/ranking row.
type RankingEntry struct {
	Position       int     `json:"position"`
	ParticipantID  uint    `json:"participantId"`
	AttemptID      uint    `json:"attemptId"`
	AttemptNumber  int     `json:"attemptNumber"`
	PointsEarned   float64 `json:"pointsEarned"`
	ElapsedMinutes float64 `json:"elapsedMinutes"`
}

// SortResults orders completed attempts by the ranking key: points
// descending, elapsed ascending, then record id so the order is a total
// order, deterministic across repeated calls.
func SortResults(results []model.AttemptResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.PointsEarned != b.PointsEarned {
			return a.PointsEarned > b.PointsEarned
		}
		if a.ElapsedMinutes != b.ElapsedMinutes {
			return a.ElapsedMinutes < b.ElapsedMinutes
		}
		return a.ID < b.ID
	})
}

// Advance returns the first topN distinct participants by rank; each
// participant is represented by their best-ranked attempt only.
func Advance(results []model.AttemptResult, topN int) []uint {
	SortResults(results)
	seen := make(map[uint]bool, topN)
	out := make([]uint, 0, topN)
	for _, r := range results {
		if seen[r.ParticipantID] {
			continue
		}
		seen[r.ParticipantID] = true
		out = append(out, r.ParticipantID)
		if len(out) == topN {
			break
		}
	}
	return out
}

// Rank returns every completed attempt of one evaluation in ranking order.
func (s *RankingService) Rank(evaluationID uint) ([]model.AttemptResult, error) {
	results, err := s.Results.ListCompleted(evaluationID)
	if err != nil {
		return nil, err
	}
	SortResults(results)
	return results, nil
}

// RankEntries is Rank shaped for the dashboard: one row per attempt with
// 1-based positions.
func (s *RankingService) RankEntries(evaluationID uint) ([]RankingEntry, error) {
	results, err := s.Rank(evaluationID)
	if err != nil {
		return nil, err
	}
	entries := make([]RankingEntry, len(results))
	for i, r := range results {
		entries[i] = RankingEntry{
			Position:       i + 1,
			ParticipantID:  r.ParticipantID,
			AttemptID:      r.ID,
			AttemptNumber:  r.AttemptNumber,
			PointsEarned:   r.PointsEarned,
			ElapsedMinutes: r.ElapsedMinutes,
		}
	}
	return entries, nil
}

// stageResults merges completed attempts across every evaluation of one
// stage and year. With the usual single evaluation per stage this is just
// that evaluation's results.
func (s *RankingService) stageResults(stage, year int) ([]model.AttemptResult, error) {
	evals, err := s.Evaluations.ListByStageAndYear(stage, year)
	if err != nil {
		return nil, err
	}
	var all []model.AttemptResult
	for _, e := range evals {
		results, err := s.Results.ListCompleted(e.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// AdvancersFromStage computes the participant set advancing out of a stage
// under the given format config.
func (s *RankingService) AdvancersFromStage(stage, year int, cfg config.OlympiadConfig) ([]uint, error) {
	results, err := s.stageResults(stage, year)
	if err != nil {
		return nil, err
	}

	topN := cfg.Stage2TopN
	if cfg.StageCount == 2 || stage == 2 {
		topN = cfg.Stage3TopN
	}
	return Advance(results, topN), nil
}

// Eligible decides whether the participant may enter the evaluation's stage.
// Stage 1 is the union of assigned groups and individual invitations;
// later stages are the top-N of the previous stage per the format.
func (s *RankingService) Eligible(participant *model.Participant, evaluation *model.Evaluation, cfg config.OlympiadConfig) (bool, error) {
	switch evaluation.Stage {
	case 1:
		return s.enrolledInStage1(participant, evaluation)
	case 2:
		if cfg.StageCount == 2 {
			return false, nil // two-stage format goes straight from 1 to 3
		}
		advancers, err := s.AdvancersFromStage(1, evaluation.Year, cfg)
		if err != nil {
			return false, err
		}
		return containsID(advancers, participant.ID), nil
	case 3:
		fromStage := 2
		if cfg.StageCount == 2 {
			fromStage = 1
		}
		advancers, err := s.AdvancersFromStage(fromStage, evaluation.Year, cfg)
		if err != nil {
			return false, err
		}
		return containsID(advancers, participant.ID), nil
	default:
		return false, nil
	}
}

func (s *RankingService) enrolledInStage1(participant *model.Participant, evaluation *model.Evaluation) (bool, error) {
	eval, err := s.Evaluations.FindByIDWithAssignments(evaluation.ID)
	if err != nil {
		return false, err
	}
	for _, p := range eval.InvitedParticipants {
		if p.ID == participant.ID {
			return true, nil
		}
	}
	if participant.GroupID != nil {
		for _, g := range eval.AssignedGroups {
			if g.ID == *participant.GroupID {
				return true, nil
			}
		}
	}
	return false, nil
}

// ConsistencyReport compares a materialized override list against the live
// computation.
type ConsistencyReport struct {
	EvaluationID uint   `json:"evaluationId"`
	Consistent   bool   `json:"consistent"`
	Missing      []uint `json:"missing,omitempty"` // computed but not in override
	Extra        []uint `json:"extra,omitempty"`   // overridden but not computed
}

// CheckOverrides detects divergence between the stored override rows and the
// advancement the ranking derives right now.
func (s *RankingService) CheckOverrides(evaluationID uint, cfg config.OlympiadConfig) (*ConsistencyReport, error) {
	eval, err := s.Evaluations.FindByID(evaluationID)
	if err != nil {
		return nil, err
	}
	computed, err := s.AdvancersFromStage(eval.Stage, eval.Year, cfg)
	if err != nil {
		return nil, err
	}
	overrides, err := s.Overrides.ListByEvaluation(evaluationID)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		// Nothing materialized; the live computation is the only list.
		return &ConsistencyReport{EvaluationID: evaluationID, Consistent: true}, nil
	}

	overridden := make(map[uint]bool, len(overrides))
	for _, o := range overrides {
		overridden[o.ParticipantID] = true
	}
	computedSet := make(map[uint]bool, len(computed))
	for _, id := range computed {
		computedSet[id] = true
	}

	report := &ConsistencyReport{EvaluationID: evaluationID}
	for _, id := range computed {
		if !overridden[id] {
			report.Missing = append(report.Missing, id)
		}
	}
	for id := range overridden {
		if !computedSet[id] {
			report.Extra = append(report.Extra, id)
		}
	}
	sort.Slice(report.Extra, func(i, j int) bool { return report.Extra[i] < report.Extra[j] })
	report.Consistent = len(report.Missing) == 0 && len(report.Extra) == 0
	return report, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
