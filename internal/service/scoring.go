package service

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"

	"olimpo_backend/internal/model"
)

// Scoring and sampling are pure functions so they can be exercised without a
// database. The weighted score is the only score ever stored or compared.

const (
	pointsTotal        = 10.0
	incorrectPenalty   = 0.25
	scoreDecimalPlaces = 1000 // 3 decimals
)

// WeightedScore normalizes raw points to the 0-10 scale, rounded to 3
// decimals. Raw points below zero clamp to zero before normalization.
func WeightedScore(correct, incorrect, sampleSize int) float64 {
	if sampleSize <= 0 {
		return 0
	}
	raw := float64(correct) - incorrectPenalty*float64(incorrect)
	if raw < 0 {
		raw = 0
	}
	weighted := raw / float64(sampleSize) * pointsTotal
	return math.Round(weighted*scoreDecimalPlaces) / scoreDecimalPlaces
}

// sampleSeed derives a stable per-(evaluation, participant) seed so every
// reconnect within an attempt sees the same question subset while different
// participants get independent samples.
func sampleSeed(evaluationID, participantID uint) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", evaluationID, participantID)
	return int64(h.Sum64())
}

// SampleQuestions picks the participant's fixed-size subset of the bank,
// in presentation order. The bank must already be in stable (id) order.
func SampleQuestions(evaluationID, participantID uint, bank []model.Question, sampleSize int) []model.Question {
	if sampleSize <= 0 || sampleSize >= len(bank) {
		out := make([]model.Question, len(bank))
		copy(out, bank)
		return out
	}

	idx := make([]int, len(bank))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(sampleSeed(evaluationID, participantID)))
	rng.Shuffle(len(idx), func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})

	out := make([]model.Question, 0, sampleSize)
	for _, i := range idx[:sampleSize] {
		out = append(out, bank[i])
	}
	return out
}

// ScoreAnswers grades an answer snapshot against the participant's sample.
// Questions outside the sample are ignored; unanswered questions contribute
// nothing in either direction.
func ScoreAnswers(answers map[string]uint, sample []model.Question) (score float64, correct, incorrect int) {
	for _, q := range sample {
		chosen, ok := answers[strconv.FormatUint(uint64(q.ID), 10)]
		if !ok || chosen == 0 {
			continue
		}
		if chosen == q.CorrectOptionID {
			correct++
		} else {
			incorrect++
		}
	}
	return WeightedScore(correct, incorrect, len(sample)), correct, incorrect
}

// MergeAnswers applies a partial autosave on top of the existing snapshot.
// New keys overwrite, omitted keys persist: the merge is monotonic, never a
// destructive replace.
func MergeAnswers(existing, partial map[string]uint) map[string]uint {
	merged := make(map[string]uint, len(existing)+len(partial))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	return merged
}
