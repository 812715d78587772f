/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

type LeaderboardEntry struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	TimeTaken int    `json:"timeTaken"`
	IsHost    bool   `json:"isHost"`
}

// ComputeLeaderboard ranks players by score, then by lower total time.
// Exact ties keep join order.
func ComputeLeaderboard(players []*Player) []LeaderboardEntry {
	board := make([]LeaderboardEntry, 0, len(players))
	for _, p := range players {
		board = append(board, LeaderboardEntry{
			Name:      p.Name,
			Score:     p.Score,
			TimeTaken: p.TimeTaken,
			IsHost:    p.IsHost,
		})
	}

	slices.SortStableFunc(board, func(a, b LeaderboardEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.TimeTaken, b.TimeTaken)
	})

	return board
}

// AwardPoints is the per-answer policy: a correct answer is worth the
// seconds left on the clock, never less than one.
func AwardPoints(correct bool, timeRemaining int) int {
	if !correct {
		return 0
	}
	return max(1, timeRemaining)
}

// OptionLabel extracts the label of an option such as "B) Paris".
func OptionLabel(option string) string {
	label, _, _ := strings.Cut(option, ")")
	return strings.ToUpper(strings.TrimSpace(label))
}

func isCorrect(q Question, option string) bool {
	label := OptionLabel(option)
	return label != "" && label == OptionLabel(q.Answer)
}

type Award struct {
	Correct   bool
	Points    int
	TimeSpent int
}

// Scorer turns a submission into points and time spent.
type Scorer interface {
	Score(q Question, s Submission, elapsed time.Duration) Award
}

func newScorer(mode string, limit int) Scorer {
	if mode == scoringClient {
		return clientScorer{limit: limit}
	}
	return serverScorer{limit: limit}
}

// serverScorer recomputes correctness from the answer key and remaining
// time from the server's own receipt timestamp.
type serverScorer struct {
	limit int
}

func (s serverScorer) Score(q Question, sub Submission, elapsed time.Duration) Award {
	remaining := min(max(s.limit-int(elapsed/time.Second), 0), s.limit)
	correct := isCorrect(q, sub.Option)

	return Award{
		Correct:   correct,
		Points:    AwardPoints(correct, remaining),
		TimeSpent: s.limit - remaining,
	}
}

// clientScorer trusts the points and remaining time reported by the client.
type clientScorer struct {
	limit int
}

func (s clientScorer) Score(q Question, sub Submission, _ time.Duration) Award {
	points := sub.Points
	if OptionLabel(sub.Option) == "" {
		points = 0
	}
	return Award{
		Correct:   isCorrect(q, sub.Option),
		Points:    points,
		TimeSpent: s.limit - sub.TimeLeft,
	}
}
