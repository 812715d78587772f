/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
	"time"
)

type RoomState int

const (
	Waiting RoomState = iota
	Playing
	Finished
)

func (s RoomState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("RoomState(%d)", int(s))
}

func (s RoomState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Player is one connection's seat in a room. A reconnect is a new Player.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Score     int    `json:"score"`
	TimeTaken int    `json:"timeTaken"`
	Ready     bool   `json:"ready"`

	answered int // index of the last scored question, -1 if none
}

type Question struct {
	Prompt  string   `json:"question" validate:"required"`
	Options []string `json:"options" validate:"min=2,dive,required"`
	Answer  string   `json:"answer,omitempty" validate:"required"`
}

// AnswerResult is what the submitter learns about a scored answer.
type AnswerResult struct {
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	Score         int    `json:"score"`
	Answer        string `json:"answer,omitempty"`
}

type Room struct {
	Code            string
	Players         []*Player
	Questions       []Question
	CurrentQuestion int
	State           RoomState
	Leaderboard     []LeaderboardEntry

	createdAt         time.Time
	lastActive        time.Time
	questionStartedAt time.Time
	generating        bool
}

// normalizeCode is applied to every room code entering the system.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		Code:       code,
		State:      Waiting,
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) Host() *Player {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (r *Room) IsHost(id string) bool {
	p := r.Player(id)
	return p != nil && p.IsHost
}

// PlayerList returns copies of the players in join order.
func (r *Room) PlayerList() []Player {
	out := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, *p)
	}
	return out
}

func (r *Room) addPlayer(id, name string, host bool) *Player {
	p := &Player{
		ID:       id,
		Name:     name,
		IsHost:   host,
		answered: -1,
	}
	r.Players = append(r.Players, p)
	return p
}

// removePlayer drops the player with id. When the host leaves, the earliest
// remaining joiner is promoted and returned.
func (r *Room) removePlayer(id string) (removed *Player, promoted *Player) {
	for i, p := range r.Players {
		if p.ID != id {
			continue
		}
		removed = p
		r.Players = append(r.Players[:i], r.Players[i+1:]...)
		break
	}
	if removed == nil || !removed.IsHost || len(r.Players) == 0 {
		return removed, nil
	}
	r.Players[0].IsHost = true
	return removed, r.Players[0]
}

// Start moves a waiting room into play with the given questions.
func (r *Room) Start(questions []Question, now time.Time) error {
	if r.State != Waiting {
		return ErrGameNotWaiting
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	r.Questions = append([]Question(nil), questions...)
	r.CurrentQuestion = 0
	r.State = Playing
	r.generating = false
	r.questionStartedAt = now

	for _, p := range r.Players {
		p.Score = 0
		p.TimeTaken = 0
		p.answered = -1
	}

	return nil
}

// Advance moves to the next question, or finishes the game when there
// is none left.
func (r *Room) Advance(now time.Time) (finished bool, err error) {
	if r.State != Playing {
		return false, ErrGameNotPlaying
	}

	if r.CurrentQuestion+1 < len(r.Questions) {
		r.CurrentQuestion++
		r.questionStartedAt = now
		return false, nil
	}

	r.finish()
	return true, nil
}

// Finish ends a game early.
func (r *Room) Finish() error {
	if r.State != Playing {
		return ErrGameNotPlaying
	}
	r.finish()
	return nil
}

func (r *Room) finish() {
	r.State = Finished
	r.CurrentQuestion = len(r.Questions) - 1
	r.Leaderboard = ComputeLeaderboard(r.Players)
}

// Submission is one answer as received from a client.
type Submission struct {
	PlayerID      string
	QuestionIndex int
	Option        string
	Points        int
	TimeLeft      int
	ReceivedAt    time.Time
}

// SubmitAnswer scores one answer. A player is scored at most once per
// question and only for the question currently shown.
func (r *Room) SubmitAnswer(s Submission, sc Scorer) (AnswerResult, error) {
	if r.State != Playing {
		return AnswerResult{}, ErrGameNotPlaying
	}

	p := r.Player(s.PlayerID)
	if p == nil {
		return AnswerResult{}, ErrNotInRoom
	}
	if s.QuestionIndex != r.CurrentQuestion {
		return AnswerResult{}, ErrStaleQuestion
	}
	if p.answered >= s.QuestionIndex {
		return AnswerResult{}, ErrAlreadyAnswered
	}

	q := r.Questions[r.CurrentQuestion]
	award := sc.Score(q, s, s.ReceivedAt.Sub(r.questionStartedAt))

	p.answered = s.QuestionIndex
	p.Score += award.Points
	p.TimeTaken += award.TimeSpent

	return AnswerResult{
		QuestionIndex: s.QuestionIndex,
		Correct:       award.Correct,
		Points:        award.Points,
		Score:         p.Score,
		Answer:        q.Answer,
	}, nil
}

func (r *Room) SetReady(id string, ready bool) error {
	p := r.Player(id)
	if p == nil {
		return ErrNotInRoom
	}
	p.Ready = ready
	return nil
}

// publicQuestions returns the question list as broadcast to members. The
// answer key is left out when withAnswers is false.
func (r *Room) publicQuestions(withAnswers bool) []Question {
	out := make([]Question, len(r.Questions))
	for i, q := range r.Questions {
		out[i] = Question{
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
		}
		if withAnswers {
			out[i].Answer = q.Answer
		}
	}
	return out
}

func (r *Room) summary() RoomSummary {
	host := "Unknown"
	if h := r.Host(); h != nil {
		host = h.Name
	}
	return RoomSummary{
		Code:        r.Code,
		PlayerCount: len(r.Players),
		Host:        host,
	}
}
