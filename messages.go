/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "encoding/json"

// Inbound command names.
const (
	cmdCreateRoom   = "createRoom"
	cmdJoinRoom     = "joinRoom"
	cmdStartGame    = "startGame"
	cmdGenerateQuiz = "generateQuiz"
	cmdSubmitAnswer = "submitAnswer"
	cmdNextQuestion = "nextQuestion"
	cmdEndGame      = "endGame"
	cmdSetReady     = "setReady"
	cmdLeaveRoom    = "leaveRoom"
	cmdGetPlayers   = "getPlayers"
)

// Outbound event names.
const (
	evAck          = "ack"
	evError        = "error"
	evPlayerJoined = "playerJoined"
	evPlayerLeft   = "playerLeft"
	evPlayerReady  = "playerReady"
	evGameStarted  = "gameStarted"
	evNextQuestion = "nextQuestion"
	evGameFinished = "gameFinished"
	evRoomClosed   = "roomClosed"
)

// ClientMessage is the envelope of every frame a client sends. A non-zero
// AckID asks for a direct reply carrying the same id.
type ClientMessage struct {
	Event string          `json:"event"`
	AckID int64           `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the envelope of every frame the server sends.
type ServerMessage struct {
	Event string `json:"event"`
	AckID int64  `json:"ackId,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type roomRequest struct {
	Name     string `json:"name" validate:"required,max=32"`
	RoomCode string `json:"roomCode" validate:"max=16"`
}

type roomCodeRequest struct {
	RoomCode string `json:"roomCode" validate:"required,max=16"`
}

type startGameRequest struct {
	RoomCode  string     `json:"roomCode" validate:"required,max=16"`
	Questions []Question `json:"questions" validate:"required,min=1,dive"`
}

type generateQuizRequest struct {
	RoomCode string `json:"roomCode" validate:"required,max=16"`
	Text     string `json:"text" validate:"required"`
}

type submitAnswerRequest struct {
	RoomCode      string `json:"roomCode" validate:"required,max=16"`
	QuestionIndex int    `json:"questionIndex" validate:"min=0"`
	Option        string `json:"option"`
	Points        int    `json:"points"`
	TimeLeft      int    `json:"timeLeft"`
}

type setReadyRequest struct {
	RoomCode string `json:"roomCode" validate:"required,max=16"`
	Ready    bool   `json:"ready"`
}

type roomAck struct {
	Success  bool     `json:"success"`
	Players  []Player `json:"players"`
	IsHost   bool     `json:"isHost"`
	RoomCode string   `json:"roomCode"`
}

type errorAck struct {
	Error string `json:"error"`
}

type successAck struct {
	Success bool `json:"success"`
}

type errorEvent struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

type roomClosedEvent struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}
