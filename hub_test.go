package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

type generatorFunc func(ctx context.Context, text string) ([]Question, error)

func (f generatorFunc) Generate(ctx context.Context, text string) ([]Question, error) {
	return f(ctx, text)
}

func testConfig() *Config {
	return &Config{
		commandBurst:     100,
		commandRate:      100,
		generateRate:     60,
		generatorTimeout: 2 * time.Second,
		maxChars:         2000,
		playerTimeout:    time.Minute,
		port:             8080,
		questionTime:     30 * time.Second,
		scoring:          scoringServer,
	}
}

func newTestHub(cfg *Config) (*Hub, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}
	return NewHub(cfg, nil, clock.now), clock
}

func newTestClient(h *Hub, id string) *Client {
	c := &Client{id: id, send: make(chan ServerMessage, sendQueueSize)}
	h.clients[id] = c
	return c
}

func payload(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return raw
}

func dispatch(t *testing.T, h *Hub, c *Client, event string, ackID int64, data any) {
	t.Helper()
	h.handle(command{client: c, msg: ClientMessage{Event: event, AckID: ackID, Data: payload(t, data)}})
}

func drain(c *Client) []ServerMessage {
	var out []ServerMessage
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func events(msgs []ServerMessage) []string {
	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		names = append(names, m.Event)
	}
	return names
}

func find(t *testing.T, msgs []ServerMessage, event string) ServerMessage {
	t.Helper()
	for _, m := range msgs {
		if m.Event == event {
			return m
		}
	}
	require.Failf(t, "event not found", "no %q in %v", event, events(msgs))
	return ServerMessage{}
}

func TestQuizScenario(t *testing.T) {
	h, clock := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, map[string]string{"name": "Alice", "roomCode": " ab12 "})
	msgs := drain(alice)
	assert.Equal(t, []string{evPlayerJoined, evAck}, events(msgs))

	ack := msgs[1]
	assert.Equal(t, int64(1), ack.AckID)
	created := ack.Data.(roomAck)
	assert.True(t, created.Success)
	assert.True(t, created.IsHost)
	assert.Equal(t, "AB12", created.RoomCode)

	dispatch(t, h, bob, cmdJoinRoom, 7, map[string]string{"name": "Bob", "roomCode": "AB12"})
	joined := find(t, drain(bob), evAck).Data.(roomAck)
	assert.False(t, joined.IsHost)
	assert.Len(t, joined.Players, 2)

	announce := find(t, drain(alice), evPlayerJoined).Data.([]Player)
	assert.Equal(t, "Bob", announce[1].Name)

	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})

	hostQuestions := find(t, drain(alice), evGameStarted).Data.([]Question)
	playerQuestions := find(t, drain(bob), evGameStarted).Data.([]Question)
	assert.Equal(t, "B)", hostQuestions[0].Answer)
	assert.Empty(t, playerQuestions[0].Answer)
	assert.Equal(t, hostQuestions[0].Options, playerQuestions[0].Options)

	clock.advance(10 * time.Second)
	dispatch(t, h, bob, cmdSubmitAnswer, 9, submitAnswerRequest{
		RoomCode:      "AB12",
		QuestionIndex: 0,
		Option:        "B) Paris",
		Points:        30,
		TimeLeft:      30,
	})
	result := find(t, drain(bob), evAck).Data.(AnswerResult)
	assert.True(t, result.Correct)
	assert.Equal(t, 20, result.Score)
	assert.Empty(t, drain(alice), "answers are not broadcast")

	dispatch(t, h, alice, cmdNextQuestion, 0, roomCodeRequest{RoomCode: "AB12"})
	assert.Equal(t, 1, find(t, drain(bob), evNextQuestion).Data)
	drain(alice)

	dispatch(t, h, alice, cmdNextQuestion, 0, roomCodeRequest{RoomCode: "AB12"})

	r, ok := h.registry.Room("AB12")
	require.True(t, ok)
	assert.Equal(t, Finished, r.State)

	for _, c := range []*Client{alice, bob} {
		board := find(t, drain(c), evGameFinished).Data.([]LeaderboardEntry)
		require.Len(t, board, 2)
		assert.Equal(t, "Bob", board[0].Name)
		assert.Equal(t, 20, board[0].Score)
		assert.Equal(t, "Alice", board[1].Name)
		assert.Equal(t, 0, board[1].Score)
	}
}

func TestClientScoringTrustsPoints(t *testing.T) {
	cfg := testConfig()
	cfg.scoring = scoringClient
	h, _ := newTestHub(cfg)
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})

	started := find(t, drain(bob), evGameStarted).Data.([]Question)
	assert.Equal(t, "B)", started[0].Answer, "client scoring needs the answer key")

	dispatch(t, h, bob, cmdSubmitAnswer, 0, submitAnswerRequest{RoomCode: "AB12", Option: "B) Paris", Points: 20, TimeLeft: 20})

	r, _ := h.registry.Room("AB12")
	assert.Equal(t, 20, r.Player("bob").Score)
	assert.Equal(t, 10, r.Player("bob").TimeTaken)
}

func TestCreateAndJoinErrorsAreAcked(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	mallory := newTestClient(h, "mallory")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	drain(alice)

	dispatch(t, h, mallory, cmdCreateRoom, 2, roomRequest{Name: "Mallory", RoomCode: "ab12 "})
	msgs := drain(mallory)
	require.Len(t, msgs, 1)
	assert.Equal(t, evAck, msgs[0].Event)
	assert.Equal(t, errorAck{Error: ErrRoomAlreadyExists.Error()}, msgs[0].Data)
	assert.Empty(t, drain(alice), "errors are never broadcast")

	dispatch(t, h, bob, cmdJoinRoom, 3, roomRequest{Name: "Bob", RoomCode: "ZZZZ"})
	assert.Equal(t, errorAck{Error: ErrRoomNotFound.Error()}, find(t, drain(bob), evAck).Data)

	dispatch(t, h, bob, cmdJoinRoom, 4, map[string]string{"roomCode": "AB12"})
	assert.Equal(t, errorAck{Error: ErrInvalidPayload.Error()}, find(t, drain(bob), evAck).Data)

	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})
	drain(alice)

	dispatch(t, h, bob, cmdJoinRoom, 5, roomRequest{Name: "Bob", RoomCode: "AB12"})
	assert.Equal(t, errorAck{Error: ErrRoomNotJoinable.Error()}, find(t, drain(bob), evAck).Data)
}

func TestCommandErrorsReachOnlyOriginator(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	drain(alice)
	drain(bob)

	dispatch(t, h, bob, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})
	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, evError, msgs[0].Event)
	assert.Equal(t, errorEvent{Command: cmdStartGame, Error: ErrNotHost.Error()}, msgs[0].Data)
	assert.Empty(t, drain(alice))

	dispatch(t, h, bob, cmdNextQuestion, 0, roomCodeRequest{RoomCode: "GONE"})
	assert.Equal(t, errorEvent{Command: cmdNextQuestion, Error: ErrRoomNotFound.Error()}, find(t, drain(bob), evError).Data)

	dispatch(t, h, alice, "dance", 0, nil)
	assert.Equal(t, errorEvent{Command: "dance", Error: ErrUnknownCommand.Error()}, find(t, drain(alice), evError).Data)

	r, _ := h.registry.Room("AB12")
	assert.Equal(t, Waiting, r.State)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})
	drain(alice)

	answer := submitAnswerRequest{RoomCode: "AB12", QuestionIndex: 0, Option: "B) Paris"}
	dispatch(t, h, alice, cmdSubmitAnswer, 2, answer)
	first := find(t, drain(alice), evAck).Data.(AnswerResult)
	assert.Equal(t, 30, first.Points)

	dispatch(t, h, alice, cmdSubmitAnswer, 3, answer)
	assert.Equal(t, errorAck{Error: ErrAlreadyAnswered.Error()}, find(t, drain(alice), evAck).Data)

	r, _ := h.registry.Room("AB12")
	assert.Equal(t, 30, r.Player("alice").Score)
}

func TestDisconnectBroadcastsAndDeletesRoom(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	carol := newTestClient(h, "carol")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	drain(alice)

	h.removeClient(bob)
	left := find(t, drain(alice), evPlayerLeft).Data.([]Player)
	require.Len(t, left, 1)
	assert.Equal(t, "Alice", left[0].Name)

	// Removing twice is harmless.
	h.removeClient(bob)
	assert.Empty(t, drain(alice))

	h.removeClient(alice)
	assert.Equal(t, 0, h.registry.Len())
	assert.Empty(t, h.channels)

	dispatch(t, h, carol, cmdJoinRoom, 1, roomRequest{Name: "Carol", RoomCode: "AB12"})
	assert.Equal(t, errorAck{Error: ErrRoomNotFound.Error()}, find(t, drain(carol), evAck).Data)
}

func TestHostLeavingPromotesNextPlayer(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	carol := newTestClient(h, "carol")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	dispatch(t, h, carol, cmdJoinRoom, 1, roomRequest{Name: "Carol", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})
	drain(alice)
	drain(bob)

	dispatch(t, h, alice, cmdLeaveRoom, 4, roomCodeRequest{RoomCode: "AB12"})
	assert.Equal(t, successAck{Success: true}, find(t, drain(alice), evAck).Data)

	left := find(t, drain(bob), evPlayerLeft).Data.([]Player)
	require.Len(t, left, 2)
	assert.True(t, left[0].IsHost)
	assert.Equal(t, "Bob", left[0].Name)

	dispatch(t, h, bob, cmdNextQuestion, 0, roomCodeRequest{RoomCode: "AB12"})
	assert.Equal(t, 1, find(t, drain(carol), evNextQuestion).Data)

	// Alice no longer receives room events.
	assert.Empty(t, drain(alice))
}

func TestEndGameFinishesEarly(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})
	drain(bob)

	dispatch(t, h, bob, cmdEndGame, 0, roomCodeRequest{RoomCode: "AB12"})
	assert.Equal(t, errorEvent{Command: cmdEndGame, Error: ErrNotHost.Error()}, find(t, drain(bob), evError).Data)

	dispatch(t, h, alice, cmdEndGame, 0, roomCodeRequest{RoomCode: "AB12"})
	board := find(t, drain(bob), evGameFinished).Data.([]LeaderboardEntry)
	assert.Len(t, board, 2)

	r, _ := h.registry.Room("AB12")
	assert.Equal(t, Finished, r.State)
	assert.Equal(t, 1, r.CurrentQuestion)
}

func TestSetReadyAndGetPlayers(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	eve := newTestClient(h, "eve")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	drain(alice)

	dispatch(t, h, bob, cmdSetReady, 0, setReadyRequest{RoomCode: "AB12", Ready: true})
	players := find(t, drain(alice), evPlayerReady).Data.([]Player)
	assert.True(t, players[1].Ready)
	assert.False(t, players[0].Ready)

	dispatch(t, h, eve, cmdGetPlayers, 5, roomCodeRequest{RoomCode: "ab12"})
	got := find(t, drain(eve), evAck)
	assert.Equal(t, int64(5), got.AckID)
	assert.Len(t, got.Data.([]Player), 2)

	dispatch(t, h, eve, cmdGetPlayers, 6, roomCodeRequest{RoomCode: "NONE"})
	assert.Equal(t, []Player{}, find(t, drain(eve), evAck).Data)
}

func TestSwitchingRoomsLeavesPrevious(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "ONE"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "ONE"})
	dispatch(t, h, bob, cmdCreateRoom, 2, roomRequest{Name: "Bob", RoomCode: "TWO"})
	drain(bob)

	left := find(t, drain(alice), evPlayerLeft).Data.([]Player)
	assert.Len(t, left, 1)

	r, ok := h.registry.RoomOf("bob")
	require.True(t, ok)
	assert.Equal(t, "TWO", r.Code)
	assert.Equal(t, 2, h.registry.Len())
}

func TestSlowClientIsDropped(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")
	slow := &Client{id: "slow", send: make(chan ServerMessage, 1)}
	h.clients[slow.id] = slow

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, slow, cmdJoinRoom, 1, roomRequest{Name: "Slow", RoomCode: "AB12"})

	assert.True(t, slow.closed)

	// Broadcasting to a dropped client must not panic.
	dispatch(t, h, alice, cmdSetReady, 0, setReadyRequest{RoomCode: "AB12", Ready: true})
}

func TestReapClosesIdleRooms(t *testing.T) {
	cfg := testConfig()
	cfg.sessionTimeout = time.Hour
	h, clock := newTestHub(cfg)
	alice := newTestClient(h, "alice")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	drain(alice)

	clock.advance(2 * time.Hour)
	h.reap()

	closed := find(t, drain(alice), evRoomClosed).Data.(roomClosedEvent)
	assert.Equal(t, "AB12", closed.RoomCode)
	assert.Equal(t, 0, h.registry.Len())
}

// receive waits for the next message carrying event, failing after a second.
func receive(t *testing.T, c *Client, event string) ServerMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg, ok := <-c.send:
			require.True(t, ok, "client closed while waiting for %q", event)
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			require.Failf(t, "timeout", "no %q received", event)
			return ServerMessage{}
		}
	}
}

func runHub(t *testing.T, cfg *Config, gen QuizGenerator) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHub(cfg, gen, nil)
	go h.run(ctx)
	return h
}

func connect(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := &Client{id: id, send: make(chan ServerMessage, sendQueueSize)}
	require.True(t, h.attach(c))
	return c
}

func submitTo(t *testing.T, h *Hub, c *Client, event string, ackID int64, data any) {
	t.Helper()
	h.submit(command{client: c, msg: ClientMessage{Event: event, AckID: ackID, Data: payload(t, data)}})
}

const quizText = "The Eiffel Tower is in Paris, the capital of France."

func TestGenerateQuizStartsGameWhileOthersJoin(t *testing.T) {
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, text string) ([]Question, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return twoQuestions(), nil
	})
	h := runHub(t, testConfig(), gen)
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	submitTo(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	receive(t, alice, evAck)

	submitTo(t, h, alice, cmdGenerateQuiz, 2, generateQuizRequest{RoomCode: "AB12", Text: quizText})

	submitTo(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	joined := receive(t, bob, evAck).Data.(roomAck)
	assert.True(t, joined.Success)

	submitTo(t, h, alice, cmdGenerateQuiz, 3, generateQuizRequest{RoomCode: "AB12", Text: quizText})
	busy := receive(t, alice, evAck)
	assert.Equal(t, int64(3), busy.AckID)
	assert.Equal(t, errorAck{Error: ErrGenerating.Error()}, busy.Data)

	close(release)

	questions := receive(t, bob, evGameStarted).Data.([]Question)
	assert.Len(t, questions, 2)
	done := receive(t, alice, evAck)
	assert.Equal(t, int64(2), done.AckID)
	assert.Equal(t, successAck{Success: true}, done.Data)
}

func TestGenerateQuizFailureOnlyReachesHost(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, text string) ([]Question, error) {
		return nil, errors.Join(ErrGenerationFailed, errors.New("upstream exploded"))
	})
	h := runHub(t, testConfig(), gen)
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	submitTo(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	receive(t, alice, evAck)
	submitTo(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	receive(t, bob, evAck)

	submitTo(t, h, alice, cmdGenerateQuiz, 0, generateQuizRequest{RoomCode: "AB12", Text: quizText})
	failure := receive(t, alice, evError).Data.(errorEvent)
	assert.Equal(t, errorEvent{Command: cmdGenerateQuiz, Error: ErrGenerationFailed.Error()}, failure)

	// Bob's next message is the ack below, so no failure reached him first.
	submitTo(t, h, bob, cmdGetPlayers, 9, roomCodeRequest{RoomCode: "AB12"})
	next := <-bob.send
	for next.Event == evPlayerJoined {
		next = <-bob.send
	}
	assert.Equal(t, evAck, next.Event)
	assert.Equal(t, int64(9), next.AckID)

	rooms, err := h.JoinableRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1, "room stays waiting after a failed generation")
}

func TestGenerateQuizValidatesBeforeCalling(t *testing.T) {
	called := false
	gen := generatorFunc(func(ctx context.Context, text string) ([]Question, error) {
		called = true
		return twoQuestions(), nil
	})
	h, _ := newTestHub(testConfig())
	h.generator = gen
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	drain(alice)
	drain(bob)

	dispatch(t, h, alice, cmdGenerateQuiz, 1, generateQuizRequest{RoomCode: "AB12", Text: "too short"})
	assert.Equal(t, errorAck{Error: ErrTextTooShort.Error()}, find(t, drain(alice), evAck).Data)

	dispatch(t, h, bob, cmdGenerateQuiz, 1, generateQuizRequest{RoomCode: "AB12", Text: quizText})
	assert.Equal(t, errorAck{Error: ErrNotHost.Error()}, find(t, drain(bob), evAck).Data)

	assert.False(t, called)
}

func TestRejectedFramesReportError(t *testing.T) {
	h, _ := newTestHub(testConfig())
	alice := newTestClient(h, "alice")

	h.handle(command{client: alice, msg: ClientMessage{Event: cmdJoinRoom, AckID: 4}, err: ErrRateLimited})
	assert.Equal(t, errorAck{Error: ErrRateLimited.Error()}, find(t, drain(alice), evAck).Data)
}

func TestGenerationForClosedRoomIsDiscarded(t *testing.T) {
	h, _ := newTestHub(testConfig())
	h.generator = generatorFunc(func(ctx context.Context, text string) ([]Question, error) {
		return twoQuestions(), nil
	})
	alice := newTestClient(h, "alice")
	carol := newTestClient(h, "carol")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdGenerateQuiz, 2, generateQuizRequest{RoomCode: "AB12", Text: quizText})
	h.removeClient(alice)

	dispatch(t, h, carol, cmdCreateRoom, 1, roomRequest{Name: "Carol", RoomCode: "AB12"})
	drain(carol)

	h.finishGeneration(<-h.generated)

	r, ok := h.registry.Room("AB12")
	require.True(t, ok)
	assert.Equal(t, Waiting, r.State)
	assert.Empty(t, drain(carol))
}

func TestGenerationDiscardedWhenRequesterLosesHost(t *testing.T) {
	h, _ := newTestHub(testConfig())
	h.generator = generatorFunc(func(ctx context.Context, text string) ([]Question, error) {
		return twoQuestions(), nil
	})
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, bob, cmdJoinRoom, 1, roomRequest{Name: "Bob", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdGenerateQuiz, 2, generateQuizRequest{RoomCode: "AB12", Text: quizText})
	dispatch(t, h, alice, cmdLeaveRoom, 0, roomCodeRequest{RoomCode: "AB12"})
	drain(bob)

	h.finishGeneration(<-h.generated)

	r, _ := h.registry.Room("AB12")
	assert.Equal(t, Waiting, r.State)
	assert.Empty(t, drain(bob))

	// The new host can generate again.
	dispatch(t, h, bob, cmdGenerateQuiz, 3, generateQuizRequest{RoomCode: "AB12", Text: quizText})
	assert.Empty(t, drain(bob))
	h.finishGeneration(<-h.generated)
	assert.Equal(t, Playing, r.State)
}

func TestAnswerTimedFromReceipt(t *testing.T) {
	h, clock := newTestHub(testConfig())
	alice := newTestClient(h, "alice")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})
	drain(alice)

	received := clock.now().Add(5 * time.Second)
	clock.advance(20 * time.Second)

	h.handle(command{
		client:     alice,
		msg:        ClientMessage{Event: cmdSubmitAnswer, AckID: 2, Data: payload(t, submitAnswerRequest{RoomCode: "AB12", Option: "B) Paris"})},
		receivedAt: received,
	})
	result := find(t, drain(alice), evAck).Data.(AnswerResult)
	assert.Equal(t, 25, result.Points)
}

func TestEmptyOptionStillChargesTime(t *testing.T) {
	h, clock := newTestHub(testConfig())
	alice := newTestClient(h, "alice")

	dispatch(t, h, alice, cmdCreateRoom, 1, roomRequest{Name: "Alice", RoomCode: "AB12"})
	dispatch(t, h, alice, cmdStartGame, 0, startGameRequest{RoomCode: "AB12", Questions: twoQuestions()})
	drain(alice)

	clock.advance(45 * time.Second)
	dispatch(t, h, alice, cmdSubmitAnswer, 2, submitAnswerRequest{RoomCode: "AB12", Option: "", TimeLeft: 0})

	result := find(t, drain(alice), evAck).Data.(AnswerResult)
	assert.False(t, result.Correct)
	assert.Equal(t, 0, result.Points)

	r, _ := h.registry.Room("AB12")
	assert.Equal(t, 30, r.Player("alice").TimeTaken)
}
