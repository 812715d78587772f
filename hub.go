/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"time"
)

type command struct {
	client     *Client
	msg        ClientMessage
	receivedAt time.Time
	err        error // set when the frame was rejected before reaching the hub
}

type generationResult struct {
	client    *Client
	msg       ClientMessage
	room      *Room
	questions []Question
	err       error
}

// Hub owns the registry and every room channel. All of its state is
// touched only from the goroutine running run, one command at a time.
type Hub struct {
	cfg       *Config
	registry  *Registry
	scorer    Scorer
	generator QuizGenerator
	now       func() time.Time
	ctx       context.Context

	clients  map[string]*Client
	channels map[string]map[*Client]bool

	register  chan *Client
	unreg     chan *Client
	commands  chan command
	generated chan generationResult
	inspect   chan func()
	done      chan struct{}
}

func NewHub(cfg *Config, gen QuizGenerator, now func() time.Time) *Hub {
	if now == nil {
		now = time.Now
	}
	return &Hub{
		cfg:       cfg,
		registry:  NewRegistry(now),
		scorer:    newScorer(cfg.scoring, cfg.questionSeconds()),
		generator: gen,
		now:       now,
		ctx:       context.Background(),
		clients:   make(map[string]*Client),
		channels:  make(map[string]map[*Client]bool),
		register:  make(chan *Client),
		unreg:     make(chan *Client),
		commands:  make(chan command, 64),
		generated: make(chan generationResult),
		inspect:   make(chan func()),
		done:      make(chan struct{}),
	}
}

func (h *Hub) run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	var reap <-chan time.Time
	if h.cfg.sessionTimeout > 0 {
		ticker := time.NewTicker(h.cfg.sessionTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.clients[c.id] = c

		case c := <-h.unreg:
			h.removeClient(c)

		case cmd := <-h.commands:
			h.handle(cmd)

		case res := <-h.generated:
			h.finishGeneration(res)

		case fn := <-h.inspect:
			fn()

		case <-reap:
			h.reap()
		}
	}
}

// attach registers a client with the running hub.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

// do runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case h.inspect <- func() { fn(); close(finished) }:
	case <-h.done:
		return errors.New("hub stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JoinableRooms returns the lobby snapshot from the running hub.
func (h *Hub) JoinableRooms(ctx context.Context) ([]RoomSummary, error) {
	var rooms []RoomSummary
	err := h.do(ctx, func() {
		rooms = h.registry.JoinableRooms()
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// Joinable reports whether code names a room that still accepts players.
func (h *Hub) Joinable(ctx context.Context, code string) (bool, error) {
	var joinable bool
	err := h.do(ctx, func() {
		r, ok := h.registry.Room(code)
		joinable = ok && r.State == Waiting
	})
	return joinable, err
}

func (h *Hub) handle(cmd command) {
	c, msg := cmd.client, cmd.msg

	err := cmd.err
	if err == nil {
		switch msg.Event {
		case cmdCreateRoom:
			err = h.createRoom(c, msg)
		case cmdJoinRoom:
			err = h.joinRoom(c, msg)
		case cmdStartGame:
			err = h.startGame(c, msg)
		case cmdGenerateQuiz:
			err = h.generateQuiz(c, msg)
		case cmdSubmitAnswer:
			err = h.submitAnswer(c, msg, h.receipt(cmd))
		case cmdNextQuestion:
			err = h.nextQuestion(c, msg)
		case cmdEndGame:
			err = h.endGame(c, msg)
		case cmdSetReady:
			err = h.setReady(c, msg)
		case cmdLeaveRoom:
			err = h.leaveRoom(c, msg)
		case cmdGetPlayers:
			err = h.getPlayers(c, msg)
		default:
			err = ErrUnknownCommand
		}
	}

	if err != nil {
		logf(h.cfg, "GAMES: %s from %s failed: %v", msg.Event, c.id, err)
		h.reportError(c, msg, err)
	}
}

// receipt is when the command's frame was read off the connection.
func (h *Hub) receipt(cmd command) time.Time {
	if cmd.receivedAt.IsZero() {
		return h.now()
	}
	return cmd.receivedAt
}

// reportError answers only the originator: through the ack when one was
// requested, otherwise as an error event.
func (h *Hub) reportError(c *Client, msg ClientMessage, err error) {
	text := publicMessage(err)
	if msg.AckID != 0 {
		h.ack(c, msg, errorAck{Error: text})
		return
	}
	h.deliver(c, ServerMessage{
		Event: evError,
		Data:  errorEvent{Command: msg.Event, Error: text},
	})
}

func (h *Hub) ack(c *Client, msg ClientMessage, data any) {
	h.deliver(c, ServerMessage{Event: evAck, AckID: msg.AckID, Data: data})
}

// deliver queues msg for c without ever blocking the hub. A client that
// cannot keep up is dropped.
func (h *Hub) deliver(c *Client, msg ServerMessage) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		logf(h.cfg, "SOCKS: Dropping %s, send queue full", c.id)
		h.closeClient(c)
	}
}

func (h *Hub) broadcast(code, event string, data any) {
	for c := range h.channels[code] {
		h.deliver(c, ServerMessage{Event: event, Data: data})
	}
}

func (h *Hub) subscribe(code string, c *Client) {
	subs, ok := h.channels[code]
	if !ok {
		subs = make(map[*Client]bool)
		h.channels[code] = subs
	}
	subs[c] = true
}

func (h *Hub) unsubscribe(code string, c *Client) {
	if subs, ok := h.channels[code]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, code)
		}
	}
}

func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (h *Hub) removeClient(c *Client) {
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
	}
	h.leave(c)
	h.closeClient(c)
}

func (h *Hub) closeAll() {
	for id, c := range h.clients {
		h.closeClient(c)
		delete(h.clients, id)
	}
}

// leave removes c from its room, if any, and tells the remaining members.
func (h *Hub) leave(c *Client) {
	d, ok := h.registry.RemovePlayer(c.id)
	if !ok {
		return
	}
	h.unsubscribe(d.Code, c)

	if d.RoomDeleted {
		delete(h.channels, d.Code)
		logf(h.cfg, "ROOMS: Room %s deleted (empty)", d.Code)
		return
	}

	logf(h.cfg, "ROOMS: %q left room %s", d.Player.Name, d.Code)
	if d.NewHost != nil {
		logf(h.cfg, "ROOMS: %q is now host of room %s", d.NewHost.Name, d.Code)
	}

	h.broadcast(d.Code, evPlayerLeft, d.Room.PlayerList())
}

// vacate takes c out of any room other than code before it moves.
func (h *Hub) vacate(c *Client, code string) {
	if r, ok := h.registry.RoomOf(c.id); ok && r.Code != code {
		h.leave(c)
	}
}

// memberRoom resolves code to a room the client sits in.
func (h *Hub) memberRoom(c *Client, code string) (*Room, error) {
	r, ok := h.registry.Room(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Player(c.id) == nil {
		return nil, ErrNotInRoom
	}
	return r, nil
}

func (h *Hub) hostRoom(c *Client, code string) (*Room, error) {
	r, err := h.memberRoom(c, code)
	if err != nil {
		return nil, err
	}
	if !r.IsHost(c.id) {
		return nil, ErrNotHost
	}
	return r, nil
}

func (h *Hub) createRoom(c *Client, msg ClientMessage) error {
	var req roomRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	code := normalizeCode(req.RoomCode)
	if _, exists := h.registry.Room(code); code != "" && exists {
		return ErrRoomAlreadyExists
	}
	h.vacate(c, "")

	r, err := h.registry.CreateRoom(code, req.Name, c.id)
	if err != nil {
		return err
	}

	logf(h.cfg, "ROOMS: Room %s created by %q", r.Code, req.Name)

	h.joined(c, msg, r)

	return nil
}

func (h *Hub) joinRoom(c *Client, msg ClientMessage) error {
	var req roomRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	code := normalizeCode(req.RoomCode)
	if code == "" {
		return ErrRoomNotFound
	}
	if r, ok := h.registry.Room(code); !ok {
		return ErrRoomNotFound
	} else if r.State != Waiting {
		return ErrRoomNotJoinable
	}
	h.vacate(c, code)

	r, err := h.registry.JoinRoom(code, req.Name, c.id)
	if err != nil {
		return err
	}

	logf(h.cfg, "ROOMS: %q joined room %s", req.Name, r.Code)

	h.joined(c, msg, r)

	return nil
}

// joined subscribes c to the room channel, announces it to every member
// and answers the caller.
func (h *Hub) joined(c *Client, msg ClientMessage, r *Room) {
	h.subscribe(r.Code, c)

	players := r.PlayerList()
	h.broadcast(r.Code, evPlayerJoined, players)
	h.ack(c, msg, roomAck{
		Success:  true,
		Players:  players,
		IsHost:   r.IsHost(c.id),
		RoomCode: r.Code,
	})
}

func (h *Hub) startGame(c *Client, msg ClientMessage) error {
	var req startGameRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	r, err := h.hostRoom(c, req.RoomCode)
	if err != nil {
		return err
	}

	return h.start(r, req.Questions)
}

func (h *Hub) start(r *Room, questions []Question) error {
	if err := r.Start(questions, h.now()); err != nil {
		return err
	}
	h.registry.touch(r)

	logf(h.cfg, "GAMES: Game started in room %s with %d questions", r.Code, len(r.Questions))

	// In server scoring mode only the host gets the answer key.
	full := r.publicQuestions(true)
	redacted := full
	if h.cfg.scoring == scoringServer {
		redacted = r.publicQuestions(false)
	}

	for sub := range h.channels[r.Code] {
		data := redacted
		if r.IsHost(sub.id) {
			data = full
		}
		h.deliver(sub, ServerMessage{Event: evGameStarted, Data: data})
	}

	return nil
}

func (h *Hub) generateQuiz(c *Client, msg ClientMessage) error {
	var req generateQuizRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	r, err := h.hostRoom(c, req.RoomCode)
	if err != nil {
		return err
	}
	if r.State != Waiting {
		return ErrGameNotWaiting
	}
	if r.generating {
		return ErrGenerating
	}
	if _, err := checkQuizText(req.Text, h.cfg.maxChars); err != nil {
		return err
	}

	r.generating = true
	gen := h.generator
	ctx := h.ctx

	logf(h.cfg, "QUIZ: Generating questions for room %s", r.Code)

	go func() {
		genCtx, cancel := context.WithTimeout(ctx, h.cfg.generatorTimeout)
		defer cancel()

		questions, err := gen.Generate(genCtx, req.Text)

		select {
		case h.generated <- generationResult{
			client:    c,
			msg:       msg,
			room:      r,
			questions: questions,
			err:       err,
		}:
		case <-h.done:
		}
	}()

	return nil
}

// finishGeneration applies a generation outcome. Failures reach only the
// requesting host and leave the room waiting. The outcome is discarded when
// the room it was requested for is gone or the requester no longer hosts it.
func (h *Hub) finishGeneration(res generationResult) {
	r := res.room
	if cur, ok := h.registry.Room(r.Code); !ok || cur != r || !r.generating {
		logf(h.cfg, "QUIZ: Discarding questions for closed room %s", r.Code)
		return
	}
	r.generating = false

	if !r.IsHost(res.client.id) {
		logf(h.cfg, "QUIZ: Discarding questions for room %s, requester is no longer host", r.Code)
		return
	}

	err := res.err
	if err == nil && r.State != Waiting {
		err = ErrGameNotWaiting
	}
	if err == nil {
		err = h.start(r, res.questions)
	}

	if err != nil {
		logf(h.cfg, "QUIZ: Generation for room %s failed: %v", r.Code, err)
		h.reportError(res.client, res.msg, err)
		return
	}

	if res.msg.AckID != 0 {
		h.ack(res.client, res.msg, successAck{Success: true})
	}
}

func (h *Hub) submitAnswer(c *Client, msg ClientMessage, receivedAt time.Time) error {
	var req submitAnswerRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	r, ok := h.registry.Room(req.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}

	result, err := r.SubmitAnswer(Submission{
		PlayerID:      c.id,
		QuestionIndex: req.QuestionIndex,
		Option:        req.Option,
		Points:        req.Points,
		TimeLeft:      req.TimeLeft,
		ReceivedAt:    receivedAt,
	}, h.scorer)
	if err != nil {
		return err
	}
	h.registry.touch(r)

	logf(h.cfg, "GAMES: %s answered Q%d in room %s for %d pts", c.id, req.QuestionIndex+1, r.Code, result.Points)

	if msg.AckID != 0 {
		h.ack(c, msg, result)
	}

	return nil
}

func (h *Hub) nextQuestion(c *Client, msg ClientMessage) error {
	var req roomCodeRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	r, err := h.hostRoom(c, req.RoomCode)
	if err != nil {
		return err
	}

	finished, err := r.Advance(h.now())
	if err != nil {
		return err
	}
	h.registry.touch(r)

	if finished {
		h.finished(r)
		return nil
	}

	logf(h.cfg, "GAMES: Room %s moved to question %d", r.Code, r.CurrentQuestion+1)
	h.broadcast(r.Code, evNextQuestion, r.CurrentQuestion)

	return nil
}

func (h *Hub) endGame(c *Client, msg ClientMessage) error {
	var req roomCodeRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	r, err := h.hostRoom(c, req.RoomCode)
	if err != nil {
		return err
	}
	if err := r.Finish(); err != nil {
		return err
	}
	h.registry.touch(r)

	h.finished(r)

	return nil
}

func (h *Hub) finished(r *Room) {
	logf(h.cfg, "GAMES: Game finished in room %s", r.Code)
	h.broadcast(r.Code, evGameFinished, r.Leaderboard)
}

func (h *Hub) setReady(c *Client, msg ClientMessage) error {
	var req setReadyRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	r, err := h.memberRoom(c, req.RoomCode)
	if err != nil {
		return err
	}
	if err := r.SetReady(c.id, req.Ready); err != nil {
		return err
	}
	h.registry.touch(r)

	h.broadcast(r.Code, evPlayerReady, r.PlayerList())

	return nil
}

func (h *Hub) leaveRoom(c *Client, msg ClientMessage) error {
	var req roomCodeRequest
	if err := decodePayload(msg.Data, &req); err != nil {
		return err
	}

	if _, err := h.memberRoom(c, req.RoomCode); err != nil {
		return err
	}
	h.leave(c)

	if msg.AckID != 0 {
		h.ack(c, msg, successAck{Success: true})
	}

	return nil
}

// getPlayers answers with the member list, empty when the room is unknown.
func (h *Hub) getPlayers(c *Client, msg ClientMessage) error {
	var req roomCodeRequest
	_ = decodePayload(msg.Data, &req)

	players := []Player{}
	if r, ok := h.registry.Room(req.RoomCode); ok {
		players = r.PlayerList()
	}
	h.ack(c, msg, players)

	return nil
}

// reap closes rooms that saw no activity within the session timeout.
func (h *Hub) reap() {
	cutoff := h.now().Add(-h.cfg.sessionTimeout)

	for code := range h.registry.Reap(cutoff) {
		logf(h.cfg, "ROOMS: Room %s closed after %s idle", code, h.cfg.sessionTimeout)
		h.broadcast(code, evRoomClosed, roomClosedEvent{RoomCode: code, Reason: "idle"})
		delete(h.channels, code)
	}
}
