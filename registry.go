/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"fmt"
	"slices"
	"strings"
	"time"
)

const roomCodeLength = 4

// RoomSummary is the lobby view of a joinable room.
type RoomSummary struct {
	Code        string `json:"code"`
	PlayerCount int    `json:"playerCount"`
	Host        string `json:"host"`
}

// Departure describes the outcome of removing a player.
type Departure struct {
	Code        string
	Player      Player
	Room        *Room // nil when the room was deleted
	RoomDeleted bool
	NewHost     *Player
}

// Registry maps normalized room codes to rooms. It is not safe for
// concurrent use; the hub goroutine is its only owner.
type Registry struct {
	rooms   map[string]*Room
	members map[string]string // connection id -> room code
	now     func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		members: make(map[string]string),
		now:     now,
	}
}

func (reg *Registry) Len() int {
	return len(reg.rooms)
}

func (reg *Registry) Room(code string) (*Room, bool) {
	r, ok := reg.rooms[normalizeCode(code)]
	return r, ok
}

// RoomOf returns the room the connection currently sits in.
func (reg *Registry) RoomOf(connID string) (*Room, bool) {
	code, ok := reg.members[connID]
	if !ok {
		return nil, false
	}
	r, ok := reg.rooms[code]
	return r, ok
}

// CreateRoom opens a waiting room with connID as its host. An empty code
// is replaced by a random unused one. A connection sits in at most one room,
// so connID must leave its current room first.
func (reg *Registry) CreateRoom(code, hostName, connID string) (*Room, error) {
	code = normalizeCode(code)
	if held, ok := reg.members[connID]; ok {
		return nil, fmt.Errorf("create %s: seated in %s: %w", code, held, ErrAlreadyInRoom)
	}
	if code == "" {
		code = reg.newCode()
	}
	if _, exists := reg.rooms[code]; exists {
		return nil, fmt.Errorf("create %s: %w", code, ErrRoomAlreadyExists)
	}

	r := newRoom(code, reg.now())
	r.addPlayer(connID, strings.TrimSpace(hostName), true)

	reg.rooms[code] = r
	reg.members[connID] = code

	return r, nil
}

func (reg *Registry) JoinRoom(code, name, connID string) (*Room, error) {
	code = normalizeCode(code)

	r, ok := reg.rooms[code]
	if !ok {
		return nil, fmt.Errorf("join %s: %w", code, ErrRoomNotFound)
	}
	if r.State != Waiting {
		return nil, fmt.Errorf("join %s: %w", code, ErrRoomNotJoinable)
	}
	if r.Player(connID) != nil {
		return r, nil
	}
	if held, ok := reg.members[connID]; ok {
		return nil, fmt.Errorf("join %s: seated in %s: %w", code, held, ErrAlreadyInRoom)
	}

	r.addPlayer(connID, strings.TrimSpace(name), false)
	r.lastActive = reg.now()
	reg.members[connID] = code

	return r, nil
}

// RemovePlayer takes connID out of whatever room holds it. Removing an
// unknown connection is a no-op.
func (reg *Registry) RemovePlayer(connID string) (Departure, bool) {
	code, ok := reg.members[connID]
	if !ok {
		return Departure{}, false
	}
	delete(reg.members, connID)

	r, ok := reg.rooms[code]
	if !ok {
		return Departure{}, false
	}

	removed, promoted := r.removePlayer(connID)
	if removed == nil {
		return Departure{}, false
	}

	d := Departure{
		Code:    code,
		Player:  *removed,
		NewHost: promoted,
	}

	if len(r.Players) == 0 {
		delete(reg.rooms, code)
		d.RoomDeleted = true
		return d, true
	}

	r.lastActive = reg.now()
	d.Room = r

	return d, true
}

// JoinableRooms is a snapshot of every waiting room, ordered by code.
func (reg *Registry) JoinableRooms() []RoomSummary {
	out := make([]RoomSummary, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		if r.State != Waiting {
			continue
		}
		out = append(out, r.summary())
	}

	slices.SortFunc(out, func(a, b RoomSummary) int {
		return strings.Compare(a.Code, b.Code)
	})

	return out
}

func (reg *Registry) touch(r *Room) {
	r.lastActive = reg.now()
}

// Reap deletes rooms that have been idle since before cutoff and returns
// their codes along with the connections that were seated in them.
func (reg *Registry) Reap(cutoff time.Time) map[string][]string {
	reaped := make(map[string][]string)
	for code, r := range reg.rooms {
		if !r.lastActive.Before(cutoff) {
			continue
		}
		ids := make([]string, 0, len(r.Players))
		for _, p := range r.Players {
			ids = append(ids, p.ID)
			delete(reg.members, p.ID)
		}
		delete(reg.rooms, code)
		reaped[code] = ids
	}
	return reaped
}

func (reg *Registry) newCode() string {
	for {
		code := randomCode(roomCodeLength)
		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

func randomCode(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const max = byte(255 - (256 % len(letters)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, letters[int(b)%len(letters)])
				if len(out) == n {
					return string(out)
				}
			}
		}
	}

	return string(out)
}
