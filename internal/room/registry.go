// Package room implements the Room Registry (spec §4.4): pre-match
// rendezvous objects with a fixed roster capacity and an owner, guarded by
// a single lock per spec §5. Grounded on the teacher's RoomManager
// (internal/game/room_manager.go), generalized from MUD rooms keyed by
// coordinate to lobby rooms keyed by a monotonic id.
package room

import (
	"sort"
	"strconv"
	"sync"

	"lobbyplatform/internal/catalog"
)

// Reason codes returned alongside {ok:false} replies (spec §4.4).
const (
	ReasonRoomNotFound    = "room-not-found"
	ReasonFull            = "full"
	ReasonAlreadyInRoom   = "already-in-room"
	ReasonNotOwner        = "not-owner"
	ReasonNotEnoughPlayer = "not-enough-players"
)

// Room is a pre-match rendezvous object (spec §3). Registry is its sole
// owner; callers receive copies from snapshot methods, never the live
// pointer, so they cannot mutate state outside the registry's lock.
type Room struct {
	ID         string
	GameID     string
	GameName   string
	MaxPlayers int
	Owner      string
	Players    []string
	Started    bool
}

// Result is the uniform {ok, reason} shape for mutating operations.
type Result struct {
	OK     bool
	Reason string
}

// Registry is the single authoritative table of rooms (spec §4.4, §5: "a
// single lock guarding the room list and each room's player vector").
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	catalog catalog.Catalog
}

// NewRegistry creates an empty room registry backed by cat for game
// lookups (max players, game name at creation time).
func NewRegistry(cat catalog.Catalog) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		catalog: cat,
	}
}

func (r *Registry) nextIDLocked() string {
	max := 0
	for id := range r.rooms {
		if n, err := strconv.Atoi(id); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// CreateRoom allocates a monotonic room id, seeds players=[username],
// owner=username, is_started=false (spec §4.4).
func (r *Registry) CreateRoom(username, gameID string) (Room, error) {
	maxPlayers, err := r.catalog.GetMaxPlayers(gameID)
	if err != nil {
		return Room{}, err
	}
	gameName, err := r.catalog.GetGameName(gameID)
	if err != nil {
		return Room{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextIDLocked()
	room := &Room{
		ID:         id,
		GameID:     gameID,
		GameName:   gameName,
		MaxPlayers: maxPlayers,
		Owner:      username,
		Players:    []string{username},
	}
	r.rooms[id] = room
	return *room, nil
}

// ListRooms returns a consistent snapshot of every room (spec §4.4,
// §5: "list_rooms returns a consistent snapshot").
func (r *Registry) ListRooms() []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room.snapshot())
	}
	sort.Slice(rooms, func(i, j int) bool {
		a, _ := strconv.Atoi(rooms[i].ID)
		b, _ := strconv.Atoi(rooms[j].ID)
		return a < b
	})
	return rooms
}

// GetRoom returns a snapshot of a single room.
func (r *Registry) GetRoom(roomID string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return room.snapshot(), true
}

func (room *Room) snapshot() Room {
	players := make([]string, len(room.Players))
	copy(players, room.Players)
	cp := *room
	cp.Players = players
	return cp
}

// JoinRoom appends username to a room's player list (spec §4.4).
func (r *Registry) JoinRoom(roomID, username string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return Result{OK: false, Reason: ReasonRoomNotFound}
	}
	for _, p := range room.Players {
		if p == username {
			return Result{OK: false, Reason: ReasonAlreadyInRoom}
		}
	}
	if len(room.Players) >= room.MaxPlayers {
		return Result{OK: false, Reason: ReasonFull}
	}
	room.Players = append(room.Players, username)
	return Result{OK: true}
}

// LeaveRoom removes username; if the room becomes empty it is deleted,
// else if the leaver was owner, players[0] is promoted (spec §4.4).
func (r *Registry) LeaveRoom(roomID, username string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return Result{OK: false, Reason: ReasonRoomNotFound}
	}
	r.removePlayerLocked(room, username)
	return Result{OK: true}
}

// removePlayerLocked removes username from room, deleting the room if it
// becomes empty or promoting a new owner when the owner leaves. Caller
// must hold r.mu.
func (r *Registry) removePlayerLocked(room *Room, username string) {
	idx := -1
	for i, p := range room.Players {
		if p == username {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

	if len(room.Players) == 0 {
		delete(r.rooms, room.ID)
		return
	}
	if room.Owner == username {
		room.Owner = room.Players[0]
	}
}

// StartGame validates ownership and full roster, then flips is_started.
// The caller (lobby endpoint) is responsible for invoking the Game
// Supervisor and broadcasting START; this method only performs the
// registry-side state transition (spec §4.4).
func (r *Registry) StartGame(roomID, username string) (Room, Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, Result{OK: false, Reason: ReasonRoomNotFound}
	}
	if room.Owner != username {
		return Room{}, Result{OK: false, Reason: ReasonNotOwner}
	}
	if len(room.Players) != room.MaxPlayers {
		return Room{}, Result{OK: false, Reason: ReasonNotEnoughPlayer}
	}

	room.Started = true
	return room.snapshot(), Result{OK: true}
}

// MarkSupervisionFailed reverts is_started if the Game Supervisor failed
// to spawn the process (spec §4.5: "the room's is_started remains false").
func (r *Registry) MarkSupervisionFailed(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.Started = false
	}
}

// RemoveRoom deletes a room outright, used by the Game Supervisor's
// watcher when the supervised process exits (spec §4.5, §4.6 state table).
func (r *Registry) RemoveRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}

// LeaveAll removes username from every room it is a member of, applying
// the same empty-room-delete / owner-promotion rule as LeaveRoom. Used by
// disconnect reconciliation (spec §4.6a). Returns the ids of rooms the
// player was removed from.
func (r *Registry) LeaveAll(username string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []string
	for id, room := range r.rooms {
		for _, p := range room.Players {
			if p == username {
				affected = append(affected, id)
				r.removePlayerLocked(room, username)
				break
			}
		}
	}
	return affected
}
