package lobbyserver

import (
	"io"

	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/protocol"
	"lobbyplatform/internal/room"
)

func (s *Server) handleListRooms() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		rooms := s.rooms.ListRooms()
		out := make([]map[string]any, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, map[string]any{
				"room_id":     r.ID,
				"game_id":     r.GameID,
				"game_name":   r.GameName,
				"players":     r.Players,
				"max_players": r.MaxPlayers,
				"room_owner":  r.Owner,
				"is_started":  r.Started,
			})
		}
		return reply(w, protocol.TypeListRooms, map[string]any{"rooms": out})
	}
}

func (s *Server) handleCreateRoom() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username, gameID string
		env.Get("username", &username)
		env.Get("game_id", &gameID)

		r, err := s.rooms.CreateRoom(username, gameID)
		if err != nil {
			return failure(w, protocol.TypeCreateRoom, "game not found")
		}
		return success(w, protocol.TypeCreateRoom, map[string]any{"room_id": r.ID})
	}
}

func roomReasonMessage(reason string) string {
	switch reason {
	case room.ReasonRoomNotFound:
		return "Room not found"
	case room.ReasonFull:
		return "Room full"
	case room.ReasonAlreadyInRoom:
		return "Already in room"
	case room.ReasonNotOwner:
		return "Only room owner can start the game"
	case room.ReasonNotEnoughPlayer:
		return "Not enough players"
	default:
		return reason
	}
}

func (s *Server) handleJoinRoom() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var roomID, username string
		env.Get("room_id", &roomID)
		env.Get("username", &username)

		result := s.rooms.JoinRoom(roomID, username)
		if !result.OK {
			return failure(w, protocol.TypeJoinRoom, roomReasonMessage(result.Reason))
		}
		return success(w, protocol.TypeJoinRoom, nil)
	}
}

func (s *Server) handleLeaveRoom() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var roomID, username string
		env.Get("room_id", &roomID)
		env.Get("username", &username)

		result := s.rooms.LeaveRoom(roomID, username)
		if !result.OK {
			return failure(w, protocol.TypeLeaveRoom, roomReasonMessage(result.Reason))
		}
		return success(w, protocol.TypeLeaveRoom, nil)
	}
}

// handleStartGame implements spec §4.4's start_game and §4.5's supervisor
// hand-off: validate via the Room Registry, spawn the game server, flip
// is_started, then broadcast START to every player (best-effort per
// recipient, spec §4.4).
func (s *Server) handleStartGame() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var roomID, username string
		env.Get("room_id", &roomID)
		env.Get("username", &username)

		r, result := s.rooms.StartGame(roomID, username)
		if !result.OK {
			return failure(w, protocol.TypeStartGame, roomReasonMessage(result.Reason))
		}

		outcome, err := s.supervisor.Start(roomID, r.GameID)
		if err != nil {
			s.rooms.MarkSupervisionFailed(roomID)
			logging.Errorf("lobbyserver: start_game supervisor spawn failed for room %s: %v", roomID, err)
			return failure(w, protocol.TypeStartGame, "failed to start game server")
		}

		payload := map[string]any{
			"success":     true,
			"room_id":     roomID,
			"game_id":     r.GameID,
			"server_host": outcome.ServerHost,
			"server_port": outcome.ServerPort,
		}
		for _, player := range r.Players {
			if conn, ok := s.connFor(player); ok {
				if err := reply(conn, protocol.TypeStartGame, payload); err != nil {
					logging.Warnf("lobbyserver: broadcast START to %s failed: %v", player, err)
				}
			}
		}
		return nil
	}
}
