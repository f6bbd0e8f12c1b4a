package devserver

import (
	"io"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/protocol"
)

// handleUploadInit opens a fresh temp zip for a new game upload (spec
// §4.3 "Upload (new game)").
func (s *Server) handleUploadInit() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username string
		var declaredSize int64
		env.Get("username", &username)
		env.Get("declared_size", &declaredSize)

		transferID, err := s.transfers.InitUpload(username, declaredSize)
		if err != nil {
			logging.Errorf("devserver: upload_game_init for %s: %v", username, err)
			return failure(w, protocol.TypeUploadGameInit, "failed to start upload")
		}
		return success(w, protocol.TypeUploadGameInit, map[string]any{"transfer_id": transferID})
	}
}

// handleUpdateInit is InitUpload's counterpart for an existing game. The
// server re-verifies ownership and version-newness against the Catalog
// before accepting CHUNK/FINISH (spec §4.3: "the server re-verifies
// against the Catalog before accepting CHUNK/FINISH").
func (s *Server) handleUpdateInit() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username, gameID, newVersion string
		var declaredSize int64
		env.Get("username", &username)
		env.Get("game_id", &gameID)
		env.Get("new_version", &newVersion)
		env.Get("declared_size", &declaredSize)

		game, err := s.catalog.GetGame(gameID)
		if err != nil {
			return failure(w, protocol.TypeUpdateGameInit, "game not found")
		}
		if game.Author != username {
			return failure(w, protocol.TypeUpdateGameInit, "only the game's author can update it")
		}
		if !catalog.VersionNewer(game.Version, newVersion) {
			return failure(w, protocol.TypeUpdateGameInit, "new version must be strictly newer")
		}

		transferID, err := s.transfers.InitUpdate(username, gameID, newVersion, declaredSize)
		if err != nil {
			logging.Errorf("devserver: update_game_init for %s: %v", gameID, err)
			return failure(w, protocol.TypeUpdateGameInit, "failed to start update")
		}
		return success(w, protocol.TypeUpdateGameInit, map[string]any{"transfer_id": transferID})
	}
}

// handleUploadChunk serves both UPLOAD_GAME_CHUNK and UPDATE_GAME_CHUNK,
// which share identical semantics: decode and append, no reply on
// success, error reply on invalid id (spec §4.3).
func (s *Server) handleUploadChunk() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var transferID, chunkData string
		env.Get("transfer_id", &transferID)
		env.Get("chunk_data", &chunkData)

		if err := s.transfers.AppendChunk(transferID, chunkData); err != nil {
			return failure(w, protocol.TypeUploadGameChunk, "invalid transfer id")
		}
		return nil
	}
}

// handleUploadFinish verifies the checksum, unpacks, registers the game,
// and promotes it into storage (spec §4.3).
func (s *Server) handleUploadFinish() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var transferID, md5sum string
		env.Get("transfer_id", &transferID)
		env.Get("md5", &md5sum)

		gameID, err := s.transfers.FinishUpload(transferID, md5sum)
		if err != nil {
			logging.Errorf("devserver: upload_game_finish %s: %v", transferID, err)
			return failure(w, protocol.TypeUploadGameFinish, err.Error())
		}
		return success(w, protocol.TypeUploadGameFinish, map[string]any{"game_id": gameID})
	}
}

// handleUpdateFinish is FinishUpload's counterpart for an existing game.
func (s *Server) handleUpdateFinish() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var transferID, md5sum string
		env.Get("transfer_id", &transferID)
		env.Get("md5", &md5sum)

		if err := s.transfers.FinishUpdate(transferID, md5sum); err != nil {
			logging.Errorf("devserver: update_game_finish %s: %v", transferID, err)
			return failure(w, protocol.TypeUpdateGameFinish, err.Error())
		}
		return success(w, protocol.TypeUpdateGameFinish, nil)
	}
}
