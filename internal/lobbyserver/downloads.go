package lobbyserver

import (
	"encoding/base64"
	"io"

	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/protocol"
)

// handleDownloadInit resolves the latest version, stages a transient zip,
// and replies with the transfer id and declared size (spec §4.3
// "Download"). c is unused directly but kept for symmetry with the other
// per-connection handlers and future per-session download bookkeeping.
func (s *Server) handleDownloadInit(c *connection) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var gameID, username string
		env.Get("game_id", &gameID)
		env.Get("username", &username)

		transferID, declaredSize, version, err := s.transfers.InitDownload(username, gameID)
		if err != nil {
			logging.Errorf("lobbyserver: download_game_init for %s: %v", gameID, err)
			return failure(w, protocol.TypeDownloadGameInit, "game not found")
		}

		return reply(w, protocol.TypeDownloadGameInit, map[string]any{
			"success":      true,
			"transfer_id":  transferID,
			"file_size":    declaredSize,
			"game_version": version,
		})
	}
}

// handleDownloadChunk streams one CHUNK reply of up to the configured
// chunk size (spec §4.3: "streams CHUNK packets ... base64-encoded").
func (s *Server) handleDownloadChunk() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var transferID string
		env.Get("transfer_id", &transferID)

		data, _, err := s.transfers.NextChunk(transferID)
		if err != nil {
			return failure(w, protocol.TypeDownloadGameChunk, "invalid transfer id")
		}
		return reply(w, protocol.TypeDownloadGameChunk, map[string]any{
			"transfer_id": transferID,
			"chunk_data":  base64.StdEncoding.EncodeToString(data),
		})
	}
}

// handleDownloadFinish replies with the zip's md5 so the client can
// verify it against its own reassembled bytes (spec §4.3: "followed by a
// FINISH packet carrying the md5 of the zip").
func (s *Server) handleDownloadFinish() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var transferID string
		env.Get("transfer_id", &transferID)

		checksum, err := s.transfers.FinishDownload(transferID)
		if err != nil {
			return failure(w, protocol.TypeDownloadGameFinish, "invalid transfer id")
		}
		return reply(w, protocol.TypeDownloadGameFinish, map[string]any{
			"success":     true,
			"transfer_id": transferID,
			"md5":         checksum,
		})
	}
}
