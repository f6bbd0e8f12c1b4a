package devserver

import (
	"io"
	"os"
	"path/filepath"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/protocol"
)

func (s *Server) buildDispatcher(c *connection) *protocol.Dispatcher {
	d := protocol.NewDispatcher()

	d.Register(protocol.TypeDeveloperLogin, s.handleLogin(c))
	d.Register(protocol.TypeDeveloperRegister, s.handleRegister())
	d.Register(protocol.TypeDeveloperLogout, s.handleLogout(c))
	d.Register(protocol.TypeDeveloperListGames, s.handleListOwnGames())

	d.Register(protocol.TypeUploadGameInit, s.handleUploadInit())
	d.Register(protocol.TypeUploadGameChunk, s.handleUploadChunk())
	d.Register(protocol.TypeUploadGameFinish, s.handleUploadFinish())

	d.Register(protocol.TypeUpdateGameInit, s.handleUpdateInit())
	d.Register(protocol.TypeUpdateGameChunk, s.handleUploadChunk())
	d.Register(protocol.TypeUpdateGameFinish, s.handleUpdateFinish())

	d.Register(protocol.TypeDeleteGame, s.handleDeleteGame())

	return d
}

func reply(w io.Writer, kind string, fields map[string]any) error {
	return protocol.WriteFrame(w, kind, fields)
}

func failure(w io.Writer, kind, message string) error {
	return reply(w, kind, map[string]any{"success": false, "message": message})
}

func success(w io.Writer, kind string, extra map[string]any) error {
	fields := map[string]any{"success": true}
	for k, v := range extra {
		fields[k] = v
	}
	return reply(w, kind, fields)
}

func reasonMessage(reason string) string {
	switch reason {
	case catalog.ReasonExists:
		return "Username already exists"
	case catalog.ReasonBadPassword:
		return "Incorrect password"
	case catalog.ReasonAlreadyOnline:
		return "Account already logged in from another session"
	case catalog.ReasonUnknownUser:
		return "Unknown user"
	case catalog.ReasonEmpty:
		return "Username and password are required"
	case catalog.ReasonMFARequired:
		return "MFA code required or invalid"
	case catalog.ReasonNotAuthor:
		return "Only the game's author can perform this action"
	case catalog.ReasonStaleVersion:
		return "New version must be strictly newer than the current version"
	case catalog.ReasonGameNotFound:
		return "Game not found"
	default:
		return reason
	}
}

func (s *Server) handleLogin(c *connection) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username, password, mfaCode string
		env.Get("username", &username)
		env.Get("password", &password)
		env.Get("mfa_code", &mfaCode)

		result := s.catalog.Login(username, password, catalog.RoleDeveloper, mfaCode)
		if !result.OK {
			return failure(w, protocol.TypeDeveloperLogin, reasonMessage(result.Reason))
		}
		c.session.Bind(username, catalog.RoleDeveloper)
		return success(w, protocol.TypeDeveloperLogin, nil)
	}
}

func (s *Server) handleRegister() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username, password string
		env.Get("username", &username)
		env.Get("password", &password)

		result := s.catalog.Register(username, password, catalog.RoleDeveloper)
		if !result.OK {
			return failure(w, protocol.TypeDeveloperRegister, reasonMessage(result.Reason))
		}
		return success(w, protocol.TypeDeveloperRegister, nil)
	}
}

func (s *Server) handleLogout(c *connection) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		username, role, loggedIn := c.session.User()
		if !loggedIn {
			return failure(w, protocol.TypeDeveloperLogout, "not logged in")
		}
		s.catalog.Logout(username, role)
		c.session.Unbind()
		return success(w, protocol.TypeDeveloperLogout, nil)
	}
}

func (s *Server) handleListOwnGames() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var author string
		env.Get("username", &author)

		games, err := s.catalog.ListGamesByAuthor(author)
		if err != nil {
			logging.Errorf("devserver: list own games for %s: %v", author, err)
			return failure(w, protocol.TypeDeveloperListGames, "failed to list games")
		}

		out := make([]map[string]any, 0, len(games))
		for _, g := range games {
			out = append(out, map[string]any{
				"game_id":        g.ID,
				"game_name":      g.Name,
				"version":        g.Version,
				"max_players":    g.MaxPlayers,
				"download_count": g.DownloadCount,
				"average_rating": g.AverageRating(),
			})
		}
		return reply(w, protocol.TypeDeveloperListGames, map[string]any{"games": out})
	}
}

// handleDeleteGame removes the Catalog entry then the on-disk package
// tree. If cleanup fails after the Catalog removal already succeeded,
// the reply is still ok, carrying a cleanup-failed message rather than
// reverting the Catalog (spec §7: "Partial success is allowed ...
// delete-game where Catalog removal succeeds but file cleanup fails").
func (s *Server) handleDeleteGame() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var gameID, requester string
		env.Get("game_id", &gameID)
		env.Get("requester", &requester)

		result := s.catalog.DeleteGame(gameID, requester)
		if !result.OK {
			return failure(w, protocol.TypeDeleteGame, reasonMessage(result.Reason))
		}

		if err := os.RemoveAll(filepath.Join(s.storageRoot, gameID)); err != nil {
			logging.Errorf("devserver: cleanup package tree for game %s: %v", gameID, err)
			return success(w, protocol.TypeDeleteGame, map[string]any{"message": "cleanup-failed"})
		}
		return success(w, protocol.TypeDeleteGame, nil)
	}
}
