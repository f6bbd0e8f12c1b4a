package lobbyserver

import (
	"context"
	"io"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/mfa"
	"lobbyplatform/internal/protocol"
)

// buildDispatcher constructs a fresh dispatch table scoped to one
// connection: handlers close over c so they can read/mutate its session
// without a parameter threaded through protocol.HandlerFunc's fixed
// (io.Writer, *Envelope) signature. Grounded on the teacher's
// CommandRegistry (internal/game/commands.go), generalized from MUD verbs
// to wire message kinds.
func (s *Server) buildDispatcher(c *connection) *protocol.Dispatcher {
	d := protocol.NewDispatcher()

	d.Register(protocol.TypeLogin, s.handleLogin(c))
	d.Register(protocol.TypeRegister, s.handleRegister(c, catalog.RolePlayer))
	d.Register(protocol.TypeLogout, s.handleLogout(c))
	d.Register(protocol.TypeListOnlineUsers, s.handleListOnlineUsers())
	d.Register(protocol.TypeListGames, s.handleListGames())
	d.Register(protocol.TypeGetGameDetail, s.handleGetGameDetail())
	d.Register(protocol.TypeGameReview, s.handleGameReview())

	d.Register(protocol.TypeListRooms, s.handleListRooms())
	d.Register(protocol.TypeCreateRoom, s.handleCreateRoom())
	d.Register(protocol.TypeJoinRoom, s.handleJoinRoom())
	d.Register(protocol.TypeLeaveRoom, s.handleLeaveRoom())
	d.Register(protocol.TypeStartGame, s.handleStartGame())

	d.Register(protocol.TypeDownloadGameInit, s.handleDownloadInit(c))
	d.Register(protocol.TypeDownloadGameChunk, s.handleDownloadChunk())
	d.Register(protocol.TypeDownloadGameFinish, s.handleDownloadFinish())

	d.Register(protocol.TypeEnableMFA, s.handleEnableMFA(catalog.RolePlayer))
	d.Register(protocol.TypeConfirmMFA, s.handleConfirmMFA(catalog.RolePlayer))

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

// reasonMessage maps Catalog reason codes to the human-readable strings
// spec §8's concrete scenarios specify verbatim. Room reason codes are
// mapped by roomReasonMessage.
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
	default:
		return reason
	}
}

func (s *Server) handleLogin(c *connection) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username, password, mfaCode string
		if err := env.Get("username", &username); err != nil {
			return failure(w, protocol.TypeLogin, "username is required")
		}
		env.Get("password", &password)
		env.Get("mfa_code", &mfaCode)

		result := s.catalog.Login(username, password, catalog.RolePlayer, mfaCode)
		if !result.OK {
			return failure(w, protocol.TypeLogin, reasonMessage(result.Reason))
		}

		c.session.Bind(username, catalog.RolePlayer)
		s.registerUser(username, c)
		s.presence.MarkOnline(context.Background(), username)
		return success(w, protocol.TypeLogin, nil)
	}
}

func (s *Server) handleRegister(c *connection, role catalog.Role) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username, password string
		env.Get("username", &username)
		env.Get("password", &password)

		result := s.catalog.Register(username, password, role)
		if !result.OK {
			return failure(w, protocol.TypeRegister, reasonMessage(result.Reason))
		}
		return success(w, protocol.TypeRegister, nil)
	}
}

func (s *Server) handleLogout(c *connection) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		username, role, loggedIn := c.session.User()
		if !loggedIn {
			return failure(w, protocol.TypeLogout, "not logged in")
		}
		s.catalog.Logout(username, role)
		s.presence.MarkOffline(context.Background(), username)
		s.unregisterUser(username)
		c.session.Unbind()
		return success(w, protocol.TypeLogout, nil)
	}
}

func (s *Server) handleListOnlineUsers() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		if s.presence != nil {
			users, err := s.presence.ListOnline(context.Background())
			if err == nil {
				return reply(w, protocol.TypeListOnlineUsers, map[string]any{"online_users": users})
			}
			logging.Warnf("lobbyserver: presence list online fell back to catalog: %v", err)
		}
		return reply(w, protocol.TypeListOnlineUsers, map[string]any{
			"online_users": s.catalog.ListOnlineUsers(),
		})
	}
}

func (s *Server) handleListGames() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		games, err := s.catalog.ListGames()
		if err != nil {
			logging.Errorf("lobbyserver: list_games: %v", err)
			return failure(w, protocol.TypeListGames, "failed to list games")
		}
		return reply(w, protocol.TypeListGames, map[string]any{"games": gameSummaries(games)})
	}
}

func gameSummaries(games []catalog.Game) []map[string]any {
	out := make([]map[string]any, 0, len(games))
	for _, g := range games {
		out = append(out, map[string]any{
			"game_id":         g.ID,
			"game_name":       g.Name,
			"version":         g.Version,
			"author":          g.Author,
			"max_players":     g.MaxPlayers,
			"download_count":  g.DownloadCount,
			"average_rating":  g.AverageRating(),
		})
	}
	return out
}

func (s *Server) handleGetGameDetail() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var gameID string
		env.Get("game_id", &gameID)

		game, err := s.catalog.GetGame(gameID)
		if err != nil {
			return failure(w, protocol.TypeGetGameDetail, "game not found")
		}

		comments := make([]map[string]any, 0, len(game.Reviews))
		for _, r := range game.Reviews {
			comments = append(comments, map[string]any{
				"reviewer": r.Reviewer,
				"rating":   r.Rating,
				"comment":  r.Comment,
			})
		}

		return reply(w, protocol.TypeGetGameDetail, map[string]any{
			"game_info": map[string]any{
				"game_id":        game.ID,
				"game_name":      game.Name,
				"description":    game.Description,
				"version":        game.Version,
				"author":         game.Author,
				"max_players":    game.MaxPlayers,
				"download_count": game.DownloadCount,
				"average_rating": game.AverageRating(),
				"comments":       comments,
			},
		})
	}
}

func (s *Server) handleGameReview() protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var gameID, username, comment string
		var score int
		env.Get("game_id", &gameID)
		env.Get("username", &username)
		env.Get("comment", &comment)
		env.Get("score", &score)

		result := s.catalog.AddReview(gameID, username, score, comment)
		if !result.OK {
			return failure(w, protocol.TypeGameReview, reasonMessage(result.Reason))
		}
		return success(w, protocol.TypeGameReview, nil)
	}
}

func (s *Server) handleEnableMFA(role catalog.Role) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username string
		env.Get("username", &username)

		enrollment, err := mfa.Begin(s.totpIssuer, username)
		if err != nil {
			logging.Errorf("lobbyserver: mfa enrollment for %s: %v", username, err)
			return failure(w, protocol.TypeEnableMFA, "failed to start MFA enrollment")
		}
		if err := s.catalog.SetTOTPSecret(username, role, enrollment.Secret); err != nil {
			return failure(w, protocol.TypeEnableMFA, "unknown user")
		}

		return reply(w, protocol.TypeEnableMFA, map[string]any{
			"success":     true,
			"otpauth_url": enrollment.OTPAuthURL,
			"qr_png":      enrollment.QRPNGBase64,
		})
	}
}

func (s *Server) handleConfirmMFA(role catalog.Role) protocol.HandlerFunc {
	return func(w io.Writer, env *protocol.Envelope) error {
		var username, code string
		env.Get("username", &username)
		env.Get("code", &code)

		_, secret, err := s.catalog.AccountTOTP(username, role)
		if err != nil {
			return failure(w, protocol.TypeConfirmMFA, "unknown user")
		}
		if !mfa.Confirm(secret, code) {
			return failure(w, protocol.TypeConfirmMFA, "invalid MFA code")
		}
		if err := s.catalog.ConfirmTOTP(username, role); err != nil {
			return failure(w, protocol.TypeConfirmMFA, "failed to confirm MFA")
		}
		return success(w, protocol.TypeConfirmMFA, nil)
	}
}
