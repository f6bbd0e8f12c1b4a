// Package catalog is the authoritative store for accounts and games (spec
// §4.2). Catalog is an injected persistence port (spec §9 Design Notes): the
// rest of the system depends only on the interface below, never on a
// concrete backend, so the JSON-file default and the SQL-backed alternative
// in this package are interchangeable.
package catalog

import (
	"errors"
	"time"
)

// Role distinguishes the two disjoint account namespaces (spec §3: "separate
// developer account table").
type Role string

const (
	RolePlayer    Role = "user"
	RoleDeveloper Role = "developer"
)

// Reason codes returned alongside {ok:false} replies (spec §4.2, §7).
const (
	ReasonUnknownUser    = "unknown-user"
	ReasonBadPassword    = "bad-password"
	ReasonAlreadyOnline  = "already-online"
	ReasonEmpty          = "empty"
	ReasonExists         = "exists"
	ReasonUnknown        = "unknown"
	ReasonMFARequired    = "mfa-required"
	ReasonStaleVersion   = "stale-version"
	ReasonNotAuthor      = "not-author"
	ReasonGameNotFound   = "game-not-found"
	ReasonInvalidRating  = "invalid-rating"
)

// Account is a player or developer identity (spec §3).
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	IsOnline     bool      `json:"is_online"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Optional TOTP second factor (SPEC_FULL §2 supplemental feature).
	TOTPSecret  string `json:"totp_secret,omitempty"`
	TOTPEnabled bool   `json:"totp_enabled"`
}

// Review is a single player review of a game (spec §3).
type Review struct {
	Reviewer string `json:"reviewer"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// Game is a versioned, catalog-listed package (spec §3).
type Game struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Version        string    `json:"version"`
	Author         string    `json:"author"`
	MaxPlayers     int       `json:"max_players"`
	DownloadCount  int       `json:"download_count"`
	Reviews        []Review  `json:"reviews"`
	CreatedAt      time.Time `json:"created_at"`
}

// AverageRating is the mean of all review ratings, or 0 with none (spec
// §4.2 list_games).
func (g Game) AverageRating() float64 {
	if len(g.Reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range g.Reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(g.Reviews))
}

// Result is the uniform {ok, reason} shape returned by mutating Catalog
// operations (spec §4.2).
type Result struct {
	OK     bool
	Reason string
}

var (
	ErrGameNotFound    = errors.New("catalog: game not found")
	ErrAccountNotFound = errors.New("catalog: account not found")
)

// GameUpdate carries the optional fields an UPDATE_GAME request may change.
// Nil pointers leave the existing value untouched.
type GameUpdate struct {
	Name        *string
	Description *string
	MaxPlayers  *int
}

// Catalog is the authoritative account/game store (spec §4.2 contract).
// Implementations must serialize every mutation under a single writer lock
// (spec §5) so read-modify-write sequences are atomic.
type Catalog interface {
	// Login transitions an account false->true on is_online, stamping
	// last_login. ok=false carries a Reason of unknown-user, bad-password,
	// already-online or mfa-required.
	Login(username, password string, role Role, totpCode string) Result

	// Register creates a new account. ok=false carries Reason empty or
	// exists.
	Register(username, password string, role Role) Result

	// Logout is idempotent: logging out an already-offline account still
	// returns ok=true.
	Logout(username string, role Role) Result

	// ListOnlineUsers returns every username currently online, across both
	// roles.
	ListOnlineUsers() []string

	// ListGames returns every catalog game with its reviews loaded, so
	// AverageRating can be computed on each.
	ListGames() ([]Game, error)

	// GetGame returns a single game by id.
	GetGame(gameID string) (Game, error)

	// GetMaxPlayers is a query helper used by room creation (spec §4.2).
	GetMaxPlayers(gameID string) (int, error)

	// GetGameName is a query helper used by room listing (spec §4.2).
	GetGameName(gameID string) (string, error)

	// AddGame allocates a fresh monotonic game id and inserts the game
	// atomically with that allocation (spec §4.2).
	AddGame(author, name, description, version string, maxPlayers int) (Game, error)

	// UpdateGame applies update to an existing game after the caller has
	// verified newVersion is strictly newer than the current version (spec
	// §3, §4.2). Implementations re-verify ownership and version-newness.
	UpdateGame(gameID, requester, newVersion string, update GameUpdate) Result

	// DeleteGame removes a game; ok=true only when requester == author.
	DeleteGame(gameID, requester string) Result

	// IncrementDownloadCount bumps a game's download counter by one.
	IncrementDownloadCount(gameID string) error

	// AddReview appends a review; rating must be in [1,5].
	AddReview(gameID, reviewer string, rating int, comment string) Result

	// ListGamesByAuthor is used by the developer endpoint's "list own
	// games".
	ListGamesByAuthor(author string) ([]Game, error)

	// SetTOTPSecret stores a pending (unconfirmed) TOTP secret for an
	// account, ahead of CONFIRM_MFA.
	SetTOTPSecret(username string, role Role, secret string) error

	// ConfirmTOTP flips TOTPEnabled once the client has proven possession
	// of the secret by submitting a valid code.
	ConfirmTOTP(username string, role Role) error

	// AccountTOTP reports whether an account has MFA enabled and, if so,
	// its secret (used to validate LOGIN's mfa_code field).
	AccountTOTP(username string, role Role) (enabled bool, secret string, err error)

	// Close releases any resources (file handles, DB connections) held by
	// the backend.
	Close() error
}
