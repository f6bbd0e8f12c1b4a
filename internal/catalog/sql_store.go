package catalog

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"lobbyplatform/internal/security"
)

// sqlStore is the alternate Catalog backend (SPEC_FULL §2): the same
// contract as jsonStore, backed by database/sql instead of flat files.
// Grounded on the teacher's internal/database/database.go connection setup
// and schema-bootstrap style (PRAGMA tuning, "does this table already exist"
// check before creating the schema).
type sqlStore struct {
	db     *sql.DB
	driver string // "sqlite3" or "postgres"
}

// NewSQLCatalog opens (and, if needed, initializes) a SQL-backed catalog.
// driver is "sqlite" or "postgres" as named by config.DBType; dsn is the
// connection string (config.SQLConnectionString()).
func NewSQLCatalog(driver, dsn string, maxConns, maxIdle int) (Catalog, error) {
	sqlDriver := driver
	if sqlDriver == "sqlite" {
		sqlDriver = "sqlite3"
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", sqlDriver, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("catalog: ping %s: %w", sqlDriver, err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdle)

	if sqlDriver == "sqlite3" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			return nil, fmt.Errorf("catalog: set WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("catalog: enable foreign keys: %w", err)
		}
	}

	s := &sqlStore{db: db, driver: sqlDriver}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// ph renders the i-th (1-based) placeholder for the active driver.
func (s *sqlStore) ph(i int) string {
	if s.driver == "postgres" {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

func (s *sqlStore) initSchema() error {
	accountsDDL := `
CREATE TABLE IF NOT EXISTS accounts (
	username TEXT NOT NULL,
	role TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	is_online BOOLEAN NOT NULL DEFAULT false,
	last_login TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	totp_secret TEXT NOT NULL DEFAULT '',
	totp_enabled BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (username, role)
);`

	gamesDDL := `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	version TEXT NOT NULL,
	author TEXT NOT NULL,
	max_players INTEGER NOT NULL,
	download_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);`

	reviewsDDL := `
CREATE TABLE IF NOT EXISTS reviews (
	game_id TEXT NOT NULL,
	reviewer TEXT NOT NULL,
	rating INTEGER NOT NULL,
	comment TEXT NOT NULL,
	FOREIGN KEY (game_id) REFERENCES games(id)
);`

	for _, stmt := range []string{accountsDDL, gamesDDL, reviewsDDL} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("catalog: init schema: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) Login(username, password string, role Role, totpCode string) Result {
	tx, err := s.db.Begin()
	if err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	defer tx.Rollback()

	var hash string
	var isOnline bool
	var totpEnabled bool
	var totpSecret string
	query := fmt.Sprintf("SELECT password_hash, is_online, totp_enabled, totp_secret FROM accounts WHERE username=%s AND role=%s",
		s.ph(1), s.ph(2))
	if err := tx.QueryRow(query, username, string(role)).Scan(&hash, &isOnline, &totpEnabled, &totpSecret); err != nil {
		if err == sql.ErrNoRows {
			return Result{OK: false, Reason: ReasonUnknownUser}
		}
		return Result{OK: false, Reason: ReasonUnknown}
	}

	if !security.VerifyPassword(hash, password) {
		return Result{OK: false, Reason: ReasonBadPassword}
	}
	if isOnline {
		return Result{OK: false, Reason: ReasonAlreadyOnline}
	}
	if totpEnabled {
		valid, _ := verifyTOTPCode(totpSecret, totpCode)
		if !valid {
			return Result{OK: false, Reason: ReasonMFARequired}
		}
	}

	update := fmt.Sprintf("UPDATE accounts SET is_online=true, last_login=%s WHERE username=%s AND role=%s",
		s.ph(1), s.ph(2), s.ph(3))
	if _, err := tx.Exec(update, time.Now(), username, string(role)); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	if err := tx.Commit(); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	return Result{OK: true}
}

func (s *sqlStore) Register(username, password string, role Role) Result {
	if username == "" || password == "" {
		return Result{OK: false, Reason: ReasonEmpty}
	}

	var exists int
	q := fmt.Sprintf("SELECT COUNT(*) FROM accounts WHERE username=%s AND role=%s", s.ph(1), s.ph(2))
	if err := s.db.QueryRow(q, username, string(role)).Scan(&exists); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	if exists > 0 {
		return Result{OK: false, Reason: ReasonExists}
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}

	insert := fmt.Sprintf(
		"INSERT INTO accounts (username, role, password_hash, is_online, created_at) VALUES (%s, %s, %s, false, %s)",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := s.db.Exec(insert, username, string(role), hash, time.Now()); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	return Result{OK: true}
}

func (s *sqlStore) Logout(username string, role Role) Result {
	var isOnline bool
	q := fmt.Sprintf("SELECT is_online FROM accounts WHERE username=%s AND role=%s", s.ph(1), s.ph(2))
	if err := s.db.QueryRow(q, username, string(role)).Scan(&isOnline); err != nil {
		if err == sql.ErrNoRows {
			return Result{OK: false, Reason: ReasonUnknown}
		}
		return Result{OK: false, Reason: ReasonUnknown}
	}
	if !isOnline {
		return Result{OK: true}
	}

	update := fmt.Sprintf("UPDATE accounts SET is_online=false WHERE username=%s AND role=%s", s.ph(1), s.ph(2))
	if _, err := s.db.Exec(update, username, string(role)); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	return Result{OK: true}
}

func (s *sqlStore) ListOnlineUsers() []string {
	rows, err := s.db.Query("SELECT username FROM accounts WHERE is_online = true ORDER BY username")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var online []string
	for rows.Next() {
		var u string
		if rows.Scan(&u) == nil {
			online = append(online, u)
		}
	}
	return online
}

func (s *sqlStore) scanGame(row interface {
	Scan(dest ...any) error
}) (Game, error) {
	var g Game
	var createdAt time.Time
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Version, &g.Author, &g.MaxPlayers, &g.DownloadCount, &createdAt); err != nil {
		return Game{}, err
	}
	g.CreatedAt = createdAt
	return g, nil
}

func (s *sqlStore) loadReviews(gameID string) ([]Review, error) {
	q := fmt.Sprintf("SELECT reviewer, rating, comment FROM reviews WHERE game_id=%s", s.ph(1))
	rows, err := s.db.Query(q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.Reviewer, &r.Rating, &r.Comment); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

func (s *sqlStore) ListGames() ([]Game, error) {
	rows, err := s.db.Query("SELECT id, name, description, version, author, max_players, download_count, created_at FROM games")
	if err != nil {
		return nil, fmt.Errorf("catalog: list games: %w", err)
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		g, err := s.scanGame(rows)
		if err != nil {
			return nil, err
		}
		reviews, err := s.loadReviews(g.ID)
		if err != nil {
			return nil, err
		}
		g.Reviews = reviews
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return gameIDInt(games[i].ID) < gameIDInt(games[j].ID) })
	return games, nil
}

func (s *sqlStore) GetGame(gameID string) (Game, error) {
	q := fmt.Sprintf("SELECT id, name, description, version, author, max_players, download_count, created_at FROM games WHERE id=%s", s.ph(1))
	row := s.db.QueryRow(q, gameID)
	g, err := s.scanGame(row)
	if err == sql.ErrNoRows {
		return Game{}, ErrGameNotFound
	}
	if err != nil {
		return Game{}, err
	}
	reviews, err := s.loadReviews(gameID)
	if err != nil {
		return Game{}, err
	}
	g.Reviews = reviews
	return g, nil
}

func (s *sqlStore) GetMaxPlayers(gameID string) (int, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return 0, err
	}
	return g.MaxPlayers, nil
}

func (s *sqlStore) GetGameName(gameID string) (string, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

func (s *sqlStore) AddGame(author, name, description, version string, maxPlayers int) (Game, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Game{}, err
	}
	defer tx.Rollback()

	var maxID sql.NullString
	if err := tx.QueryRow("SELECT MAX(CAST(id AS INTEGER)) FROM games").Scan(&maxID); err != nil && err != sql.ErrNoRows {
		return Game{}, err
	}
	next := 1
	if maxID.Valid {
		if n, err := strconv.Atoi(maxID.String); err == nil {
			next = n + 1
		}
	}
	id := strconv.Itoa(next)

	insert := fmt.Sprintf(
		"INSERT INTO games (id, name, description, version, author, max_players, download_count, created_at) VALUES (%s,%s,%s,%s,%s,%s,0,%s)",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7))
	now := time.Now()
	if _, err := tx.Exec(insert, id, name, description, version, author, maxPlayers, now); err != nil {
		return Game{}, err
	}
	if err := tx.Commit(); err != nil {
		return Game{}, err
	}

	return Game{
		ID: id, Name: name, Description: description, Version: version,
		Author: author, MaxPlayers: maxPlayers, CreatedAt: now,
	}, nil
}

func (s *sqlStore) UpdateGame(gameID, requester, newVersion string, update GameUpdate) Result {
	g, err := s.GetGame(gameID)
	if err != nil {
		return Result{OK: false, Reason: ReasonGameNotFound}
	}
	if g.Author != requester {
		return Result{OK: false, Reason: ReasonNotAuthor}
	}
	if !VersionNewer(g.Version, newVersion) {
		return Result{OK: false, Reason: ReasonStaleVersion}
	}

	name, desc, max := g.Name, g.Description, g.MaxPlayers
	if update.Name != nil {
		name = *update.Name
	}
	if update.Description != nil {
		desc = *update.Description
	}
	if update.MaxPlayers != nil {
		max = *update.MaxPlayers
	}

	q := fmt.Sprintf("UPDATE games SET version=%s, name=%s, description=%s, max_players=%s WHERE id=%s",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	if _, err := s.db.Exec(q, newVersion, name, desc, max, gameID); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	return Result{OK: true}
}

func (s *sqlStore) DeleteGame(gameID, requester string) Result {
	g, err := s.GetGame(gameID)
	if err != nil {
		return Result{OK: false, Reason: ReasonGameNotFound}
	}
	if g.Author != requester {
		return Result{OK: false, Reason: ReasonNotAuthor}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM reviews WHERE game_id=%s", s.ph(1)), gameID); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM games WHERE id=%s", s.ph(1)), gameID); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	if err := tx.Commit(); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	return Result{OK: true}
}

func (s *sqlStore) IncrementDownloadCount(gameID string) error {
	q := fmt.Sprintf("UPDATE games SET download_count = download_count + 1 WHERE id=%s", s.ph(1))
	res, err := s.db.Exec(q, gameID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (s *sqlStore) AddReview(gameID, reviewer string, rating int, comment string) Result {
	if rating < 1 || rating > 5 {
		return Result{OK: false, Reason: ReasonInvalidRating}
	}
	if _, err := s.GetGame(gameID); err != nil {
		return Result{OK: false, Reason: ReasonGameNotFound}
	}

	q := fmt.Sprintf("INSERT INTO reviews (game_id, reviewer, rating, comment) VALUES (%s,%s,%s,%s)",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := s.db.Exec(q, gameID, reviewer, rating, comment); err != nil {
		return Result{OK: false, Reason: ReasonUnknown}
	}
	return Result{OK: true}
}

func (s *sqlStore) ListGamesByAuthor(author string) ([]Game, error) {
	games, err := s.ListGames()
	if err != nil {
		return nil, err
	}
	var filtered []Game
	for _, g := range games {
		if g.Author == author {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

func (s *sqlStore) SetTOTPSecret(username string, role Role, secret string) error {
	q := fmt.Sprintf("UPDATE accounts SET totp_secret=%s, totp_enabled=false WHERE username=%s AND role=%s",
		s.ph(1), s.ph(2), s.ph(3))
	res, err := s.db.Exec(q, secret, username, string(role))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *sqlStore) ConfirmTOTP(username string, role Role) error {
	q := fmt.Sprintf("UPDATE accounts SET totp_enabled=true WHERE username=%s AND role=%s", s.ph(1), s.ph(2))
	res, err := s.db.Exec(q, username, string(role))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *sqlStore) AccountTOTP(username string, role Role) (bool, string, error) {
	var enabled bool
	var secret string
	q := fmt.Sprintf("SELECT totp_enabled, totp_secret FROM accounts WHERE username=%s AND role=%s", s.ph(1), s.ph(2))
	if err := s.db.QueryRow(q, username, string(role)).Scan(&enabled, &secret); err != nil {
		if err == sql.ErrNoRows {
			return false, "", ErrAccountNotFound
		}
		return false, "", err
	}
	return enabled, secret, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
