// Package transfer implements the chunked upload/update/download protocol
// (spec §4.3): a staging area for in-progress transfers, integrity
// verification via md5, and promotion into the durable package tree under
// storage/<game_id>/<version>/.
package transfer

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/logging"
)

// Kind distinguishes the three transfer flows (spec §3).
type Kind string

const (
	KindUpload   Kind = "upload"
	KindUpdate   Kind = "update"
	KindDownload Kind = "download"
)

// Transfer is a single in-flight upload/update/download (spec §3). Its
// fields are mutated only by the owning connection's goroutine, so per-
// transfer state is single-owner as spec §5 requires; Manager's lock
// covers only the registry map itself.
type Transfer struct {
	ID           string
	Owner        string
	Kind         Kind
	TempPath     string
	DeclaredSize int64
	Received     int64
	Sent         int64

	GameID     string // update, download
	NewVersion string // update

	file *os.File
}

// Manager owns the staging directory and the registry of active
// transfers, keyed by opaque id (spec §4.3). Grounded on the teacher's
// zone/process registries: a map guarded by a lock for insert/remove only.
type Manager struct {
	mu sync.Mutex

	transfers map[string]*Transfer

	stagingDir  string
	storageRoot string
	chunkSize   int
	catalog     catalog.Catalog
}

// NewManager creates a transfer manager rooted at stagingDir (scratch
// space) and storageRoot (the durable package tree).
func NewManager(stagingDir, storageRoot string, chunkSize int, cat catalog.Catalog) (*Manager, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("transfer: create staging dir: %w", err)
	}
	if err := os.MkdirAll(storageRoot, 0755); err != nil {
		return nil, fmt.Errorf("transfer: create storage root: %w", err)
	}
	return &Manager{
		transfers:   make(map[string]*Transfer),
		stagingDir:  stagingDir,
		storageRoot: storageRoot,
		chunkSize:   chunkSize,
		catalog:     cat,
	}, nil
}

func (m *Manager) register(t *Transfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[t.ID] = t
}

func (m *Manager) get(id string) (*Transfer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	return t, ok
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transfers, id)
}

// --- Upload (spec §4.3 "Upload (new game)") ---

// InitUpload allocates a transfer id and opens a fresh temp zip for the
// caller to append chunks to.
func (m *Manager) InitUpload(username string, declaredSize int64) (string, error) {
	return m.initWrite(username, KindUpload, declaredSize, "", "")
}

// InitUpdate is InitUpload's counterpart for an existing game; the caller
// (the developer endpoint) has already verified ownership and version-
// newness against the Catalog before calling this.
func (m *Manager) InitUpdate(username, gameID, newVersion string, declaredSize int64) (string, error) {
	return m.initWrite(username, KindUpdate, declaredSize, gameID, newVersion)
}

func (m *Manager) initWrite(username string, kind Kind, declaredSize int64, gameID, newVersion string) (string, error) {
	id := uuid.NewString()
	path := filepath.Join(m.stagingDir, id+".zip")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("transfer: open temp file: %w", err)
	}

	t := &Transfer{
		ID:           id,
		Owner:        username,
		Kind:         kind,
		TempPath:     path,
		DeclaredSize: declaredSize,
		GameID:       gameID,
		NewVersion:   newVersion,
		file:         f,
	}
	m.register(t)
	return id, nil
}

// AppendChunk decodes a base64 CHUNK payload and appends it to the
// transfer's temp file (spec §4.3: "no reply on success, error reply on
// invalid id").
func (m *Manager) AppendChunk(transferID, chunkB64 string) error {
	t, ok := m.get(transferID)
	if !ok {
		return fmt.Errorf("transfer: unknown transfer id %q", transferID)
	}
	data, err := base64.StdEncoding.DecodeString(chunkB64)
	if err != nil {
		return fmt.Errorf("transfer: invalid base64 chunk: %w", err)
	}
	n, err := t.file.Write(data)
	if err != nil {
		return fmt.Errorf("transfer: write chunk: %w", err)
	}
	t.Received += int64(n)
	return nil
}

// FinishUpload validates the checksum, unpacks the archive, reads
// config.json, registers the new game via the Catalog, and promotes the
// unpacked tree into storage/<game_id>/<version>/ (spec §4.3).
func (m *Manager) FinishUpload(transferID, clientMD5 string) (gameID string, err error) {
	t, ok := m.get(transferID)
	if !ok {
		return "", fmt.Errorf("transfer: unknown transfer id %q", transferID)
	}
	defer m.cleanupWrite(t)

	if err := t.file.Close(); err != nil {
		return "", fmt.Errorf("transfer: close temp file: %w", err)
	}

	if err := verifyMD5(t.TempPath, clientMD5); err != nil {
		return "", err
	}

	extractDir := t.TempPath + "_extract"
	if err := unzip(t.TempPath, extractDir); err != nil {
		return "", err
	}
	defer os.RemoveAll(extractDir)

	cfg, err := readPackageConfig(extractDir)
	if err != nil {
		return "", err
	}

	game, err := m.catalog.AddGame(t.Owner, cfg.GameName, cfg.GameDescription, cfg.GameVersion, cfg.MaxPlayers)
	if err != nil {
		return "", fmt.Errorf("transfer: register game: %w", err)
	}

	dest := filepath.Join(m.storageRoot, game.ID, cfg.GameVersion)
	if err := promote(extractDir, dest); err != nil {
		// Catalog insert succeeded but the move failed: roll it back
		// (spec §4.3: "if the Catalog insert succeeded but the move
		// failed, the Catalog entry must be rolled back").
		if res := m.catalog.DeleteGame(game.ID, t.Owner); !res.OK {
			logging.Errorf("transfer: rollback delete_game(%s) after failed promote: %s", game.ID, res.Reason)
		}
		return "", err
	}

	return game.ID, nil
}

// FinishUpdate is FinishUpload's counterpart for an existing game: it
// unpacks directly into storage/<game_id>/<new_version>/ and calls
// Catalog.UpdateGame instead of AddGame (spec §4.3).
func (m *Manager) FinishUpdate(transferID, clientMD5 string) error {
	t, ok := m.get(transferID)
	if !ok {
		return fmt.Errorf("transfer: unknown transfer id %q", transferID)
	}
	defer m.cleanupWrite(t)

	if err := t.file.Close(); err != nil {
		return fmt.Errorf("transfer: close temp file: %w", err)
	}
	if err := verifyMD5(t.TempPath, clientMD5); err != nil {
		return err
	}

	extractDir := t.TempPath + "_extract"
	if err := unzip(t.TempPath, extractDir); err != nil {
		return err
	}
	defer os.RemoveAll(extractDir)

	cfg, err := readPackageConfig(extractDir)
	if err != nil {
		return err
	}

	dest := filepath.Join(m.storageRoot, t.GameID, t.NewVersion)
	if err := promote(extractDir, dest); err != nil {
		return err
	}

	result := m.catalog.UpdateGame(t.GameID, t.Owner, t.NewVersion, catalog.GameUpdate{
		Name:        &cfg.GameName,
		Description: &cfg.GameDescription,
		MaxPlayers:  &cfg.MaxPlayers,
	})
	if !result.OK {
		os.RemoveAll(dest)
		return fmt.Errorf("transfer: catalog update_game rejected: %s", result.Reason)
	}
	return nil
}

func (m *Manager) cleanupWrite(t *Transfer) {
	m.remove(t.ID)
	os.Remove(t.TempPath)
}

func verifyMD5(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("transfer: reopen for checksum: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("transfer: hash temp file: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("transfer: checksum mismatch: got %s want %s", got, want)
	}
	return nil
}

// promote moves an extraction directory's contents into dest, replacing
// any prior contents at that path.
func promote(extractDir, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("transfer: clear destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("transfer: create destination parent: %w", err)
	}
	if err := os.Rename(extractDir, dest); err != nil {
		return fmt.Errorf("transfer: promote package: %w", err)
	}
	return nil
}

// --- Download (spec §4.3 "Download") ---

// InitDownload resolves the latest version of gameID, zips its package
// directory into the staging area, and returns the transfer id, declared
// size and version for the INIT reply.
func (m *Manager) InitDownload(username, gameID string) (transferID string, declaredSize int64, version string, err error) {
	game, err := m.catalog.GetGame(gameID)
	if err != nil {
		return "", 0, "", fmt.Errorf("transfer: resolve game %s: %w", gameID, err)
	}

	srcDir := filepath.Join(m.storageRoot, gameID, game.Version)
	id := uuid.NewString()
	zipPath := filepath.Join(m.stagingDir, id+".zip")
	if err := zipDir(srcDir, zipPath); err != nil {
		return "", 0, "", err
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		return "", 0, "", fmt.Errorf("transfer: stat download zip: %w", err)
	}

	f, err := os.Open(zipPath)
	if err != nil {
		return "", 0, "", fmt.Errorf("transfer: reopen download zip: %w", err)
	}

	t := &Transfer{
		ID:           id,
		Owner:        username,
		Kind:         KindDownload,
		TempPath:     zipPath,
		DeclaredSize: info.Size(),
		GameID:       gameID,
		file:         f,
	}
	m.register(t)
	return id, info.Size(), game.Version, nil
}

// NextChunk reads up to the configured chunk size from the transfer's
// zip file. last is true once the read reaches EOF, signaling the caller
// to follow with FINISH rather than another CHUNK (spec §9 Open Question:
// "FINISH always arrives after the last CHUNK").
func (m *Manager) NextChunk(transferID string) (data []byte, last bool, err error) {
	t, ok := m.get(transferID)
	if !ok {
		return nil, false, fmt.Errorf("transfer: unknown transfer id %q", transferID)
	}

	buf := make([]byte, m.chunkSize)
	n, readErr := t.file.Read(buf)
	t.Sent += int64(n)

	if readErr == io.EOF {
		return buf[:n], true, nil
	}
	if readErr != nil {
		return nil, false, fmt.Errorf("transfer: read chunk: %w", readErr)
	}
	return buf[:n], t.Sent >= t.DeclaredSize, nil
}

// FinishDownload computes the md5 of the complete zip for the FINISH
// reply and increments the Catalog's download count, then releases the
// transfer's staging file.
func (m *Manager) FinishDownload(transferID string) (md5Hex string, err error) {
	t, ok := m.get(transferID)
	if !ok {
		return "", fmt.Errorf("transfer: unknown transfer id %q", transferID)
	}
	defer func() {
		t.file.Close()
		m.remove(t.ID)
		os.Remove(t.TempPath)
	}()

	h := md5.New()
	if _, err := t.file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("transfer: seek download zip: %w", err)
	}
	if _, err := io.Copy(h, t.file); err != nil {
		return "", fmt.Errorf("transfer: hash download zip: %w", err)
	}

	if err := m.catalog.IncrementDownloadCount(t.GameID); err != nil {
		logging.Errorf("transfer: increment_download_count(%s): %v", t.GameID, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Abandon drops a single transfer and deletes its temp file, used when a
// CHUNK/FINISH arrives for an id the caller wants to discard.
func (m *Manager) Abandon(transferID string) {
	t, ok := m.get(transferID)
	if !ok {
		return
	}
	t.file.Close()
	m.remove(t.ID)
	os.Remove(t.TempPath)
}

// AbandonAllOwnedBy garbage-collects every transfer owned by username,
// called during disconnect reconciliation (spec §4.6c).
func (m *Manager) AbandonAllOwnedBy(username string) {
	m.mu.Lock()
	var owned []string
	for id, t := range m.transfers {
		if t.Owner == username {
			owned = append(owned, id)
		}
	}
	m.mu.Unlock()

	for _, id := range owned {
		m.Abandon(id)
	}
}
