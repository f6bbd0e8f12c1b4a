package transfer

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"lobbyplatform/internal/catalog"
)

// buildTestZip constructs a valid package archive (config.json, client/,
// server/) at dest and returns its bytes.
func buildTestZip(t *testing.T, dest string, cfg PackageConfig) []byte {
	t.Helper()

	f, err := os.Create(dest)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	w := zip.NewWriter(f)

	cfgEntry, err := w.Create("config.json")
	if err != nil {
		t.Fatalf("create config.json entry: %v", err)
	}
	cfgJSON := `{"game_name":"` + cfg.GameName + `","game_description":"` + cfg.GameDescription +
		`","game_version":"` + cfg.GameVersion + `","max_players":` + itoa(cfg.MaxPlayers) + `}`
	if _, err := cfgEntry.Write([]byte(cfgJSON)); err != nil {
		t.Fatalf("write config.json: %v", err)
	}

	if _, err := w.Create("client/"); err != nil {
		t.Fatalf("create client/: %v", err)
	}
	serverEntry, err := w.Create("server/server.py")
	if err != nil {
		t.Fatalf("create server/server.py: %v", err)
	}
	if _, err := serverEntry.Write([]byte("# server\n")); err != nil {
		t.Fatalf("write server.py: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reread zip: %v", err)
	}
	return data
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "staging")
	storage := filepath.Join(root, "storage")

	cat, err := catalog.NewJSONCatalog(filepath.Join(root, "data"))
	if err != nil {
		t.Fatalf("NewJSONCatalog: %v", err)
	}

	mgr, err := NewManager(staging, storage, 4096, cat)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	src := filepath.Join(root, "src.zip")
	data := buildTestZip(t, src, PackageConfig{
		GameName:        "g",
		GameDescription: "d",
		GameVersion:     "1.0.0",
		MaxPlayers:      2,
	})

	id, err := mgr.InitUpload("dev1", int64(len(data)))
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if err := mgr.AppendChunk(id, base64.StdEncoding.EncodeToString(data)); err != nil {
		t.Fatalf("AppendChunk: %v", err)
	}

	gameID, err := mgr.FinishUpload(id, md5Hex(data))
	if err != nil {
		t.Fatalf("FinishUpload: %v", err)
	}
	if gameID != "1" {
		t.Fatalf("gameID = %q, want \"1\"", gameID)
	}

	games, err := cat.ListGames()
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != 1 || games[0].Name != "g" {
		t.Fatalf("unexpected catalog state: %+v", games)
	}

	dlID, declaredSize, version, err := mgr.InitDownload("player1", gameID)
	if err != nil {
		t.Fatalf("InitDownload: %v", err)
	}
	if version != "1.0.0" {
		t.Fatalf("version = %q, want 1.0.0", version)
	}

	var received []byte
	for {
		chunk, last, err := mgr.NextChunk(dlID)
		if err != nil {
			t.Fatalf("NextChunk: %v", err)
		}
		received = append(received, chunk...)
		if last {
			break
		}
	}
	if int64(len(received)) != declaredSize {
		t.Fatalf("received %d bytes, want %d", len(received), declaredSize)
	}

	checksum, err := mgr.FinishDownload(dlID)
	if err != nil {
		t.Fatalf("FinishDownload: %v", err)
	}
	if checksum != md5Hex(received) {
		t.Fatalf("checksum = %s, want %s", checksum, md5Hex(received))
	}

	updated, err := cat.GetGame(gameID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if updated.DownloadCount != 1 {
		t.Fatalf("DownloadCount = %d, want 1", updated.DownloadCount)
	}

	// The unpacked round-trip must contain the same config.json (spec §8:
	// "byte-identical config.json").
	extractDir := t.TempDir()
	if err := unzip(dlZipPathFor(t, received), extractDir); err != nil {
		t.Fatalf("unzip downloaded archive: %v", err)
	}
	unpackedCfg, err := readPackageConfig(extractDir)
	if err != nil {
		t.Fatalf("readPackageConfig: %v", err)
	}
	if unpackedCfg.GameVersion != "1.0.0" || unpackedCfg.GameName != "g" {
		t.Fatalf("unexpected unpacked config: %+v", unpackedCfg)
	}

	srcExtract := t.TempDir()
	if err := unzip(src, srcExtract); err != nil {
		t.Fatalf("unzip uploaded archive: %v", err)
	}
	wantCfg, _ := os.ReadFile(filepath.Join(srcExtract, "config.json"))
	gotCfg, _ := os.ReadFile(filepath.Join(extractDir, "config.json"))
	if !bytes.Equal(gotCfg, wantCfg) {
		t.Fatalf("downloaded config.json = %q, want %q", gotCfg, wantCfg)
	}
}

func TestFinishUploadRejectsChecksumMismatch(t *testing.T) {
	root := t.TempDir()
	cat, _ := catalog.NewJSONCatalog(filepath.Join(root, "data"))
	mgr, err := NewManager(filepath.Join(root, "staging"), filepath.Join(root, "storage"), 4096, cat)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	src := filepath.Join(root, "src.zip")
	data := buildTestZip(t, src, PackageConfig{GameName: "g", GameVersion: "1.0.0", MaxPlayers: 2})

	id, _ := mgr.InitUpload("dev1", int64(len(data)))
	_ = mgr.AppendChunk(id, base64.StdEncoding.EncodeToString(data))

	if _, err := mgr.FinishUpload(id, "not-a-real-checksum"); err == nil {
		t.Fatal("expected checksum mismatch error")
	}

	games, _ := cat.ListGames()
	if len(games) != 0 {
		t.Fatalf("catalog should have no games after rejected upload, got %d", len(games))
	}
}

func TestAbandonAllOwnedByRemovesTempFiles(t *testing.T) {
	root := t.TempDir()
	cat, _ := catalog.NewJSONCatalog(filepath.Join(root, "data"))
	mgr, err := NewManager(filepath.Join(root, "staging"), filepath.Join(root, "storage"), 4096, cat)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	id, err := mgr.InitUpload("dev1", 0)
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	tr, ok := mgr.get(id)
	if !ok {
		t.Fatal("transfer should be registered")
	}
	path := tr.TempPath

	mgr.AbandonAllOwnedBy("dev1")

	if _, ok := mgr.get(id); ok {
		t.Fatal("transfer should be removed after abandon")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("temp file should be deleted, stat err = %v", err)
	}
}

// dlZipPathFor writes received to a temp file and returns its path, since
// unzip operates on a file path rather than an in-memory buffer.
func dlZipPathFor(t *testing.T, received []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "downloaded.zip")
	if err := os.WriteFile(path, received, 0644); err != nil {
		t.Fatalf("write downloaded zip: %v", err)
	}
	return path
}
