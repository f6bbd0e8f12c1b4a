// Package transfer holds the chunked file-transfer protocol's archive
// helpers: zipping a package directory for download and unzipping an
// uploaded archive into a staging extraction directory, plus the
// config.json shape every package must carry (spec §6).
package transfer

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PackageConfig is the required config.json shape for an uploaded or
// updated game package (spec §6).
type PackageConfig struct {
	GameName        string `json:"game_name"`
	GameDescription string `json:"game_description"`
	GameVersion     string `json:"game_version"`
	MaxPlayers      int    `json:"max_players"`
}

// readPackageConfig loads and validates config.json from an extracted
// package directory, and confirms the client/ and server/ subtrees exist
// (spec §6: "absence of any of the three is a validation failure").
func readPackageConfig(extractDir string) (PackageConfig, error) {
	data, err := os.ReadFile(filepath.Join(extractDir, "config.json"))
	if err != nil {
		return PackageConfig{}, fmt.Errorf("transfer: missing config.json: %w", err)
	}

	var cfg PackageConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return PackageConfig{}, fmt.Errorf("transfer: invalid config.json: %w", err)
	}
	if cfg.GameName == "" || cfg.GameVersion == "" || cfg.MaxPlayers < 2 {
		return PackageConfig{}, fmt.Errorf("transfer: config.json missing required fields")
	}

	for _, dir := range []string{"client", "server"} {
		info, err := os.Stat(filepath.Join(extractDir, dir))
		if err != nil || !info.IsDir() {
			return PackageConfig{}, fmt.Errorf("transfer: package missing %s/ directory", dir)
		}
	}
	return cfg, nil
}

// unzip extracts archivePath into destDir, creating destDir if it does not
// exist yet. Guards against zip-slip by rejecting entries that escape destDir.
func unzip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("transfer: open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("transfer: create extract dir: %w", err)
	}

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return fmt.Errorf("transfer: archive entry %q escapes extraction directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("transfer: open entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("transfer: create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("transfer: write %s: %w", target, err)
	}
	return nil
}

// zipDir writes a zip archive of every file under srcDir (relative paths
// preserved) to destZipPath, used to produce a download's transient zip.
func zipDir(srcDir, destZipPath string) error {
	out, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("transfer: create zip: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	defer w.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			_, err := w.Create(rel + "/")
			return err
		}

		entry, err := w.Create(rel)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(entry, src)
		return err
	})
}
