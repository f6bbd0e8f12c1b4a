// File: internal/config/config.go
// Lobby Platform - Configuration Management

package config

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the lobby platform.
type Config struct {
	// Lobby endpoint (player-facing)
	LobbyHost string
	LobbyPort int

	// Developer endpoint
	DevHost string
	DevPort int

	// Game server supervision
	GameServerHost      string // host advertised to clients for START_GAME
	GameSpawnSettleSecs int    // ~2s settle wait before replying START

	// Storage
	StorageRoot  string // storage/<game_id>/<version>/
	TransferTemp string // staging area for in-progress transfers
	ChunkSize    int    // bytes per DOWNLOAD_GAME_CHUNK frame

	// Database settings
	DBType           string // "json", "sqlite" or "postgres"
	DBHost           string
	DBPort           int
	DBName           string
	DBUser           string
	DBPassword       string
	DBMaxConnections int
	DBMaxIdleConns   int
	DataDir          string // root for the json backend's flat files

	// Redis presence cache (optional)
	RedisEnabled bool
	RedisHost    string
	RedisPort    int
	RedisDB      int

	// Account security
	TOTPIssuer string

	// Server behavior
	MaxPlayers          int
	ShutdownTimeoutSecs int
}

var defaultConfig = Config{
	LobbyHost:           "",
	LobbyPort:           9000,
	DevHost:             "",
	DevPort:             9001,
	GameServerHost:      "localhost",
	GameSpawnSettleSecs: 2,
	StorageRoot:         "storage",
	TransferTemp:        "tmp/transfers",
	ChunkSize:           4096,
	DBType:              "json",
	DBHost:              "localhost",
	DBPort:              5432,
	DBName:              "lobbyplatform",
	DBUser:              "lobbyuser",
	DBPassword:          "",
	DBMaxConnections:    25,
	DBMaxIdleConns:      5,
	DataDir:             "data",
	RedisEnabled:        false,
	RedisHost:           "localhost",
	RedisPort:           6379,
	RedisDB:             0,
	TOTPIssuer:          "LobbyPlatform",
	MaxPlayers:          500,
	ShutdownTimeoutSecs: 30,
}

// LoadConfig loads configuration from an environment file. The -env flag
// selects a non-default file (defaults to ".env").
func LoadConfig() (*Config, error) {
	envFile := flag.String("env", ".env", "Path to environment configuration file")
	flag.Parse()

	log.Printf("Loading configuration from: %s", *envFile)

	// godotenv populates process environment variables from the file (if
	// present) so that deployments can also just set real env vars; the
	// hand-rolled scanner below then layers file-local overrides on top and
	// is tolerant of a missing file, unlike godotenv.Load.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: godotenv could not parse %s: %v", *envFile, err)
	}

	config := defaultConfig

	if err := loadEnvFile(*envFile, &config); err != nil {
		if os.IsNotExist(err) {
			log.Printf("Configuration file %s not found, creating with defaults...", *envFile)
			if err := createDefaultEnvFile(*envFile); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
			log.Printf("Created default configuration file: %s", *envFile)
		} else {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("Configuration loaded successfully")
	return &config, nil
}

// loadEnvFile reads configuration from a key=value file.
func loadEnvFile(filename string, config *Config) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			log.Printf("Warning: Invalid line %d in %s: %s", lineNum, filename, line)
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, "\"'")

		if err := setConfigValue(config, key, value); err != nil {
			log.Printf("Warning: Error setting %s on line %d: %v", key, lineNum, err)
		}
	}

	return scanner.Err()
}

// applyEnvOverrides lets real process environment variables (including ones
// godotenv loaded) win over file values, without requiring a rewrite of the
// file on disk.
func applyEnvOverrides(config *Config) {
	for _, key := range []string{
		"LOBBY_HOST", "LOBBY_PORT", "DEV_HOST", "DEV_PORT",
		"GAME_SERVER_HOST", "GAME_SPAWN_SETTLE_SECS",
		"STORAGE_ROOT", "TRANSFER_TEMP", "CHUNK_SIZE",
		"DB_TYPE", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"DB_MAX_CONNECTIONS", "DB_MAX_IDLE_CONNS", "DATA_DIR",
		"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_DB",
		"TOTP_ISSUER", "MAX_PLAYERS", "SHUTDOWN_TIMEOUT_SECS",
	} {
		if value, ok := os.LookupEnv(key); ok {
			if err := setConfigValue(config, key, value); err != nil {
				log.Printf("Warning: Error applying env override %s: %v", key, err)
			}
		}
	}
}

func setConfigValue(config *Config, key, value string) error {
	switch key {
	case "LOBBY_HOST":
		config.LobbyHost = value
	case "LOBBY_PORT":
		return setInt(&config.LobbyPort, value)
	case "DEV_HOST":
		config.DevHost = value
	case "DEV_PORT":
		return setInt(&config.DevPort, value)
	case "GAME_SERVER_HOST":
		config.GameServerHost = value
	case "GAME_SPAWN_SETTLE_SECS":
		return setInt(&config.GameSpawnSettleSecs, value)
	case "STORAGE_ROOT":
		config.StorageRoot = value
	case "TRANSFER_TEMP":
		config.TransferTemp = value
	case "CHUNK_SIZE":
		return setInt(&config.ChunkSize, value)
	case "DB_TYPE":
		config.DBType = value
	case "DB_HOST":
		config.DBHost = value
	case "DB_PORT":
		return setInt(&config.DBPort, value)
	case "DB_NAME":
		config.DBName = value
	case "DB_USER":
		config.DBUser = value
	case "DB_PASSWORD":
		config.DBPassword = value
	case "DB_MAX_CONNECTIONS":
		return setInt(&config.DBMaxConnections, value)
	case "DB_MAX_IDLE_CONNS":
		return setInt(&config.DBMaxIdleConns, value)
	case "DATA_DIR":
		config.DataDir = value
	case "REDIS_ENABLED":
		config.RedisEnabled = value == "true" || value == "1"
	case "REDIS_HOST":
		config.RedisHost = value
	case "REDIS_PORT":
		return setInt(&config.RedisPort, value)
	case "REDIS_DB":
		return setInt(&config.RedisDB, value)
	case "TOTP_ISSUER":
		config.TOTPIssuer = value
	case "MAX_PLAYERS":
		return setInt(&config.MaxPlayers, value)
	case "SHUTDOWN_TIMEOUT_SECS":
		return setInt(&config.ShutdownTimeoutSecs, value)
	default:
		log.Printf("Warning: Unknown configuration key: %s", key)
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func createDefaultEnvFile(filename string) error {
	content := `# Lobby Platform Configuration File
# Bootstrap configuration, created automatically with defaults if missing.

LOBBY_HOST=
LOBBY_PORT=9000
DEV_HOST=
DEV_PORT=9001

GAME_SERVER_HOST=localhost
GAME_SPAWN_SETTLE_SECS=2

STORAGE_ROOT=storage
TRANSFER_TEMP=tmp/transfers
CHUNK_SIZE=4096

# DB_TYPE: "json" (default), "sqlite" or "postgres"
DB_TYPE=json
DATA_DIR=data

# Only used when DB_TYPE=sqlite or DB_TYPE=postgres
DB_HOST=localhost
DB_PORT=5432
DB_NAME=lobbyplatform
DB_USER=lobbyuser
DB_PASSWORD=
DB_MAX_CONNECTIONS=25
DB_MAX_IDLE_CONNS=5

REDIS_ENABLED=false
REDIS_HOST=localhost
REDIS_PORT=6379
REDIS_DB=0

TOTP_ISSUER=LobbyPlatform

MAX_PLAYERS=500
SHUTDOWN_TIMEOUT_SECS=30
`
	return os.WriteFile(filename, []byte(content), 0644)
}

func validateConfig(config *Config) error {
	if config.LobbyPort < 1 || config.LobbyPort > 65535 {
		return fmt.Errorf("invalid LOBBY_PORT: must be between 1 and 65535")
	}
	if config.DevPort < 1 || config.DevPort > 65535 {
		return fmt.Errorf("invalid DEV_PORT: must be between 1 and 65535")
	}
	if config.LobbyPort == config.DevPort {
		return fmt.Errorf("LOBBY_PORT and DEV_PORT must differ")
	}

	switch config.DBType {
	case "json", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid DB_TYPE: must be 'json', 'sqlite' or 'postgres'")
	}

	if config.DBType == "postgres" {
		if config.DBHost == "" {
			return fmt.Errorf("DB_HOST required for PostgreSQL")
		}
		if config.DBUser == "" {
			return fmt.Errorf("DB_USER required for PostgreSQL")
		}
	}

	if config.ChunkSize < 1024 {
		return fmt.Errorf("CHUNK_SIZE must be at least 1024 bytes")
	}

	if config.MaxPlayers < 1 {
		return fmt.Errorf("MAX_PLAYERS must be at least 1")
	}

	if config.ShutdownTimeoutSecs < 5 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SECS must be at least 5 seconds")
	}

	return nil
}

// SQLConnectionString returns the database/sql driver DSN for the configured
// SQL backend. It is meaningless when DBType is "json".
func (c *Config) SQLConnectionString() string {
	switch c.DBType {
	case "sqlite":
		return c.DBName
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
		)
	default:
		return ""
	}
}

// LobbyListenAddress returns host:port for the lobby endpoint.
func (c *Config) LobbyListenAddress() string {
	return fmt.Sprintf("%s:%d", bindHost(c.LobbyHost), c.LobbyPort)
}

// DevListenAddress returns host:port for the developer endpoint.
func (c *Config) DevListenAddress() string {
	return fmt.Sprintf("%s:%d", bindHost(c.DevHost), c.DevPort)
}

func bindHost(host string) string {
	if host == "" {
		return "0.0.0.0"
	}
	return host
}

// LogConfig logs the active configuration (without sensitive data).
func (c *Config) LogConfig() {
	log.Println("=== Lobby Platform Configuration ===")
	log.Printf("Lobby endpoint: %s", c.LobbyListenAddress())
	log.Printf("Developer endpoint: %s", c.DevListenAddress())
	log.Printf("Game server host (advertised): %s", c.GameServerHost)
	log.Printf("Storage root: %s", c.StorageRoot)
	log.Printf("Database backend: %s", c.DBType)
	log.Printf("Redis presence cache: %v", c.RedisEnabled)
	log.Printf("Max players: %d", c.MaxPlayers)
	log.Println("=====================================")
}
