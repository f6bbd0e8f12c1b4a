package config

import "testing"

func TestValidateConfigRejectsSamePort(t *testing.T) {
	cfg := defaultConfig
	cfg.DevPort = cfg.LobbyPort
	if err := validateConfig(&cfg); err == nil {
		t.Fatal("expected error when lobby and dev ports collide")
	}
}

func TestValidateConfigRejectsBadDBType(t *testing.T) {
	cfg := defaultConfig
	cfg.DBType = "mongo"
	if err := validateConfig(&cfg); err == nil {
		t.Fatal("expected error for unsupported DB_TYPE")
	}
}

func TestValidateConfigRequiresPostgresHostAndUser(t *testing.T) {
	cfg := defaultConfig
	cfg.DBType = "postgres"
	cfg.DBHost = ""
	if err := validateConfig(&cfg); err == nil {
		t.Fatal("expected error for missing DB_HOST under postgres")
	}

	cfg.DBHost = "localhost"
	cfg.DBUser = ""
	if err := validateConfig(&cfg); err == nil {
		t.Fatal("expected error for missing DB_USER under postgres")
	}
}

func TestListenAddressesUseWildcardByDefault(t *testing.T) {
	cfg := defaultConfig
	if got, want := cfg.LobbyListenAddress(), "0.0.0.0:9000"; got != want {
		t.Fatalf("LobbyListenAddress() = %q, want %q", got, want)
	}
	if got, want := cfg.DevListenAddress(), "0.0.0.0:9001"; got != want {
		t.Fatalf("DevListenAddress() = %q, want %q", got, want)
	}
}

func TestSQLConnectionStringSQLite(t *testing.T) {
	cfg := defaultConfig
	cfg.DBType = "sqlite"
	cfg.DBName = "data/lobby.db"
	if got, want := cfg.SQLConnectionString(), "data/lobby.db"; got != want {
		t.Fatalf("SQLConnectionString() = %q, want %q", got, want)
	}
}
