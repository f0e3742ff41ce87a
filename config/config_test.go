package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for key, value := range map[string]string{
		"DB_DRIVER":        "",
		"MYSQL_HOST":       "",
		"MYSQL_PORT":       "",
		"MYSQL_USER":       "",
		"MYSQL_PASSWORD":   "",
		"MYSQL_DATABASE":   "",
		"SQLITE_PATH":      "",
		"HOST":             "",
		"PORT":             "",
		"JSONLIMIT":        "",
		"LOG_LEVEL":        "",
		"SHUTDOWN_TIMEOUT": "",
		"RESOURCE_ARN":     "arn:aws:rds:us-east-1:123456789012:cluster:dummy",
		"SECRET_ARN":       "arn:aws:secretsmanager:us-east-1:123456789012:secret:dummy",
	} {
		t.Setenv(key, value)
		if value == "" {
			os.Unsetenv(key)
		}
	}
}

func TestParseDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Driver != "mysql" || cfg.MySQLPort != 3306 || cfg.MySQLDatabase != "mysql" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.ListenAddr() != "0.0.0.0:8080" {
		t.Errorf("Unexpected listen address %s", cfg.ListenAddr())
	}
	if cfg.JSONLimit != 4194304 {
		t.Errorf("Unexpected JSON limit %d", cfg.JSONLimit)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Unexpected shutdown timeout %v", cfg.ShutdownTimeout)
	}
	if level, _ := cfg.LogLevelValue(); level != slog.LevelInfo {
		t.Errorf("Unexpected log level %v", level)
	}
}

func TestParseRequiresARNs(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SECRET_ARN", "")

	if _, err := Parse(); err == nil {
		t.Fatal("Expected error when SECRET_ARN is empty")
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"DB_DRIVER": "postgres",
		"JSONLIMIT": "0",
		"LOG_LEVEL": "loud",
		"PORT":      "eighty",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(key, value)
			if _, err := Parse(); err == nil {
				t.Errorf("Expected error for %s=%s", key, value)
			}
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("MYSQL_HOST", "db")
	t.Setenv("MYSQL_PORT", "3307")
	t.Setenv("MYSQL_USER", "app")
	t.Setenv("MYSQL_PASSWORD", "secret")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "app:secret@tcp(db:3307)/mysql?") {
		t.Errorf("Unexpected DSN %s", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("Expected parseTime in DSN %s", dsn)
	}
}

func TestSQLiteDSN(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/data.db")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if dsn := cfg.DSN(); !strings.HasPrefix(dsn, "file:/tmp/data.db?") {
		t.Errorf("Unexpected DSN %s", dsn)
	}
}
