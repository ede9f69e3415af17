package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lookupMap(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom("", lookupMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageSQLite || cfg.Storage.SQLitePath != "recordcore.db" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Locale != "pt-BR" || cfg.Currency != "BRL" || cfg.StockThreshold != 0 {
		t.Fatalf("unexpected locale defaults %+v", cfg)
	}
	if cfg.Blob.Driver != "fs" || cfg.Blob.FSRoot != "./exports" {
		t.Fatalf("unexpected blob defaults %+v", cfg.Blob)
	}
}

func TestFileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recordcore.yaml")
	yaml := "storage:\n  driver: mongo\n  database: clinic\nstock_warning_threshold: 3\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFrom(path, lookupMap(map[string]string{
		EnvStockThreshold: "5",
		EnvHashPasswords:  "true",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageMongo || cfg.Storage.Database != "clinic" {
		t.Fatalf("expected file values, got %+v", cfg.Storage)
	}
	if cfg.Storage.URL != "mongodb://localhost:27017" {
		t.Fatalf("expected mongo default url, got %s", cfg.Storage.URL)
	}
	if cfg.StockThreshold != 5 || !cfg.HashPasswords || cfg.Log.Level != "debug" {
		t.Fatalf("expected env override, got %+v", cfg)
	}
}

func TestInvalidValues(t *testing.T) {
	cases := []map[string]string{
		{EnvStorageDriver: "oracle"},
		{EnvStockThreshold: "many"},
		{EnvStockThreshold: "-1"},
		{EnvHashPasswords: "perhaps"},
		{EnvBlobDriver: "tape"},
		{EnvBlobDriver: "s3"},
		{EnvLogLevel: "loud"},
		{EnvLogFormat: "xml"},
	}
	for _, env := range cases {
		if _, err := LoadFrom("", lookupMap(env)); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), lookupMap(nil)); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Log{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "operation", "close_service_visit")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"operation":"close_service_visit"`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if _, err := NewLogger(Log{Level: "info", Format: "xml"}, &buf); err == nil {
		t.Fatalf("expected format error")
	}
}
