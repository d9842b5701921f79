package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "app:\n  plant_id: 3\ncache:\n  driver: none\nlookup:\n  max_nodes: 200\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("TT_HTTP_ADDR", ":9999")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.PlantID != 3 || cfg.Cache.Driver != "none" || cfg.Lookup.MaxNodes != 200 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("http.addr = %q, want env override", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second || cfg.Database.Driver != "sqlite" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() expected error for missing explicit file")
	}
}

func TestValidate(t *testing.T) {
	base := Config{Database: DatabaseConfig{DSN: "x.sqlite"}}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = " " }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Cache.Driver = "redis" }, wantErr: true},
		{name: "redis", mutate: func(c *Config) { c.Cache.Driver = "redis"; c.Cache.RedisAddr = "localhost:6379" }},
		{name: "unknown cache", mutate: func(c *Config) { c.Cache.Driver = "memcached" }, wantErr: true},
		{name: "negative max nodes", mutate: func(c *Config) { c.Lookup.MaxNodes = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
