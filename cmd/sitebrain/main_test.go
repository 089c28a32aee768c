package main

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "test.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Embedding.APIKeyEnv = "SITEBRAIN_TEST_KEY_THAT_IS_NOT_SET"
	return cfg
}

func TestInitComponentsWithoutEmbedder(t *testing.T) {
	// status and enqueue never embed; they must come up without an API key.
	comps, err := initComponents(testConfig(t), zap.NewNop(), false)
	if err != nil {
		t.Fatalf("initComponents(needEmbedder=false): %v", err)
	}
	defer comps.Close()
	if comps.Store == nil || comps.Worker == nil {
		t.Error("store and worker must be wired")
	}
}

func TestInitComponentsRequiresKeyForEmbedder(t *testing.T) {
	if _, err := initComponents(testConfig(t), zap.NewNop(), true); err == nil {
		t.Fatal("expected missing API key error")
	}
}
