// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
engine:
  confidence_threshold: 0.8
  classify_timeout: "3s"
storage:
  cache:
    type: "memory"
    price_ttl: "30s"
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.Engine.ConfidenceThreshold != 0.8 {
		t.Errorf("Engine.ConfidenceThreshold: got %v", cfg.Engine.ConfidenceThreshold)
	}
	if cfg.Engine.ClassifyTimeout != "3s" {
		t.Errorf("Engine.ClassifyTimeout: got %q", cfg.Engine.ClassifyTimeout)
	}
	if cfg.Storage.Cache.PriceTTL != "30s" {
		t.Errorf("Cache.PriceTTL: got %q", cfg.Storage.Cache.PriceTTL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
}

func TestLoadConfig_EnvKeySubstitution(t *testing.T) {
	dir := t.TempDir()
	yaml := `
model:
  provider: "openai"
  api_key: "${ADVISOR_TEST_MODEL_KEY}"
market:
  provider: "finnhub"
  api_key: "${ADVISOR_TEST_MARKET_KEY}"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("ADVISOR_TEST_MODEL_KEY", "mk-123")
	t.Setenv("ADVISOR_TEST_MARKET_KEY", "fk-456")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Model.APIKey != "mk-123" {
		t.Errorf("Model.APIKey: got %q", cfg.Model.APIKey)
	}
	if cfg.Market.APIKey != "fk-456" {
		t.Errorf("Market.APIKey: got %q", cfg.Market.APIKey)
	}
}

func TestParseDuration(t *testing.T) {
	if d := ParseDuration("", 5*time.Second); d != 5*time.Second {
		t.Errorf("empty: got %v", d)
	}
	if d := ParseDuration("bogus", time.Second); d != time.Second {
		t.Errorf("invalid: got %v", d)
	}
	if d := ParseDuration("250ms", time.Second); d != 250*time.Millisecond {
		t.Errorf("valid: got %v", d)
	}
}
