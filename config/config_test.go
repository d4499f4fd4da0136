// ABOUTME: Tests for config layering, strict YAML decoding, XDG paths, and the .env loader.
// ABOUTME: Uses t.TempDir and t.Setenv so no real user files are touched.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SCOUT_CONFIG", "SCOUT_PROVIDER", "SCOUT_MODEL", "SCOUT_SEARCH", "SCOUT_GRAPH",
		"SCOUT_DATA_DIR", "SCOUT_ADDR", "SCOUT_LOG_LEVEL", "SCOUT_LOG_FORMAT", "SCOUT_MAX_ITERATIONS",
		"OPENAI_BASE_URL", "SERPAPI_API_KEY", "TAVILY_API_KEY"} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLayering(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "scout.yaml", `
provider: openai
model: gpt-4o-mini
max_iterations: 4
loop: true
server:
  addr: ":9000"
log:
  format: json
`)
	t.Setenv("SCOUT_MODEL", "gpt-4.1")
	t.Setenv("SERPAPI_API_KEY", "serp")
	t.Setenv("SCOUT_MAX_ITERATIONS", "6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Provider = "openai"
	want.Model = "gpt-4.1"
	want.MaxIterations = 6
	want.Loop = true
	want.Server.Addr = ":9000"
	want.Log.Format = "json"
	want.SerpAPIKey = "serp"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromXDGAndEnvPath(t *testing.T) {
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if err := os.MkdirAll(filepath.Join(xdg, "scout"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(xdg, "scout"), "config.yaml", "search: tavily\n")
	cfg, err := Load("")
	if err != nil || cfg.Search != "tavily" {
		t.Fatalf("xdg config: %+v, %v", cfg, err)
	}

	other := writeFile(t, t.TempDir(), "other.yaml", "search: mock\n")
	t.Setenv("SCOUT_CONFIG", other)
	cfg, err = Load("")
	if err != nil || cfg.Search != "mock" {
		t.Fatalf("SCOUT_CONFIG: %+v, %v", cfg, err)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	tests := []struct {
		name    string
		path    string
		env     map[string]string
		wantErr string
	}{
		{name: "explicit missing file", path: filepath.Join(dir, "nope.yaml"), wantErr: "no such file"},
		{name: "unknown key", path: writeFile(t, dir, "bad.yaml", "modle: x\n"), wantErr: "modle"},
		{name: "bad iterations", path: writeFile(t, dir, "ok.yaml", ""), env: map[string]string{"SCOUT_MAX_ITERATIONS": "lots"}, wantErr: "SCOUT_MAX_ITERATIONS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDirs(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_CONFIG_HOME", "/conf")
	if d, _ := DataDir(); d != filepath.Join("/data", "scout") {
		t.Errorf("DataDir = %q", d)
	}
	if d, _ := ConfigDir(); d != filepath.Join("/conf", "scout") {
		t.Errorf("ConfigDir = %q", d)
	}

	dir := filepath.Join(t.TempDir(), "nested")
	p, err := Config{DataDir: dir}.DatabasePath()
	if err != nil {
		t.Fatalf("DatabasePath: %v", err)
	}
	if p != filepath.Join(dir, "history.db") {
		t.Errorf("DatabasePath = %q", p)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", `
# comment
export SCOUT_TEST_A=one
SCOUT_TEST_B="two=2"
SCOUT_TEST_C='three'
SCOUT_TEST_KEEP=fromfile
not a pair
`)
	t.Setenv("SCOUT_TEST_KEEP", "fromenv")
	for _, k := range []string{"SCOUT_TEST_A", "SCOUT_TEST_B", "SCOUT_TEST_C"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	LoadDotEnv(path)

	want := map[string]string{
		"SCOUT_TEST_A":    "one",
		"SCOUT_TEST_B":    "two=2",
		"SCOUT_TEST_C":    "three",
		"SCOUT_TEST_KEEP": "fromenv",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}
