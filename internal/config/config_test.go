package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

// writeConfig writes data to name inside a fresh temp dir and returns the path.
func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 5242880
route_prefix = "/api"

[upstream]
base_url = "http://api.internal:8000"
timeout_seconds = 60
idle_connections = 50

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Server.RoutePrefix != "/api" {
		t.Errorf("Server.RoutePrefix = %q, want %q", cfg.Server.RoutePrefix, "/api")
	}
	if cfg.Upstream.BaseURL != "http://api.internal:8000" {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, "http://api.internal:8000")
	}
	if cfg.Upstream.TimeoutSeconds != 60 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 60)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
}

func TestLoad_YAMLConfig(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: 9100
  route_prefix: /api
upstream:
  base_url: https://api.example.com
  timeout_seconds: 15
metrics:
  enabled: true
  path: /internal/metrics
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9100)
	}
	if cfg.Upstream.BaseURL != "https://api.example.com" {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, "https://api.example.com")
	}
	if cfg.Upstream.TimeoutSeconds != 15 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 15)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v, want enabled at /internal/metrics", cfg.Metrics)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yml", "server: [unterminated\n")

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for malformed YAML, got nil")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("error = %q, want mention of parse", err)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[log]
level = "verbose"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for invalid log level, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.toml", "# empty\n")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("default Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
	if cfg.Server.BodyMaxBytes != 10*1024*1024 {
		t.Errorf("default Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 10*1024*1024)
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamBaseURL {
		t.Errorf("default Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultUpstreamBaseURL)
	}
	if cfg.Upstream.TimeoutSeconds != 0 {
		t.Errorf("default Upstream.TimeoutSeconds = %d, want 0 (no timeout)", cfg.Upstream.TimeoutSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("default Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(&CLI{})
	if err != nil {
		t.Fatalf("Load() error = %v; missing config file should fall back to defaults", err)
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamBaseURL {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultUpstreamBaseURL)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(cliWithPath("/nonexistent/config.toml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
host = "0.0.0.0"
port = 8000

[upstream]
base_url = "http://127.0.0.1:8000"

[log]
level = "info"
`)

	cli := &CLI{
		Config:          path,
		Host:            "127.0.0.1",
		Port:            3001,
		UpstreamBaseURL: "http://api:9000",
		LogLevel:        "debug",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q (CLI override)", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want %d (CLI override)", cfg.Server.Port, 3001)
	}
	if cfg.Upstream.BaseURL != "http://api:9000" {
		t.Errorf("Upstream.BaseURL = %q, want %q (CLI override)", cfg.Upstream.BaseURL, "http://api:9000")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (CLI override)", cfg.Log.Level, "debug")
	}
}

func TestLoad_UpstreamBaseURLValidation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http loopback", "http://127.0.0.1:8000", false},
		{"https host", "https://api.example.com", false},
		{"ftp scheme", "ftp://api.example.com", true},
		{"no scheme", "api.example.com:8000", true},
		{"no host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.toml", "[upstream]\nbase_url = \""+tt.baseURL+"\"\n")
			_, err := Load(cliWithPath(path))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RoutePrefixValidation(t *testing.T) {
	for _, prefix := range []string{"api", "/api/"} {
		t.Run(prefix, func(t *testing.T) {
			path := writeConfig(t, "config.toml", "[server]\nroute_prefix = \""+prefix+"\"\n")
			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatalf("Load() expected error for route_prefix=%q, got nil", prefix)
			}
			if !strings.Contains(err.Error(), "route_prefix") {
				t.Errorf("error = %q, want mention of route_prefix", err)
			}
		})
	}
}

func TestLoad_NegativeValues(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"port", "[server]\nport = -1\n"},
		{"body_max_bytes", "[server]\nbody_max_bytes = -1\n"},
		{"timeout_seconds", "[upstream]\ntimeout_seconds = -5\n"},
		{"idle_connections", "[upstream]\nidle_connections = -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.toml", tt.data)
			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatalf("Load() expected error for negative %s, got nil", tt.name)
			}
			if !strings.Contains(err.Error(), tt.name) {
				t.Errorf("error = %q, want mention of %s", err, tt.name)
			}
		})
	}
}

func TestLoad_RateLimitConfig_Enabled(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server.rate_limit]
enabled = true
requests_per_second = 50.0
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Server.RateLimit.Enabled {
		t.Error("expected RateLimit.Enabled = true")
	}
	if cfg.Server.RateLimit.RequestsPerSecond != 50.0 {
		t.Errorf("RateLimit.RequestsPerSecond = %v, want 50.0", cfg.Server.RateLimit.RequestsPerSecond)
	}
}

func TestLoad_RateLimitConfig_BadValue(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server.rate_limit]
enabled = true
requests_per_second = 0
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for rate limit enabled with requests_per_second=0, got nil")
	}
	if !strings.Contains(err.Error(), "requests_per_second") {
		t.Errorf("error = %q, want mention of requests_per_second", err)
	}
}

func TestWarnPermissions_Loose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o666); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "writable by group/others") {
		t.Errorf("expected permission warning, got: %q", buf.String())
	}
}

func TestWarnPermissions_Strict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning for 0644 file, got: %q", buf.String())
	}
}

func TestFindConfigInPaths(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	path1 := filepath.Join(dir1, "config.toml")
	path2 := filepath.Join(dir2, "config.toml")
	for _, p := range []string{path1, path2} {
		if err := os.WriteFile(p, []byte("# test\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"first match wins", []string{path1, path2}, path1},
		{"skips missing", []string{"/nonexistent/a.toml", path2}, path2},
		{"none found", []string{"/nonexistent/a.toml", "/nonexistent/b.toml"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findConfigInPaths(tt.paths); got != tt.want {
				t.Errorf("findConfigInPaths() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_MetricsPathDefault(t *testing.T) {
	path := writeConfig(t, "config.toml", "[metrics]\nenabled = true\n")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_MetricsPathNoLeadingSlash(t *testing.T) {
	path := writeConfig(t, "config.toml", "[metrics]\nenabled = true\npath = \"metrics\"\n")

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for metrics.path without leading slash, got nil")
	}
	if !strings.Contains(err.Error(), "metrics.path") {
		t.Errorf("error = %q, want mention of metrics.path", err)
	}
}

func TestLoad_MetricsPathConflictsWithRoute(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
	}{
		{"health", "", "/health"},
		{"healthz", "", "/healthz"},
		{"accounts sub", "", "/accounts/metrics"},
		{"proxy/status", "", "/proxy/status"},
		{"prefixed logout", "/api", "/api/logout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "[server]\nroute_prefix = \"" + tt.prefix + "\"\n\n[metrics]\nenabled = true\npath = \"" + tt.path + "\"\n"
			path := writeConfig(t, "config.toml", data)

			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatalf("Load() expected error for metrics.path=%q conflicting with route, got nil", tt.path)
			}
			if !strings.Contains(err.Error(), "conflicts") {
				t.Errorf("error = %q, want mention of conflict", err)
			}
		})
	}
}

func TestLoad_MetricsDisabledSkipsPathValidation(t *testing.T) {
	path := writeConfig(t, "config.toml", "[metrics]\nenabled = false\npath = \"bad-no-slash\"\n")

	_, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 3000}
	want := "127.0.0.1:3000"
	if got := sc.Addr(); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}
