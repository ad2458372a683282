package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestQueryArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is the capital of France", "-top-k", "5"},
			expected: []string{"-top-k", "5", "what is the capital of France"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-top-k", "5", "what is the capital of France"},
			expected: []string{"-top-k", "5", "what is the capital of France"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is the capital of France"},
			expected: []string{"what is the capital of France"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-output", "json"},
			expected: []string{"-output", "json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("queryArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"capital"}, "capital"},
		{"multiple words", []string{"capital", "of", "France"}, "capital of France"},
		{"single quoted phrase", []string{"capital of France"}, "capital of France"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
		{"one space", []string{" "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuestion(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		extensions []string
		want       bool
	}{
		{"listed extension", "/docs/report.pdf", []string{".txt", ".pdf"}, true},
		{"unlisted extension", "/docs/report.exe", []string{".txt", ".pdf"}, false},
		{"case-insensitive", "/docs/REPORT.PDF", []string{".pdf"}, true},
		{"empty list accepts extractable", "/docs/report.txt", nil, true},
		{"empty list rejects unknown", "/docs/report.exe", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchExtension(tt.path, tt.extensions)
			if got != tt.want {
				t.Errorf("matchExtension(%q, %v) = %t, want %t", tt.path, tt.extensions, got, tt.want)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}
