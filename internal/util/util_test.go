package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetContextLines(t *testing.T) {
	src := "let a = 1;\nlet b = 2;\nlet c = ;\nlet d = 4;"
	got := GetContextLines(src, 3, 9, "expression expected")
	want := "       1 | let a = 1;\n" +
		"       2 | let b = 2;\n" +
		"  >    3 | let c = ;\n" +
		"                   ^ expression expected"
	if got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestGetContextLinesClampsColumn(t *testing.T) {
	got := GetContextLines("x", 1, 40, "here")
	if !strings.HasSuffix(got, " ^ here") {
		t.Errorf("got %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	content := `
root = "scripts"
max_history = 16
history_dsn = "sqlite3://runs.db"
log_level = "debug"
color = "never"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfiguration()
	if err := cfg.LoadFile(path, false); err != nil {
		t.Fatal(err)
	}
	if cfg.RootPath != "scripts" || cfg.MaxHistory != 16 || cfg.HistoryDSN != "sqlite3://runs.db" ||
		cfg.LogLevel != "debug" || cfg.Color != "never" {
		t.Errorf("loaded %+v", cfg)
	}
	if cfg.LogFile != "" || cfg.DebugAST {
		t.Errorf("unset keys changed: %+v", cfg)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"unknown key", `colour = "never"`, "unknown keys"},
		{"bad color", `color = "sometimes"`, "invalid color mode"},
		{"bad history", `max_history = 0`, "max_history"},
		{"syntax", `root = `, "load configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".toml")
			os.WriteFile(path, []byte(tt.content), 0644)
			cfg := DefaultConfiguration()
			err := cfg.LoadFile(path, false)
			if err == nil || !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("got %v, want error containing %q", err, tt.errText)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := DefaultConfiguration()
	missing := filepath.Join(t.TempDir(), "none.toml")
	if err := cfg.LoadFile(missing, true); err != nil {
		t.Errorf("optional missing file: %v", err)
	}
	if err := cfg.LoadFile(missing, false); err == nil {
		t.Error("expected an error for a required missing file")
	}
}
