package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/index-py/index-cli/bootstrap"
	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "index.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNew_Defaults(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer

	a, err := bootstrap.New(bootstrap.Options{
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		Dir:        dir,
		LogOutput:  &logs,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close()

	if a.Config.Server.Port != 4190 {
		t.Errorf("Port = %d, want 4190", a.Config.Server.Port)
	}
	if a.PIDFile.Path != filepath.Join(dir, ".gunicorn.pid") {
		t.Errorf("PIDFile = %s", a.PIDFile.Path)
	}
	if a.Journal != nil {
		t.Error("journal should only open when requested")
	}
	if a.Controller == nil || a.Launcher == nil || a.Runner == nil || a.Metrics == nil {
		t.Error("services should be wired")
	}
}

func TestNew_Journal(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "journal:\n  dsn: control.db\n")

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path, Dir: dir, LogOutput: &bytes.Buffer{}, Journal: true})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if a.Journal == nil {
		t.Fatal("journal should be open")
	}

	// Without a pid file the action fails but is still journaled.
	if err := a.Controller.Incr(context.Background()); err == nil {
		t.Error("Incr without a running master should fail")
	}

	entries, err := a.Journal.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != gunicorn.ActionIncr || entries[0].OK() {
		t.Errorf("entries = %+v", entries)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "control.db")); err != nil {
		t.Errorf("journal database not created: %v", err)
	}
}

func TestNew_JournalDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "journal:\n  enabled: false\n")

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path, Dir: dir, LogOutput: &bytes.Buffer{}, Journal: true})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close()

	if a.Journal != nil {
		t.Error("journal should stay closed when disabled")
	}
}

func TestNew_JournalOpenFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "journal:\n  dsn: "+filepath.Join(dir, "no", "such", "dir", "j.db")+"\n")
	var logs bytes.Buffer

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path, Dir: dir, LogOutput: &logs, Journal: true})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close()

	if a.Journal != nil {
		t.Error("journal should be disabled after an open failure")
	}
	if !strings.Contains(logs.String(), "journal disabled") {
		t.Errorf("expected a warning, got %q", logs.String())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 70000\n")

	if _, err := bootstrap.New(bootstrap.Options{ConfigPath: path, Dir: dir}); err == nil {
		t.Error("expected validation error")
	}
}

func TestClose_WritesMetrics(t *testing.T) {
	dir := t.TempDir()
	prom := filepath.Join(dir, "index_cli.prom")
	path := writeConfig(t, dir, "metrics:\n  textfile: "+prom+"\n")

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path, Dir: dir, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	a.Metrics.ChildExited("exec", 0)

	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "index_cli_child_exit_total") {
		t.Errorf("textfile = %s", data)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"critical", zerolog.FatalLevel},
		{"error", zerolog.ErrorLevel},
		{"warning", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"info", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"trace", zerolog.TraceLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := bootstrap.NewLogger(&bytes.Buffer{}, tt.level, "json")
			if logger.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger := bootstrap.NewLogger(&buf, "info", "")
	jsonLogger.Info().Str("k", "v").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("non-terminal output should be json: %v (%q)", err, buf.String())
	}
	if line["message"] != "hello" || line["k"] != "v" {
		t.Errorf("line = %v", line)
	}

	buf.Reset()
	consoleLogger := bootstrap.NewLogger(&buf, "info", "console")
	consoleLogger.Info().Msg("hello")
	if json.Valid(buf.Bytes()) || !strings.Contains(buf.String(), "hello") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestLookupBinary(t *testing.T) {
	if _, ok := bootstrap.LookupBinary("sh"); !ok {
		t.Error("sh should be found on PATH")
	}
	if _, ok := bootstrap.LookupBinary("index-cli-no-such-binary"); ok {
		t.Error("missing binary should not be found")
	}
}
