package formatter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

var historyResource = Resource{
	Name:    "history",
	Columns: []string{"action", "pid", "signals", "error"},
}

func testRecords() []map[string]any {
	return []map[string]any{
		{"id": "a1", "action": "reload", "pid": 4021, "signals": "USR2,WINCH", "error": ""},
		{"id": "b2", "action": "stop", "pid": 0, "signals": "", "error": "master not running"},
	}
}

// ===========================================
// Registry Tests
// ===========================================

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(NewTableFormatter()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := r.Register(NewTableFormatter())
	if err == nil {
		t.Fatal("expected error when registering duplicate formatter")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("error should mention 'already registered', got: %v", err)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewTableFormatter())
	_ = r.Register(NewJSONFormatter())

	f, err := r.Get("json")
	if err != nil {
		t.Fatalf("Get(json) error: %v", err)
	}
	if f.Name() != "json" {
		t.Errorf("Name() = %q, want json", f.Name())
	}

	f, err = r.Get("")
	if err != nil {
		t.Fatalf("Get(\"\") error: %v", err)
	}
	if f.Name() != "table" {
		t.Errorf("default = %q, want table", f.Name())
	}

	if _, err := r.Get("csv"); err == nil || !strings.Contains(err.Error(), "json") {
		t.Errorf("Get(csv) error = %v, want one listing available formats", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	got := List()
	want := []string{"json", "table", "yaml"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

// ===========================================
// Table Tests
// ===========================================

func TestTable_FormatList(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTableFormatter().FormatList(&buf, historyResource, testRecords(), Options{}); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "ACTION PID SIGNALS ERROR" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "reload") || !strings.Contains(lines[1], "USR2,WINCH") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "master not running") {
		t.Errorf("row 2 = %q", lines[2])
	}
	if strings.Contains(buf.String(), "a1") {
		t.Error("id column should not be printed")
	}
}

func TestTable_FormatListEmpty(t *testing.T) {
	var buf bytes.Buffer
	_ = NewTableFormatter().FormatList(&buf, historyResource, nil, Options{})
	if buf.String() != "No records found.\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTable_NoHeaderAndColumns(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{NoHeader: true, Columns: []string{"id"}}
	if err := NewTableFormatter().FormatList(&buf, historyResource, testRecords(), opts); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}
	if buf.String() != "a1\nb2\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTable_FormatRecord(t *testing.T) {
	var buf bytes.Buffer
	record := map[string]any{"log_level": "info", "port": 4190, "autoreload": false}
	if err := NewTableFormatter().FormatRecord(&buf, Resource{Name: "config"}, record, Options{}); err != nil {
		t.Fatalf("FormatRecord error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Autoreload:", "no", "Log Level:", "info", "Port:", "4190"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Sorted keys when the resource has no columns.
	if strings.Index(out, "Autoreload") > strings.Index(out, "Port") {
		t.Errorf("keys not sorted:\n%s", out)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		val  any
		max  int
		want string
	}{
		{"nil", nil, 0, "-"},
		{"empty string", "", 0, "-"},
		{"string", "hello", 0, "hello"},
		{"true", true, 0, "yes"},
		{"false", false, 0, "no"},
		{"int", 42, 0, "42"},
		{"whole float", 3.0, 0, "3"},
		{"float", 3.14159, 0, "3.14"},
		{"duration", 10 * time.Second, 0, "10s"},
		{"slice", []string{"a", "b"}, 0, `["a","b"]`},
		{"truncated", "abcdefghij", 8, "abcde..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.val, tt.max); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.val, got, tt.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	if got := label("pid_wait"); got != "Pid Wait" {
		t.Errorf("label = %q", got)
	}
}

// ===========================================
// JSON Tests
// ===========================================

func TestJSON_FormatList(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter().FormatList(&buf, historyResource, testRecords(), Options{}); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}

	var out struct {
		Resource string           `json:"resource"`
		Count    int              `json:"count"`
		Data     []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if out.Resource != "history" || out.Count != 2 {
		t.Errorf("resource=%q count=%d", out.Resource, out.Count)
	}
	if _, ok := out.Data[0]["id"]; ok {
		t.Error("id should be projected out")
	}
	if out.Data[0]["signals"] != "USR2,WINCH" {
		t.Errorf("signals = %v", out.Data[0]["signals"])
	}
}

func TestJSON_Compact(t *testing.T) {
	var buf bytes.Buffer
	record := map[string]any{"port": 4190}
	if err := NewJSONFormatter().FormatRecord(&buf, Resource{}, record, Options{Compact: true}); err != nil {
		t.Fatalf("FormatRecord error: %v", err)
	}
	if buf.String() != "{\"port\":4190}\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestJSON_NilRecord(t *testing.T) {
	var buf bytes.Buffer
	_ = NewJSONFormatter().FormatRecord(&buf, Resource{}, nil, Options{})
	if buf.String() != "null\n" {
		t.Errorf("got %q", buf.String())
	}
}

// ===========================================
// YAML Tests
// ===========================================

func TestYAML_FormatList(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter().FormatList(&buf, historyResource, testRecords(), Options{}); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}

	var out map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid yaml: %v\n%s", err, buf.String())
	}
	if out["resource"] != "history" {
		t.Errorf("resource = %v", out["resource"])
	}
	if out["count"] != 2 {
		t.Errorf("count = %v", out["count"])
	}
	data, ok := out["data"].([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("data = %#v", out["data"])
	}
}

func TestYAML_FormatRecord(t *testing.T) {
	var buf bytes.Buffer
	record := map[string]any{"server": map[string]any{"port": 4190}}
	if err := NewYAMLFormatter().FormatRecord(&buf, Resource{}, record, Options{}); err != nil {
		t.Fatalf("FormatRecord error: %v", err)
	}
	if buf.String() != "server:\n  port: 4190\n" {
		t.Errorf("got %q", buf.String())
	}
}
