package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("%s: bad json line %q: %v", path, sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

func messages(recs []map[string]any) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i], _ = r["msg"].(string)
	}
	return out
}

// TestInitWritesNamedFiles verifies App and Media go to their own files.
func TestInitWritesNamedFiles(t *testing.T) {
	restoreDefault(t)
	dir := t.TempDir()

	l, err := Init(Config{Level: slog.LevelInfo, Dir: dir})
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	l.App.Info("gallery: view attached", "id", "a")
	l.App.Debug("gallery: filtered out")
	l.Media.Warn("rtsp: pipeline error", "feed", "cam-1")

	if err := l.Shutdown(); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if err := l.Shutdown(); err != nil {
		t.Errorf("second Shutdown() failed: %v", err)
	}

	app := readJSONLines(t, filepath.Join(dir, "app.log"))
	if got := messages(app); len(got) != 1 || got[0] != "gallery: view attached" {
		t.Errorf("app.log messages=%v", got)
	}
	if app[0]["logger"] != "app" || app[0]["id"] != "a" {
		t.Errorf("app.log record=%v", app[0])
	}

	media := readJSONLines(t, filepath.Join(dir, "media.log"))
	if got := messages(media); len(got) != 1 || got[0] != "rtsp: pipeline error" {
		t.Errorf("media.log messages=%v", got)
	}
	if media[0]["logger"] != "media" {
		t.Errorf("media.log record=%v", media[0])
	}
}

// TestConsoleLevels verifies the console shows app records at the
// configured level and media records only from warn.
func TestConsoleLevels(t *testing.T) {
	restoreDefault(t)
	var console bytes.Buffer

	l, err := Init(Config{Level: slog.LevelDebug, Console: true, ConsoleWriter: &console})
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer l.Shutdown()

	l.App.Debug("app debug")
	l.Media.Info("media info")
	l.Media.Error("media error")

	out := console.String()
	if !strings.Contains(out, "app debug") {
		t.Errorf("console missing app debug:\n%s", out)
	}
	if strings.Contains(out, "media info") {
		t.Errorf("console shows media info:\n%s", out)
	}
	if !strings.Contains(out, "media error") {
		t.Errorf("console missing media error:\n%s", out)
	}
}

// TestInitSetsDefault verifies slog's default logger is App.
func TestInitSetsDefault(t *testing.T) {
	restoreDefault(t)
	var console bytes.Buffer

	l, err := Init(Config{Level: slog.LevelInfo, Console: true, ConsoleWriter: &console})
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer l.Shutdown()

	slog.Info("via default")
	if !strings.Contains(console.String(), "via default") || !strings.Contains(console.String(), "logger=app") {
		t.Errorf("default logger not routed to App:\n%s", console.String())
	}
}

// TestInitNoOutputs verifies loggers are usable with every output disabled.
func TestInitNoOutputs(t *testing.T) {
	restoreDefault(t)

	l, err := Init(Config{})
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	l.App.Error("dropped")
	l.Media.Error("dropped")
	if err := l.Shutdown(); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

// TestInitBadDir verifies a directory that cannot be created fails fast.
func TestInitBadDir(t *testing.T) {
	restoreDefault(t)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Init(Config{Dir: filepath.Join(file, "logs")}); err == nil {
		t.Error("Init() succeeded with a file in the dir path")
	}
}

// TestFanoutWithAttrs verifies derived loggers keep every branch.
func TestFanoutWithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanout(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	log := slog.New(h).With("component", "gallery").WithGroup("g")
	log.Info("hello", "k", 1)
	log.Error("boom")

	if !strings.Contains(a.String(), "component=gallery") || !strings.Contains(a.String(), "g.k=1") {
		t.Errorf("branch a:\n%s", a.String())
	}
	if strings.Contains(b.String(), "hello") || !strings.Contains(b.String(), "boom") {
		t.Errorf("branch b:\n%s", b.String())
	}
}
