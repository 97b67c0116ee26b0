package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_LevelFollowsVerbose(t *testing.T) {
	t.Parallel()

	var quiet, loud bytes.Buffer
	New(&quiet, false).Debug("hidden")
	New(&loud, true).Debug("shown", zap.String("step", "parse"))

	if quiet.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", quiet.String())
	}
	out := loud.String()
	if !strings.Contains(out, "DEBUG") || !strings.Contains(out, "shown") || !strings.Contains(out, `"step": "parse"`) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewJSON(&buf, false)
	log.Info("run done", zap.Int("combinations", 3))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("not json: %v; out=%s", err, buf.String())
	}
	if got["msg"] != "run done" || got["combinations"] != float64(3) {
		t.Fatalf("got=%v", got)
	}
}
