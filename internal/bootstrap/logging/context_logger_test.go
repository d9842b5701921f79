package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestContextAttrsFlowIntoLines(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "json"))
	ctx = WithComponent(ctx, "queue")
	ctx = WithRequest(ctx, "req-1", " lead ")
	ctx = WithStation(ctx, 1, 0)
	ctx = WithComponent(ctx, "httpapi")

	Debug(ctx, "advanced")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (line %q)", err, buf.String())
	}
	if line[KeyComponent] != "httpapi" {
		t.Fatalf("component = %v, want httpapi", line[KeyComponent])
	}
	if line[KeyRequestID] != "req-1" || line[KeyOperator] != "lead" {
		t.Fatalf("request attrs = %v / %v", line[KeyRequestID], line[KeyOperator])
	}
	if line[KeyPlant] != float64(1) {
		t.Fatalf("plant_id = %v, want 1", line[KeyPlant])
	}
	if _, ok := line[KeyWorkCenter]; ok {
		t.Fatalf("zero work center should be skipped: %v", line)
	}
}

func TestLevelFiltersLines(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "warn", "text"))

	Info(ctx, "quiet")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
	Warn(ctx, "loud")
	if !bytes.Contains(buf.Bytes(), []byte("loud")) {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestWithRequestSkipsBlank(t *testing.T) {
	ctx := WithRequest(context.Background(), " ", "")
	if attrs := Attrs(ctx); len(attrs) != 0 {
		t.Fatalf("Attrs() = %v, want none", attrs)
	}
}
