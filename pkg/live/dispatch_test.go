package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/buildlink-za/sitevoice/pkg/tool"
)

func newTestDispatcher(t *testing.T, onAlert func(tool.Alert)) *dispatcher {
	t.Helper()

	type echoArgs struct {
		Message string `json:"message"`
	}
	reg, err := tool.NewRegistry(
		tool.MustNew("echo", "repeats the message", func(_ context.Context, args echoArgs) (any, error) {
			return map[string]string{"echo": args.Message}, nil
		}),
		tool.MustNew("broken", "always fails", func(_ context.Context, _ echoArgs) (any, error) {
			return nil, errors.New("kaput")
		}),
		tool.MustNew("explosive", "always panics", func(_ context.Context, _ echoArgs) (any, error) {
			panic("boom")
		}),
		tool.MustNew("announcer", "returns an alert", func(_ context.Context, args echoArgs) (any, error) {
			return tool.Result{
				Payload: map[string]string{"ok": "yes"},
				Alert:   &tool.Alert{Title: "done", Body: args.Message, Kind: "success"},
			}, nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return &dispatcher{reg: reg, onAlert: onAlert, logger: slog.Default()}
}

func TestDispatchOK(t *testing.T) {
	d := newTestDispatcher(t, nil)

	resp := d.execute(context.Background(), ToolCall{
		ID: "call-1", Name: "echo", Args: json.RawMessage(`{"message":"howzit"}`),
	})
	if resp.ID != "call-1" {
		t.Fatalf("resp.ID = %q, want call-1", resp.ID)
	}
	if resp.Status != ToolStatusOK {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	var payload map[string]string
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["echo"] != "howzit" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestDispatchToolError(t *testing.T) {
	d := newTestDispatcher(t, nil)

	resp := d.execute(context.Background(), ToolCall{ID: "call-2", Name: "broken"})
	if resp.Status != ToolStatusError {
		t.Fatalf("status = %q, want error", resp.Status)
	}
	if !strings.Contains(resp.Reason, "kaput") {
		t.Fatalf("reason = %q, want cause included", resp.Reason)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t, nil)

	resp := d.execute(context.Background(), ToolCall{ID: "call-3", Name: "no_such_tool"})
	if resp.Status != ToolStatusUnknownTool {
		t.Fatalf("status = %q, want unknown_tool", resp.Status)
	}
	if resp.ID != "call-3" {
		t.Fatalf("resp.ID = %q", resp.ID)
	}
}

func TestDispatchPanicBecomesErrorAck(t *testing.T) {
	d := newTestDispatcher(t, nil)

	resp := d.execute(context.Background(), ToolCall{ID: "call-4", Name: "explosive"})
	if resp.Status != ToolStatusError {
		t.Fatalf("status = %q, want error", resp.Status)
	}
	if resp.Payload != nil {
		t.Fatalf("payload = %s, want none", resp.Payload)
	}
}

func TestDispatchSurfacesAlert(t *testing.T) {
	var alerts []tool.Alert
	d := newTestDispatcher(t, func(a tool.Alert) { alerts = append(alerts, a) })

	resp := d.execute(context.Background(), ToolCall{
		ID: "call-5", Name: "announcer", Args: json.RawMessage(`{"message":"logged"}`),
	})
	if resp.Status != ToolStatusOK {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	if len(alerts) != 1 || alerts[0].Body != "logged" {
		t.Fatalf("alerts = %v, want one with the tool's body", alerts)
	}
	// The agent sees the payload, never the alert.
	var payload map[string]string
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["ok"] != "yes" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestDispatchRepairsSloppyArgs(t *testing.T) {
	d := newTestDispatcher(t, nil)

	// Single-quoted JSON as models sometimes emit.
	resp := d.execute(context.Background(), ToolCall{
		ID: "call-6", Name: "echo", Args: json.RawMessage(`{'message': 'eish'}`),
	})
	if resp.Status != ToolStatusOK {
		t.Fatalf("status = %q, want ok after repair (reason %q)", resp.Status, resp.Reason)
	}
}
