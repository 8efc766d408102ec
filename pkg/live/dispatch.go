package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/buildlink-za/sitevoice/pkg/tool"
)

// dispatcher executes agent tool calls against the registry and sends
// exactly one acknowledgement per call id, whatever the outcome.
type dispatcher struct {
	reg     *tool.Registry
	onAlert func(tool.Alert)
	logger  *slog.Logger
}

// dispatch runs one call on its own goroutine. The ack is correlated by
// the agent-assigned id; a panic inside the tool is converted to an
// error ack so the agent is never left waiting.
func (d *dispatcher) dispatch(ctx context.Context, sess *Session, call ToolCall) {
	go func() {
		resp := d.execute(ctx, call)
		sess.SendToolResponse(resp)
	}()
}

func (d *dispatcher) execute(ctx context.Context, call ToolCall) (resp ToolResponse) {
	resp = ToolResponse{ID: call.ID}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			resp.Status = ToolStatusError
			resp.Payload = nil
			resp.Reason = fmt.Sprintf("tool %s panicked", call.Name)
		}
	}()

	t, ok := d.reg.Lookup(call.Name)
	if !ok {
		d.logger.Warn("agent called unknown tool", "tool", call.Name)
		resp.Status = ToolStatusUnknownTool
		resp.Reason = fmt.Sprintf("no tool named %q", call.Name)
		return resp
	}

	out, err := t.Invoke(ctx, string(call.Args))
	if err != nil {
		d.logger.Warn("tool failed", "tool", call.Name, "err", err)
		resp.Status = ToolStatusError
		resp.Reason = err.Error()
		return resp
	}

	// Handlers with something to announce wrap their payload in a
	// tool.Result; everything else is the payload itself.
	switch r := out.(type) {
	case tool.Result:
		if r.Alert != nil && d.onAlert != nil {
			d.onAlert(*r.Alert)
		}
		out = r.Payload
	case *tool.Result:
		if r != nil {
			if r.Alert != nil && d.onAlert != nil {
				d.onAlert(*r.Alert)
			}
			out = r.Payload
		}
	}

	payload, err := json.Marshal(out)
	if err != nil {
		d.logger.Warn("tool result not serializable", "tool", call.Name, "err", err)
		resp.Status = ToolStatusError
		resp.Reason = fmt.Sprintf("result not serializable: %v", err)
		return resp
	}
	resp.Status = ToolStatusOK
	resp.Payload = payload
	return resp
}
