// Package geminilive backs a live session with the Gemini Live API
// instead of a copilot gateway. The adapter translates between the
// copilot wire protocol and genai's realtime session types.
package geminilive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/buildlink-za/sitevoice/pkg/audio/pcm"
	"github.com/buildlink-za/sitevoice/pkg/live"
	"github.com/buildlink-za/sitevoice/pkg/tool"
)

// DefaultModel is used when Dialer.Model is empty.
const DefaultModel = "gemini-2.0-flash-live-001"

var _ live.Dialer = (*Dialer)(nil)

// Dialer opens Gemini Live sessions.
type Dialer struct {
	Client *genai.Client

	// Model should not start with "models/".
	Model string

	// Voice selects a prebuilt voice. Empty keeps the model default.
	Voice string
}

// Dial connects and applies the setup as the session's system
// instruction and tool manifest.
func (d *Dialer) Dial(ctx context.Context, setup live.Setup) (live.Channel, error) {
	model := d.Model
	if model == "" {
		model = DefaultModel
	}

	cfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if setup.Instructions != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(setup.Instructions)},
		}
	}
	if decls := convDeclarations(setup.Tools); len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if d.Voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: d.Voice},
			},
		}
	}

	session, err := d.Client.Live.Connect(ctx, model, cfg)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return nil, &live.ConnectionError{Op: "dial", Err: err}
	}
	return &channel{
		session:   session,
		callNames: make(map[string]string),
	}, nil
}

type channel struct {
	session *genai.Session

	mu sync.Mutex
	// callNames remembers function-call ids so tool responses can carry
	// the name the API requires.
	callNames map[string]string
	closed    bool
}

// Send translates one client frame. The setup frame is a no-op here;
// its content was applied at connect time.
func (c *channel) Send(msg *live.ClientMessage) error {
	switch {
	case msg.Audio != nil:
		data, err := pcm.FromTransportText(msg.Audio.Audio)
		if err != nil {
			return fmt.Errorf("geminilive: decode audio: %w", err)
		}
		return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
			Audio: &genai.Blob{Data: data, MIMEType: "audio/pcm;rate=16000"},
		})
	case msg.Image != nil:
		data, err := pcm.FromTransportText(msg.Image.Image)
		if err != nil {
			return fmt.Errorf("geminilive: decode image: %w", err)
		}
		return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
			Video: &genai.Blob{Data: data, MIMEType: msg.Image.MIMEType},
		})
	case msg.ToolResponse != nil:
		return c.sendToolResponse(msg.ToolResponse)
	}
	return nil
}

func (c *channel) sendToolResponse(resp *live.ToolResponse) error {
	c.mu.Lock()
	name := c.callNames[resp.ID]
	delete(c.callNames, resp.ID)
	c.mu.Unlock()

	return c.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       resp.ID,
			Name:     name,
			Response: responseMap(resp),
		}},
	})
}

// responseMap shapes an ack for the API, which wants an object.
func responseMap(resp *live.ToolResponse) map[string]any {
	if resp.Status != live.ToolStatusOK {
		return map[string]any{"error": resp.Reason, "status": resp.Status}
	}
	var m map[string]any
	if err := json.Unmarshal(resp.Payload, &m); err == nil && m != nil {
		return m
	}
	var v any
	if err := json.Unmarshal(resp.Payload, &v); err == nil {
		return map[string]any{"result": v}
	}
	return map[string]any{"result": string(resp.Payload)}
}

func (c *channel) Messages() iter.Seq2[*live.ServerMessage, error] {
	return func(yield func(*live.ServerMessage, error) bool) {
		for {
			msg, err := c.session.Receive()
			if err != nil {
				if err == io.EOF || c.isClosed() {
					return
				}
				if e, ok := err.(*apierror.APIError); ok {
					err = e.Unwrap()
				}
				yield(nil, &live.ConnectionError{Op: "receive", Err: err})
				return
			}
			out := c.convert(msg)
			if out == nil {
				continue
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// Close ends the session. Idempotent.
func (c *channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.session.Close()
}

func (c *channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// convert maps one API message to a wire frame. Returns nil for frames
// with nothing to route (setup complete, resumption updates).
func (c *channel) convert(msg *genai.LiveServerMessage) *live.ServerMessage {
	out := &live.ServerMessage{}
	routed := false

	if sc := msg.ServerContent; sc != nil {
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			out.UserText = &live.UserText{Text: sc.InputTranscription.Text}
			routed = true
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			out.Text = &live.ModelText{Text: sc.OutputTranscription.Text}
			routed = true
		}
		if sc.ModelTurn != nil {
			var text strings.Builder
			var audio []byte
			audioRate := 0
			for _, p := range sc.ModelTurn.Parts {
				switch {
				case p.Text != "":
					text.WriteString(p.Text)
				case p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/pcm"):
					// A turn streams at one rate; the first part's wins.
					if audioRate == 0 {
						audioRate = mimeRate(p.InlineData.MIMEType)
					}
					audio = append(audio, p.InlineData.Data...)
				}
			}
			if len(audio) > 0 {
				out.Audio = &live.ModelAudio{
					Audio: pcm.TransportText(audio),
					Rate:  audioRate,
				}
				routed = true
			}
			if text.Len() > 0 && out.Text == nil {
				out.Text = &live.ModelText{Text: text.String()}
				routed = true
			}
		}
		if sc.Interrupted {
			out.Interrupted = true
			routed = true
		}
		if sc.TurnComplete {
			out.TurnComplete = true
			routed = true
		}
	}

	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			id := fc.ID
			if id == "" {
				id = fc.Name
			}
			c.mu.Lock()
			c.callNames[id] = fc.Name
			c.mu.Unlock()

			args, _ := json.Marshal(fc.Args)
			out.ToolCalls = append(out.ToolCalls, live.ToolCall{
				ID:   id,
				Name: fc.Name,
				Args: args,
			})
			routed = true
		}
	}

	if msg.GoAway != nil {
		out.Error = &live.WireError{Code: "go_away", Message: "server ending the session"}
		routed = true
	}

	if !routed {
		return nil
	}
	return out
}

// mimeRate parses the rate parameter of an audio MIME type, defaulting
// to 24000.
func mimeRate(mime string) int {
	for _, part := range strings.Split(mime, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil {
				return rate
			}
		}
	}
	return 24000
}

// convDeclarations maps the tool manifest to API declarations.
func convDeclarations(decls []tool.Declaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		out = append(out, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  convSchema(d.Parameters),
		})
	}
	return out
}

func convSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       convSchema(schema.Items),
		Required:    schema.Required,
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = convSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
