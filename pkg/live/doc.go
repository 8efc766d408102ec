// Package live implements the real-time copilot session: one
// bidirectional channel to the remote agent, fed by a microphone capture
// pipeline and an optional camera frame sampler, played back through a
// gapless audio queue, with agent tool calls dispatched against the
// marketplace and acknowledged exactly once.
//
// The entry point is Copilot. A typical wiring:
//
//	cp, err := live.New(live.Config{
//	    Dialer:       &live.WebSocketDialer{URL: gatewayURL},
//	    Microphone:   &malgomic.Microphone{},
//	    Speaker:      &otospeaker.Speaker{},
//	    Instructions: instructions,
//	    Tools:        registry,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := cp.Activate(ctx); err != nil {
//	    return err
//	}
//	defer cp.Deactivate()
//
// All resources of one activation (session, hardware streams, playback
// buffers) live in a single owned aggregate, created on Activate and
// disposed on Deactivate, unmount, or transport error. A per-activation
// cancellation token is checked by every asynchronous callback before it
// touches shared state; on teardown the token is invalidated first, then
// resources are released, so late callbacks observe the invalidation and
// drop out silently.
package live
