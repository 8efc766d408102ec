// Package pcm provides raw PCM audio formats and codecs for the live
// copilot pipelines.
//
// All audio on the wire is 16-bit signed little-endian PCM. The package
// converts between float sample buffers and packed PCM bytes, between
// bytes and the transport-safe base64 text used by the realtime channel,
// and offers duration arithmetic on the supported formats.
package pcm
