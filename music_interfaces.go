// music_interfaces.go - Common interfaces for parsers, engines and audio output

package main

// MusicFile is implemented by all parsed music file types
// Each format implements this with format-specific metadata and data access
type MusicFile interface {
	// GetMetadata returns common metadata fields
	GetMetadata() MusicMetadata
	// GetData returns the raw music data (format-specific)
	GetData() []byte
}

// DecodeEngine turns raw track bytes into interleaved stereo PCM at a fixed
// native rate. Engines are stateless factories; all mutable playback state
// lives in the sessions they hand out, so a corrupted track can never poison
// the next one.
type DecodeEngine interface {
	// Name identifies the engine ("spc", "vgm")
	Name() string
	// NativeRate returns the fixed output rate in Hz
	NativeRate() int
	// Initialize validates data and returns a ready decode session
	Initialize(data []byte) (*DecodeSession, error)
}

// SampleRenderer fills buf with interleaved stereo float32 samples at the
// device rate. Implemented by the playback engine; called from the audio
// output's pull path, so implementations must never block or panic.
type SampleRenderer interface {
	RenderAudio(buf []float32)
}

// AudioOutput is the device-facing half of playback. The oto backend and the
// headless backend both implement it.
type AudioOutput interface {
	// SetRenderer attaches the sample source. Safe to call before Start.
	SetRenderer(r SampleRenderer)
	// Start begins pulling samples from the renderer
	Start() error
	// Stop pauses the device without releasing it
	Stop() error
	// Close releases the device
	Close() error
	// IsStarted reports whether the device is currently pulling
	IsStarted() bool
	// SampleRate returns the device rate in Hz
	SampleRate() int
}
