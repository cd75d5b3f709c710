//go:build headless

// audio_backend_headless.go - Silent audio output for deviceless builds

package main

import "sync"

func init() {
	compiledFeatures = append(compiledFeatures, "audio:headless")
}

// OtoPlayer under the headless tag swallows samples without touching a
// device. The transport and playback tests run against this build.
type OtoPlayer struct {
	mutex      sync.Mutex
	renderer   SampleRenderer
	sampleRate int
	started    bool
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	return &OtoPlayer{sampleRate: sampleRate}, nil
}

func (op *OtoPlayer) SetRenderer(r SampleRenderer) {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	op.renderer = r
}

func (op *OtoPlayer) Start() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	op.started = true
	return nil
}

func (op *OtoPlayer) Stop() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	op.started = false
	return nil
}

func (op *OtoPlayer) Close() error {
	return op.Stop()
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}

func (op *OtoPlayer) SampleRate() int {
	return op.sampleRate
}
