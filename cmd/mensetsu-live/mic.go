package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// micCapture streams PCM16 mono frames from the default input device.
// Frames flow to the sink only between resume and pause, matching
// push-to-talk: outside of a held turn the device keeps running but
// its samples are dropped.
type micCapture struct {
	device *malgo.Device

	mu   sync.Mutex
	sink func(pcm []byte) error
}

// startMic initializes the capture device at the given sample rate.
// The returned cleanup stops the device and releases the audio
// context.
func startMic(ctx context.Context, sampleRateHz int) (*micCapture, func(), error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("init capture context: %w", err)
	}

	m := &micCapture{}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRateHz)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			m.mu.Lock()
			sink := m.sink
			m.mu.Unlock()
			if sink == nil {
				return
			}
			frame := make([]byte, len(samples))
			copy(frame, samples)
			_ = sink(frame)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return nil, nil, fmt.Errorf("start capture device: %w", err)
	}
	m.device = device

	cleanup := func() {
		m.pause()
		_ = device.Stop()
		device.Uninit()
		_ = malgoCtx.Uninit()
	}

	go func() {
		<-ctx.Done()
		m.pause()
	}()

	return m, cleanup, nil
}

// resume routes captured frames to sink until pause.
func (m *micCapture) resume(sink func(pcm []byte) error) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

// pause drops captured frames.
func (m *micCapture) pause() {
	m.mu.Lock()
	m.sink = nil
	m.mu.Unlock()
}
