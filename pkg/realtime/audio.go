package realtime

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// AudioSink receives assistant speech for playback. Flush discards
// buffered audio immediately, used when a speaking turn is truncated.
type AudioSink interface {
	Play(pcm []byte)
	Flush()
	Close() error
}

// SinkFactory acquires (or creates) the audio output sink during
// connect. The same sink may be handed out across reconnects.
type SinkFactory func() (AudioSink, error)

// NopSink discards audio; used when playback is disabled.
type NopSink struct{}

func (NopSink) Play([]byte)  {}
func (NopSink) Flush()       {}
func (NopSink) Close() error { return nil }

// SpeakerSink plays PCM16 mono audio through the default output
// device. The oto context is process-global, so create at most one
// SpeakerSink per process and share it across sessions.
type SpeakerSink struct {
	player *oto.Player

	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewSpeakerSink initializes the output device at the given sample
// rate with a ~100ms buffer for low latency.
func NewSpeakerSink(sampleRateHz int) (*SpeakerSink, error) {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRateHz,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   sampleRateHz / 5,
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s := &SpeakerSink{buf: make([]byte, 0, sampleRateHz*4)}
	s.player = otoCtx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Play appends a chunk of assistant speech to the playback buffer.
func (s *SpeakerSink) Play(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf = append(s.buf, pcm...)
}

// Flush discards all pending audio so an interrupted turn stops at
// once instead of draining.
func (s *SpeakerSink) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
}

// Read implements io.Reader for the oto player. Silence is returned
// while the buffer is empty so the device keeps running between
// turns.
func (s *SpeakerSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close stops playback.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.mu.Unlock()

	if s.player != nil {
		return s.player.Close()
	}
	return nil
}
