package butler

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const captureBitDepth = 16

// captureSink drains one capture ring to a WAV file. Only the butler
// goroutine touches a sink; the real-time side just pushes frames into the
// paired producer.
type captureSink struct {
	cons    *CaptureConsumer
	file    *os.File
	enc     *wav.Encoder
	scratch []float32
	intBuf  *goaudio.IntBuffer
}

// newCaptureSink opens the output file and prepares a 16-bit PCM encoder at
// the ring's sample rate.
func newCaptureSink(cons *CaptureConsumer) (*captureSink, error) {
	meta := cons.Meta()

	f, err := os.Create(meta.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}

	rate := int(meta.SampleRate())
	enc := wav.NewEncoder(f, rate, captureBitDepth, meta.Channels(), 1)

	return &captureSink{
		cons: cons,
		file: f,
		enc:  enc,
		intBuf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: meta.Channels(), SampleRate: rate},
			SourceBitDepth: captureBitDepth,
		},
	}, nil
}

// flush drains all buffered frames to disk. Returns the frame count written.
func (s *captureSink) flush(m *Metrics) (int, error) {
	avail := s.cons.Available()
	if avail == 0 {
		return 0, nil
	}

	if cap(s.scratch) < avail*2 {
		s.scratch = make([]float32, avail*2)
	}
	s.scratch = s.scratch[:avail*2]

	frames := s.cons.ReadInto(s.scratch)
	if frames == 0 {
		return 0, nil
	}

	samples := frames * 2
	if cap(s.intBuf.Data) < samples {
		s.intBuf.Data = make([]int, samples)
	}
	s.intBuf.Data = s.intBuf.Data[:samples]
	for i := 0; i < samples; i++ {
		s.intBuf.Data[i] = clampPCM16(s.scratch[i])
	}

	if err := s.enc.Write(s.intBuf); err != nil {
		return 0, fmt.Errorf("failed to write capture data: %w", err)
	}

	s.cons.AddFramesWritten(uint64(frames))
	if m != nil {
		m.RecordWrite(uint64(samples) * 2)
	}
	return frames, nil
}

// close flushes any remaining frames and finalizes the WAV header.
func (s *captureSink) close(m *Metrics) error {
	_, flushErr := s.flush(m)
	if err := s.enc.Close(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("failed to finalize capture file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close capture file: %w", err)
	}
	return flushErr
}

// clampPCM16 converts a float sample in [-1, 1] to a 16-bit integer,
// saturating out-of-range input.
func clampPCM16(v float32) int {
	scaled := int(v * 32767)
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return scaled
}
