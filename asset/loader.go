package asset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// ErrUnsupportedFormat is returned for file extensions no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Load decodes the audio file at path into an in-memory asset. The format
// is selected by file extension: .wav, .aiff/.aif, .mp3 and .ogg are
// supported.
func Load(path string) (*Asset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return loadWAV(path)
	case ".aiff", ".aif":
		return loadAIFF(path)
	case ".mp3":
		return loadMP3(path)
	case ".ogg", ".oga":
		return loadOgg(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func loadWAV(path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV data: %w", err)
	}
	return fromIntBuffer(buf.Data, buf.Format.NumChannels, int(decoder.BitDepth),
		float64(buf.Format.SampleRate)), nil
}

func loadAIFF(path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	decoder := aiff.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid AIFF file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode AIFF data: %w", err)
	}
	return fromIntBuffer(buf.Data, buf.Format.NumChannels, int(decoder.BitDepth),
		float64(buf.Format.SampleRate)), nil
}

func loadMP3(path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 data: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo PCM.
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to read MP3 stream: %w", err)
	}

	frames := len(raw) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(raw[i*4]) | uint16(raw[i*4+1])<<8)
		r := int16(uint16(raw[i*4+2]) | uint16(raw[i*4+3])<<8)
		left[i] = float32(l) / 32768.0
		right[i] = float32(r) / 32768.0
	}
	return FromPlanar([][]float32{left, right}, float64(decoder.SampleRate())), nil
}

func loadOgg(path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	samples, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis data: %w", err)
	}
	return FromInterleaved(samples, format.Channels, float64(format.SampleRate)), nil
}

// fromIntBuffer converts go-audio integer PCM to a float32 asset.
func fromIntBuffer(data []int, channels, bitDepth int, sampleRate float64) *Asset {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	floats := make([]float32, len(data))
	for i, v := range data {
		floats[i] = float32(float64(v) * scale)
	}
	return FromInterleaved(floats, channels, sampleRate)
}
