package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperModelPath is set once at startup via Configure; audio/* documents
// are rejected until a model is configured.
var (
	whisperModelPath string
	whisperMu        sync.Mutex
	whisperModel     whisper.Model
)

// Configure wires process-wide parser settings decided at startup, mirroring
// the one-time device-selection pattern used for model hosts.
func Configure(whisperModelFile string) {
	whisperMu.Lock()
	defer whisperMu.Unlock()
	whisperModelPath = whisperModelFile
	whisperModel = nil
}

func loadedWhisperModel() (whisper.Model, error) {
	whisperMu.Lock()
	defer whisperMu.Unlock()
	if whisperModelPath == "" {
		return nil, fmt.Errorf("audio transcription not configured")
	}
	if whisperModel == nil {
		m, err := whisper.New(whisperModelPath)
		if err != nil {
			return nil, fmt.Errorf("load whisper model: %w", err)
		}
		whisperModel = m
	}
	return whisperModel, nil
}

// parseAudio transcribes a 16-bit integer PCM or 32-bit IEEE float WAV file
// to plain text via whisper.cpp.
func parseAudio(data []byte) (string, error) {
	model, err := loadedWhisperModel()
	if err != nil {
		return "", err
	}

	samples, err := decodeWAV(data)
	if err != nil {
		return "", err
	}

	ctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new whisper context: %w", err)
	}
	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	var sb strings.Builder
	for {
		segment, err := ctx.NextSegment()
		if err != nil {
			break
		}
		sb.WriteString(strings.TrimSpace(segment.Text))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// decodeWAV converts a WAV byte stream to mono float32 samples in [-1, 1].
// Whisper expects 16kHz mono; non-16kHz input is accepted as-is since the
// caller (ingest) is not in a position to resample.
func decodeWAV(data []byte) ([]float32, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("wav data too short")
	}
	var header wavHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("invalid wav file")
	}

	audioData := make([]byte, header.Subchunk2Size)
	if _, err := io.ReadFull(r, audioData); err != nil {
		return nil, fmt.Errorf("read audio data: %w", err)
	}

	var samples []float32
	switch header.BitsPerSample {
	case 16:
		for i := 0; i+1 < len(audioData); i += 2 {
			s := int16(binary.LittleEndian.Uint16(audioData[i : i+2]))
			samples = append(samples, float32(s)/32768.0)
		}
	case 32:
		for i := 0; i+3 < len(audioData); i += 4 {
			bits := binary.LittleEndian.Uint32(audioData[i : i+4])
			samples = append(samples, math.Float32frombits(bits))
		}
	default:
		return nil, fmt.Errorf("unsupported bits per sample: %d", header.BitsPerSample)
	}

	if header.NumChannels == 2 {
		mono := make([]float32, len(samples)/2)
		for i := range mono {
			mono[i] = (samples[i*2] + samples[i*2+1]) / 2.0
		}
		samples = mono
	}
	return samples, nil
}
