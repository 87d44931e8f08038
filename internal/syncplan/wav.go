package syncplan

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// waveFile is the minimal decoded representation of a canonical
// mono/stereo 16-bit PCM WAV file this package needs to locate the sync
// tone. It is not a general-purpose WAV reader — it only understands the
// canonical fmt/data chunk layout ffmpeg writes for the archived audio
// format.
type waveFile struct {
	SampleRate int
	Channels   int
	Samples    []float64 // mono-downmixed, normalized to [-1, 1]
}

func readWaveFile(path string) (*waveFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("syncplan: open %s: %w", path, err)
	}
	defer f.Close()

	var riffHeader [12]byte
	if _, err := io.ReadFull(f, riffHeader[:]); err != nil {
		return nil, fmt.Errorf("syncplan: read RIFF header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("syncplan: %s is not a RIFF/WAVE file", path)
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcmData       []byte
	)

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(f, chunkHeader[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("syncplan: read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, fmt.Errorf("syncplan: read fmt chunk: %w", err)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			pcmData = make([]byte, chunkSize)
			if _, err := io.ReadFull(f, pcmData); err != nil {
				return nil, fmt.Errorf("syncplan: read data chunk: %w", err)
			}
		default:
			if _, err := io.CopyN(io.Discard, f, int64(chunkSize)); err != nil {
				return nil, fmt.Errorf("syncplan: skip chunk %s: %w", chunkID, err)
			}
		}
		if chunkSize%2 == 1 { // chunks are word-aligned
			f.Seek(1, io.SeekCurrent)
		}
	}

	if bitsPerSample != 16 {
		return nil, fmt.Errorf("syncplan: %s: unsupported bit depth %d (want 16)", path, bitsPerSample)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("syncplan: %s: invalid channel count", path)
	}

	frameCount := len(pcmData) / (2 * channels)
	samples := make([]float64, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			v := int16(binary.LittleEndian.Uint16(pcmData[off : off+2]))
			sum += int32(v)
		}
		samples[i] = float64(sum) / float64(channels) / 32768.0
	}

	return &waveFile{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
}
