package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// DefaultPCMRate is the sample rate assumed for headerless 16-bit PCM,
// which is what Gemini speech returns.
const DefaultPCMRate = 24000

var (
	ErrEmptyAudio       = errors.New("audio: no audio data")
	ErrUnsupportedAudio = errors.New("audio: unsupported format")
)

// Clip is decoded, replayable audio held in memory.
type Clip struct {
	buf *beep.Buffer
}

// NewClip buffers everything s produces.
func NewClip(format beep.Format, s beep.Streamer) *Clip {
	buf := beep.NewBuffer(format)
	buf.Append(s)
	return &Clip{buf: buf}
}

func (c *Clip) Format() beep.Format {
	return c.buf.Format()
}

func (c *Clip) Len() int {
	return c.buf.Len()
}

func (c *Clip) Duration() time.Duration {
	return c.buf.Format().SampleRate.D(c.buf.Len())
}

// Streamer returns a fresh streamer positioned at the start of the clip.
func (c *Clip) Streamer() beep.StreamSeeker {
	return c.buf.Streamer(0, c.buf.Len())
}

// Decode turns encoded bytes into a Clip. mimeType may be empty, in which
// case the container is sniffed from the leading bytes.
func Decode(data []byte, mimeType string) (*Clip, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	kind, rate, err := classify(data, mimeType)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "wav":
		s, format, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode WAV: %w", err)
		}
		defer s.Close()
		return NewClip(format, s), nil

	case "mp3":
		s, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode MP3: %w", err)
		}
		defer s.Close()
		return NewClip(format, s), nil

	default:
		format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 1, Precision: 2}
		return NewClip(format, &pcmStreamer{data: data}), nil
	}
}

// classify picks the decoder. Headerless PCM is only accepted when the MIME
// type says so, since any byte string would "play" as PCM.
func classify(data []byte, mimeType string) (string, int, error) {
	if strings.TrimSpace(mimeType) != "" {
		mediaType, params, err := mime.ParseMediaType(mimeType)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %q", ErrUnsupportedAudio, mimeType)
		}
		switch strings.ToLower(mediaType) {
		case "audio/wav", "audio/x-wav", "audio/wave":
			return "wav", 0, nil
		case "audio/mpeg", "audio/mp3":
			return "mp3", 0, nil
		case "audio/l16", "audio/pcm":
			rate := DefaultPCMRate
			if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
				rate = r
			}
			return "pcm", rate, nil
		}
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedAudio, mediaType)
	}

	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav", 0, nil
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3", 0, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3", 0, nil
	}
	return "", 0, fmt.Errorf("%w: unrecognised container", ErrUnsupportedAudio)
}

// pcmStreamer streams signed 16-bit little-endian mono samples.
type pcmStreamer struct {
	data []byte
	pos  int
}

func (p *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if p.pos+2 > len(p.data) {
			break
		}
		v := float64(int16(binary.LittleEndian.Uint16(p.data[p.pos:]))) / 32768
		samples[i][0], samples[i][1] = v, v
		p.pos += 2
		n++
	}
	return n, n > 0
}

func (p *pcmStreamer) Err() error {
	return nil
}

// EncodeWAV wraps signed 16-bit little-endian PCM in a RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	var b bytes.Buffer
	b.Grow(44 + len(pcm))
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(byteRate))
	binary.Write(&b, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&b, binary.LittleEndian, uint16(bitsPerSample))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}
