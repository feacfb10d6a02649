// Package wavfile implements file-backed AudioEndpoint Devices for WAV
// and AIFF, wired to github.com/go-audio/wav and github.com/go-audio/aiff.
// Both codecs exercise the same endpoint.Device contract so the engine
// never needs to know which one backs a given FileSource/FileSink.
package wavfile

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Zopolis4/ecasound/buffer"
)

// Codec selects which file-format decoder/encoder backs the Device.
type Codec int

const (
	WAV Codec = iota
	AIFF
)

// decoder is the minimal surface both go-audio codecs share, letting
// Source stay codec-agnostic past construction.
type decoder interface {
	PCMBuffer(*goaudio.IntBuffer) (int, error)
}

// Source is a read-only file-backed endpoint.Device decoding to
// planar 32-bit float samples.
type Source struct {
	codec      Codec
	path       string
	file       *os.File
	decoder    decoder
	channels   int
	sampleRate int
	bitDepth   int
	bufsize    int
	ib         *goaudio.IntBuffer
}

// OpenSource opens path for reading with the given codec and engine
// buffersize.
func OpenSource(path string, codec Codec, bufsize int) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := &Source{codec: codec, path: path, file: f, bufsize: bufsize}
	switch codec {
	case WAV:
		d := wav.NewDecoder(f)
		if !d.IsValidFile() {
			f.Close()
			return nil, fmt.Errorf("wavfile: %s is not a valid wav file", path)
		}
		s.decoder = d
		s.channels = int(d.Format().NumChannels)
		s.sampleRate = int(d.SampleRate)
		s.bitDepth = int(d.BitDepth)
		s.ib = &goaudio.IntBuffer{
			Format:         d.Format(),
			SourceBitDepth: s.bitDepth,
		}
	case AIFF:
		d := aiff.NewDecoder(f)
		if !d.IsValidFile() {
			f.Close()
			return nil, fmt.Errorf("wavfile: %s is not a valid aiff file", path)
		}
		s.decoder = d
		s.channels = int(d.Format().NumChannels)
		s.sampleRate = int(d.SampleRate)
		s.bitDepth = int(d.BitDepth)
		s.ib = &goaudio.IntBuffer{
			Format:         d.Format(),
			SourceBitDepth: s.bitDepth,
		}
	default:
		f.Close()
		return nil, fmt.Errorf("wavfile: unknown codec %d", codec)
	}
	return s, nil
}

func (s *Source) Open() error  { return nil }
func (s *Source) Close() error { return s.file.Close() }

func (s *Source) Read(buf *buffer.Buffer) (int, error) {
	frames := buf.Frames()
	s.ib.Data = make([]int, frames*s.channels)
	n, err := s.decoder.PCMBuffer(s.ib)
	if err != nil && err != io.EOF {
		return 0, err
	}
	got := n / s.channels
	maxVal := float64(int64(1) << uint(s.bitDepth-1))
	for c := 0; c < buf.Channels() && c < s.channels; c++ {
		dst := buf.Channel(c)
		for i := 0; i < got; i++ {
			dst[i] = float32(float64(s.ib.Data[i*s.channels+c]) / maxVal)
		}
	}
	return got, nil
}

func (s *Source) Write(*buffer.Buffer) (int, error) {
	return 0, fmt.Errorf("wavfile: Source is read-only")
}

func (s *Source) Channels() int      { return s.channels }
func (s *Source) SampleRate() int    { return s.sampleRate }
func (s *Source) Buffersize() int    { return s.bufsize }
func (s *Source) LatencyFrames() int { return 0 }

// Seek repositions the source by reopening the underlying file and
// decoder and discarding frames up to the target position. This avoids
// depending on codec-specific seek APIs and is only ever invoked on
// file endpoints between iterations, never on the realtime path.
func (s *Source) Seek(frame int64) error {
	s.file.Close()
	fresh, err := OpenSource(s.path, s.codec, s.bufsize)
	if err != nil {
		return err
	}
	*s = *fresh
	discard := buffer.New(s.channels, s.bufsize, s.sampleRate)
	remaining := frame
	for remaining > 0 {
		n := s.bufsize
		if int64(n) > remaining {
			n = int(remaining)
			discard.ResizeFrames(n)
		}
		got, err := s.Read(discard)
		remaining -= int64(got)
		if got == 0 || err != nil {
			break
		}
	}
	return nil
}

// Sink is a write-only file-backed endpoint.Device encoding 32-bit
// float samples down to 16-bit PCM, in either WAV or AIFF container.
type Sink struct {
	file       *os.File
	wavEnc     *wav.Encoder
	aiffEnc    *aiff.Encoder
	channels   int
	sampleRate int
	bufsize    int
	ib         *goaudio.IntBuffer
}

// CreateSink creates path for writing with the given codec, channel
// count, sample rate and engine buffersize.
func CreateSink(path string, codec Codec, channels, sampleRate, bufsize int) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &Sink{file: f, channels: channels, sampleRate: sampleRate, bufsize: bufsize}
	format := &goaudio.Format{NumChannels: channels, SampleRate: sampleRate}
	s.ib = &goaudio.IntBuffer{Format: format, SourceBitDepth: 16}
	switch codec {
	case WAV:
		s.wavEnc = wav.NewEncoder(f, sampleRate, 16, channels, 1)
	case AIFF:
		s.aiffEnc = aiff.NewEncoder(f, sampleRate, 16, channels)
	default:
		f.Close()
		return nil, fmt.Errorf("wavfile: unknown codec %d", codec)
	}
	return s, nil
}

func (s *Sink) Open() error { return nil }

func (s *Sink) Close() error {
	var err error
	if s.wavEnc != nil {
		err = s.wavEnc.Close()
	} else {
		err = s.aiffEnc.Close()
	}
	if err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *Sink) Read(*buffer.Buffer) (int, error) {
	return 0, fmt.Errorf("wavfile: Sink is write-only")
}

func (s *Sink) Write(buf *buffer.Buffer) (int, error) {
	frames := buf.Frames()
	s.ib.Data = make([]int, 0, frames*s.channels)
	const maxVal = float64(1 << 15)
	for i := 0; i < frames; i++ {
		for c := 0; c < s.channels; c++ {
			var v float32
			if c < buf.Channels() {
				v = buf.Channel(c)[i]
			}
			s.ib.Data = append(s.ib.Data, int(float64(v)*maxVal))
		}
	}
	var err error
	if s.wavEnc != nil {
		err = s.wavEnc.Write(s.ib)
	} else {
		err = s.aiffEnc.Write(s.ib)
	}
	if err != nil {
		return 0, err
	}
	return frames, nil
}

func (s *Sink) Channels() int      { return s.channels }
func (s *Sink) SampleRate() int    { return s.sampleRate }
func (s *Sink) Buffersize() int    { return s.bufsize }
func (s *Sink) LatencyFrames() int { return 0 }

func (s *Sink) Seek(int64) error {
	return fmt.Errorf("wavfile: Sink seek not supported mid-stream")
}
