package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ListPortAudioDevices returns PortAudio input devices with default metadata.
func ListPortAudioDevices(_ context.Context) ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		defaultInput = nil
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.MaxInputChannels == 0 {
			continue
		}
		devices = append(devices, Device{
			ID:          info.Name,
			Description: info.HostApi.Name,
			State:       "running",
			Available:   true,
			Default:     defaultInput != nil && info.Name == defaultInput.Name,
		})
	}
	return devices, nil
}

// PortAudioCapture streams fixed-size PCM chunks from the default PortAudio
// input device.
type PortAudioCapture struct {
	device Device
	format Format

	stream *portaudio.Stream

	chunks chan Chunk
	stopCh chan struct{}
	done   chan struct{}

	stopOnce sync.Once
	stopErr  error
	bytes    atomic.Int64
}

// StartPortAudioCapture opens the default input device and starts a blocking
// read loop feeding Chunks.
func StartPortAudioCapture(ctx context.Context, format Format) (*PortAudioCapture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("resolve default input device: %w", err)
	}

	samplesPerChunk := format.ChunkBytes() / 2
	if samplesPerChunk == 0 {
		_ = portaudio.Terminate()
		return nil, errors.New("chunk size resolves to zero samples")
	}

	in := make([]int16, samplesPerChunk)
	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio stream: %w", err)
	}

	capture := &PortAudioCapture{
		device: Device{ID: defaultInput.Name, Description: defaultInput.HostApi.Name, Available: true, Default: true},
		format: format,
		stream: stream,
		chunks: make(chan Chunk, 128),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go capture.readLoop(in)

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *PortAudioCapture) Device() Device {
	return c.device
}

// Chunks returns the PCM stream as fixed-size sequenced chunks.
func (c *PortAudioCapture) Chunks() <-chan Chunk {
	return c.chunks
}

// BytesCaptured reports total bytes read from the device.
func (c *PortAudioCapture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop halts the read loop, releases the stream, and closes Chunks exactly once.
func (c *PortAudioCapture) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		<-c.done

		if err := c.stream.Stop(); err != nil {
			c.stopErr = fmt.Errorf("stop portaudio stream: %w", err)
		}
		if err := c.stream.Close(); err != nil && c.stopErr == nil {
			c.stopErr = fmt.Errorf("close portaudio stream: %w", err)
		}
		_ = portaudio.Terminate()

		close(c.chunks)
	})
	return c.stopErr
}

// readLoop blocks on stream reads and emits one chunk per full buffer.
func (c *PortAudioCapture) readLoop(in []int16) {
	defer close(c.done)

	var seq uint64
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			return
		}

		data := make([]byte, len(in)*2)
		for i, sample := range in {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(sample))
		}
		c.bytes.Add(int64(len(data)))

		select {
		case <-c.stopCh:
			return
		case c.chunks <- Chunk{Seq: seq, Data: data, CapturedAt: time.Now()}:
			seq++
		}
	}
}
