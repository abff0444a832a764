package stt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	pcm := make([]byte, 320)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(i*7)))
	}

	data, err := EncodeWAV(pcm, 16000, 1)
	require.NoError(t, err)

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, 16000, buf.Format.SampleRate)
	require.Equal(t, 1, buf.Format.NumChannels)
	require.Len(t, buf.Data, len(pcm)/2)
	require.Equal(t, int(int16(binary.LittleEndian.Uint16(pcm))), buf.Data[0])
}

func TestEncodeWAVRejectsBadFormat(t *testing.T) {
	_, err := EncodeWAV(nil, 0, 1)
	require.Error(t, err)
	_, err = EncodeWAV(nil, 16000, 0)
	require.Error(t, err)
}

func TestPCMToFloat32Mono(t *testing.T) {
	pcm := halfScalePair()

	samples := PCMToFloat32(pcm, 1)
	require.Len(t, samples, 2)
	require.InDelta(t, 0.5, samples[0], 0.001)
	require.InDelta(t, -0.5, samples[1], 0.001)
}

func TestPCMToFloat32StereoAverages(t *testing.T) {
	pcm := halfScalePair()

	samples := PCMToFloat32(pcm, 2)
	require.Len(t, samples, 1)
	require.InDelta(t, 0.0, samples[0], 0.001)
}

// halfScalePair encodes one +0.5 and one -0.5 int16 sample.
func halfScalePair() []byte {
	pcm := make([]byte, 4)
	pos, neg := int16(16384), int16(-16384)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(pos))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(neg))
	return pcm
}
