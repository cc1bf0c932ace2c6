package audio

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"sita/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zaf/g711"
)

func TestPCMBytesToWavBytesHeader(t *testing.T) {
	pcm := make([]byte, 320)
	wav, err := PCMBytesToWavBytes(pcm, 1, 16000)
	require.NoError(t, err)

	require.Len(t, wav, 44+320)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(320), binary.LittleEndian.Uint32(wav[40:44]))

	stripped, err := StripWAVHeaderIfPresent(wav)
	require.NoError(t, err)
	assert.Equal(t, pcm, stripped)
}

func TestPCMBytesToWavBytesRejectsBadInput(t *testing.T) {
	_, err := PCMBytesToWavBytes(nil, 1, 16000)
	assert.Error(t, err)
	_, err = PCMBytesToWavBytes([]byte{1, 2, 3}, 2, 16000)
	assert.Error(t, err)
	_, err = PCMBytesToWavBytes([]byte{1, 2}, 1, 0)
	assert.Error(t, err)
}

func TestULawRoundTripIsClose(t *testing.T) {
	samples := []int16{0, 1000, -1000, 12000, -32000}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	ulaw := g711.EncodeUlaw(pcm)
	require.Len(t, ulaw, len(samples))

	back := ULawBytesToPCM(ulaw)
	require.Len(t, back, len(pcm))
	for i, s := range samples {
		got := int16(binary.LittleEndian.Uint16(back[i*2:]))
		assert.InDelta(t, float64(s), float64(got), float64(abs(s))/16+16)
	}
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}

func TestPlayableWrapsULaw(t *testing.T) {
	data, format, err := Playable(core.AudioChunk{Data: make([]byte, 80), SampleRate: 8000, Format: core.ULAW})
	require.NoError(t, err)
	assert.Equal(t, core.WAV, format)
	assert.Len(t, data, 44+160)

	mp3 := []byte("ID3 fake")
	data, format, err = Playable(core.AudioChunk{Data: mp3, Format: core.MP3})
	require.NoError(t, err)
	assert.Equal(t, core.MP3, format)
	assert.Equal(t, mp3, data)
}

func TestGetPCMDurationSeconds(t *testing.T) {
	d, err := GetPCMDurationSeconds(make([]byte, 32000), 1, 16000)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 0.0001)
}

func TestCommandRecorderMissingProgram(t *testing.T) {
	r := NewCommandRecorder("definitely-not-a-recorder-binary -x", 16000)
	_, err := r.Record(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrNoMicrophone)
}

func TestCommandPlayerMissingProgram(t *testing.T) {
	p := NewCommandPlayer("definitely-not-a-player-binary {file}", nil)
	err := p.Play(context.Background(), core.AudioChunk{Data: []byte("x"), Format: core.MP3})
	assert.Error(t, err)
}
