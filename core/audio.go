package core

import "time"

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // Pulse-code modulation format.
	ULAW                            // μ-law encoding format.
	MP3
	WAV
)

func (f AudioEncodingFormat) Extension() string {
	switch f {
	case MP3:
		return ".mp3"
	case WAV:
		return ".wav"
	case ULAW:
		return ".ulaw"
	default:
		return ".pcm"
	}
}

type AudioChunk struct {
	Data       []byte              // Raw audio data.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
	Timestamp  time.Time
}

func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 || ac.Channels == 0 {
		return 0.0
	}
	var bytesPerSample int
	switch ac.Format {
	case PCM:
		bytesPerSample = 2
	case ULAW:
		bytesPerSample = 1
	default:
		return 0.0 // container formats carry their own timing
	}
	totalSamples := len(ac.Data) / (bytesPerSample * ac.Channels)
	return float64(totalSamples) / float64(ac.SampleRate)
}
