package realtime

import (
	"io"
	"time"

	"github.com/smallnest/ringbuffer"
)

// AudioIO is the duplex audio path between a local device and the wire:
// device-rate PCM in, 24kHz PCM out to the server, and the reverse for
// playback. Both directions resample through blocking ring buffers.
type AudioIO struct {
	agentBuffer       *ringbuffer.RingBuffer
	userInputWriter   io.Writer // device microphone writes here
	userOutputReader  io.Reader // device speaker reads here
	agentInputReader  io.Reader // pump reads outbound chunks here
	agentOutputWriter io.Writer // decoded response audio lands here
}

// ClearOutputBuffer drops all pending playback audio, used on barge-in.
func (a *AudioIO) ClearOutputBuffer() {
	a.agentBuffer.Reset()
}

func NewAudioIO(userSampleRate int, latency time.Duration) *AudioIO {
	userBufferSize := getChunkSize(WireSampleRate, latency, bytesPerSample, 1) * 2
	userBuffer := ringbuffer.New(userBufferSize).SetBlocking(true)

	agentBufferSize := getChunkSize(WireSampleRate, 60*time.Second, bytesPerSample, 1) * 2
	agentBuffer := ringbuffer.New(agentBufferSize).SetBlocking(true)

	return &AudioIO{
		agentBuffer:      agentBuffer,
		agentInputReader: newChunkReader(userBuffer, WireSampleRate, latency),
		agentOutputWriter: &ResampleWriter{
			Sink:      agentBuffer,
			FromRate:  WireSampleRate,
			ToRate:    userSampleRate,
			Resampler: LinearResampler{},
		},
		userOutputReader: newChunkReader(agentBuffer, userSampleRate, latency),
		userInputWriter: &ResampleWriter{
			Sink:      userBuffer,
			FromRate:  userSampleRate,
			ToRate:    WireSampleRate,
			Resampler: LinearResampler{},
		},
	}
}

func newChunkReader(r io.Reader, sampleRate int, latency time.Duration) io.Reader {
	return NewFixedAudioChunkReader(r, sampleRate, latency, bytesPerSample, 1)
}
