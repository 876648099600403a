package audio

import (
	"bytes"
	"encoding/binary"
	"time"

	"moodcheck/internal/domain"
)

const bytesPerSample = 2

// Clip wraps raw s16le PCM in a WAV container so remote providers can decode it.
func Clip(pcm []byte, sampleRate, channels int) domain.AudioClip {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return domain.AudioClip{
		Data:     EncodeWAV(pcm, sampleRate, channels),
		MIMEType: "audio/wav",
		Duration: PCMDuration(len(pcm), sampleRate, channels),
	}
}

// PCMDuration is the playback length of n bytes of 16-bit PCM.
func PCMDuration(n, sampleRate, channels int) time.Duration {
	frameBytes := bytesPerSample * channels
	if n <= 0 || sampleRate <= 0 || frameBytes <= 0 {
		return 0
	}
	frames := int64(n / frameBytes)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// EncodeWAV prepends a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	blockAlign := uint16(channels * bytesPerSample)
	byteRate := uint32(sampleRate) * uint32(blockAlign)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, byteRate)
	_ = binary.Write(&buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bytesPerSample*8))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
