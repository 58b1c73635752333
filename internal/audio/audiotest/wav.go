// Package audiotest builds small WAV fixtures for tests.
package audiotest

import (
	"encoding/binary"
	"math"
)

func MakePCM16WAV(samples []int16, sampleRate int, channels int) []byte {
	const bytesPerSample = 2
	const fmtChunkSize = 16

	dataSize := len(samples) * bytesPerSample
	out := make([]byte, 0, 12+8+fmtChunkSize+8+dataSize)

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+(8+fmtChunkSize)+(8+dataSize)))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, fmtChunkSize)
	out = binary.LittleEndian.AppendUint16(out, 1)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*channels*bytesPerSample))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels*bytesPerSample))
	out = binary.LittleEndian.AppendUint16(out, 16)

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}

	return out
}

// Tone returns n samples of a sine wave at the given amplitude (0..1).
func Tone(n, sampleRate int, freq, amplitude float64) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return samples
}
