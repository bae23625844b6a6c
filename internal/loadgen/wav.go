package loadgen

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	sampleRate    = 8000
	bitsPerSample = 16
	toneHz        = 440
	toneAmplitude = 0.3
)

// ToneWAV returns a mono 16-bit PCM WAV holding ms milliseconds of a sine tone.
func ToneWAV(ms int) []byte {
	if ms <= 0 {
		ms = 1
	}
	samples := sampleRate * ms / 1000
	dataLen := samples * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	buf.WriteString("RIFF")
	le(&buf, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	// PCM, mono.
	le(&buf, uint32(16), uint16(1), uint16(1))
	le(&buf, uint32(sampleRate), uint32(sampleRate*bitsPerSample/8))
	le(&buf, uint16(bitsPerSample/8), uint16(bitsPerSample))
	buf.WriteString("data")
	le(&buf, uint32(dataLen))

	for i := 0; i < samples; i++ {
		v := toneAmplitude * math.Sin(2*math.Pi*toneHz*float64(i)/sampleRate)
		le(&buf, int16(v*math.MaxInt16))
	}
	return buf.Bytes()
}

// le appends fixed-size values in little-endian order. Writes to a
// bytes.Buffer cannot fail.
func le(buf *bytes.Buffer, vals ...any) {
	for _, v := range vals {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
}
