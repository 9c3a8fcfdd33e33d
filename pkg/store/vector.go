package store

import (
	"bytes"
	"encoding/binary"
)

// encodeVector packs a float32 slice into the little-endian blob layout
// sqlite-vec expects, so accelerated and plain builds share storage.
func encodeVector(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodeVector unpacks a stored embedding blob. Returns nil for malformed
// blobs so callers can skip them.
func decodeVector(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec); err != nil {
		return nil
	}
	return vec
}
