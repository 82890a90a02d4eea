package sqlite

import (
	"encoding/binary"
	"math"
)

// encodeVector packs a []float32 into a little-endian byte blob for
// storage in summary_embedding/context_embedding, the same raw-BLOB
// approach the teacher uses for its binary snapshot columns rather than
// a text-encoded format, avoiding per-row JSON overhead on the hot
// search path.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
