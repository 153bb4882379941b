package memory

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// encodeEmbedding packs a float32 vector into a little-endian BLOB. There is
// no native vector column in modernc.org/sqlite (it is a pure-Go driver and
// cannot load the cgo-only sqlite-vec extension), so embeddings are stored
// as raw bytes and compared in Go by SemanticSearch.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func encodeJSON(v map[string]any) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", jerr.Wrap(jerr.BadArgs, "memory", "encodeJSON", err)
	}
	return string(b), nil
}

func decodeJSON(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, jerr.Wrap(jerr.Invariant, "memory", "decodeJSON", err)
	}
	return v, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
