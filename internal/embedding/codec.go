package embedding

import (
	"strconv"
	"strings"
)

// Serialize encodes a vector as comma-separated decimals with 6 digits of
// precision, trailing zeros (and a bare trailing dot) trimmed. An empty
// vector encodes as the empty string.
func Serialize(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}
	parts := make([]string, len(vec))
	for i, v := range vec {
		s := strconv.FormatFloat(float64(v), 'f', 6, 64)
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
		if s == "" || s == "-" {
			s = "0"
		}
		parts[i] = s
	}
	return strings.Join(parts, ",")
}

// Deserialize decodes a vector produced by Serialize. An empty string yields
// an empty vector. Unparseable components decode as 0.
func Deserialize(s string) []float32 {
	if s == "" {
		return []float32{}
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			f = 0
		}
		vec[i] = float32(f)
	}
	return vec
}
