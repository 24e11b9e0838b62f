package node

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// decodeDoc parses a response body into a loosely-typed document, capped
// at maxBytes. This mirrors the embedded source's use of a dynamically
// keyed JSON document rather than a single fixed struct -- the Hub's
// responses carry multiple alias keys for the same field (node_id vs
// canonical_node_id, expires_at vs session_expires_at) that a rigid
// struct would force us to duplicate per endpoint.
//
// A body longer than maxBytes is truncated before parsing; per spec §4.2
// that truncation does not itself fail the request, it just makes the
// document parse-failable, which this function reports as an error like
// any other malformed document.
func decodeDoc(body []byte, maxBytes int) (map[string]interface{}, error) {
	if maxBytes > 0 && len(body) > maxBytes {
		body = body[:maxBytes]
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// encodeDoc marshals v and rejects the result if it would overflow the
// frame/response budget, instead of silently truncating an outbound frame.
func encodeDoc(v interface{}, maxBytes int) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if maxBytes > 0 && len(b) > maxBytes {
		return nil, fmt.Errorf("encoded document %d bytes exceeds cap %d", len(b), maxBytes)
	}
	return b, nil
}

func docString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func docInt(m map[string]interface{}, keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int(t), true
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func docBool(m map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

// docSlice extracts a []interface{} (e.g. the "commands" array) if present.
func docSlice(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key]; ok {
		if s, ok := v.([]interface{}); ok {
			return s
		}
	}
	return nil
}

// capabilitiesHash is the rolling fingerprint from spec §4.1.1: h = h*31 + byte
// over the concatenated capability strings, hex-encoded. It matches the
// original firmware's capabilitiesHash() algorithm byte for byte.
func capabilitiesHash(caps []string) string {
	var h uint32
	for _, c := range caps {
		for i := 0; i < len(c); i++ {
			h = h*31 + uint32(c[i])
		}
	}
	return fmt.Sprintf("%08x", h)
}

func randomNonce() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
