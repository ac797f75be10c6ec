package validator

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// SpoofableHeaders are proxy headers a client can forge.
var SpoofableHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// PollutingKeys are object keys removed from request bodies at any depth.
var PollutingKeys = []string{"__proto__", "constructor", "prototype"}

// StripSpoofableHeaders removes client-supplied proxy headers in place.
func StripSpoofableHeaders(h http.Header) {
	for _, name := range SpoofableHeaders {
		h.Del(name)
	}
}

// SanitizeJSON deletes prototype-polluting keys from a JSON document.
// Bodies that are not JSON, or contain nothing to remove, are returned unchanged.
func SanitizeJSON(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return body, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return body, nil
	}
	if !scrub(doc) {
		return body, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// scrub walks doc and reports whether anything was removed.
func scrub(doc any) bool {
	removed := false
	switch v := doc.(type) {
	case map[string]any:
		for _, key := range PollutingKeys {
			if _, ok := v[key]; ok {
				delete(v, key)
				removed = true
			}
		}
		for _, child := range v {
			if scrub(child) {
				removed = true
			}
		}
	case []any:
		for _, child := range v {
			if scrub(child) {
				removed = true
			}
		}
	}
	return removed
}
