package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeErrorBody flattens an error response body into a single message.
// The service (and the proxies in front of it) produce several shapes:
//
//	"plain text"
//	{"detail": "message"}
//	{"detail": [{"msg": "..."}, {"message": "..."}]}
//	{"message": "message"}
//	["first", "second"]
//
// All of them collapse to one string. The function never fails: bodies it
// cannot make sense of become fallback.
func NormalizeErrorBody(body []byte, fallback string) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fallback
	}

	var payload interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		// Not JSON at all; use the raw text as-is.
		return string(trimmed)
	}

	if msg := flattenPayload(payload); msg != "" {
		return msg
	}
	return fallback
}

func flattenPayload(payload interface{}) string {
	switch p := payload.(type) {
	case string:
		return strings.TrimSpace(p)

	case map[string]interface{}:
		if detail, ok := p["detail"]; ok {
			if msg := flattenDetail(detail); msg != "" {
				return msg
			}
		}
		if msg, ok := p["message"].(string); ok {
			return strings.TrimSpace(msg)
		}
		return ""

	case []interface{}:
		return joinPrimitives(p)
	}
	return ""
}

// flattenDetail handles the "detail" value, which may be a plain string or a
// list of validation entries carrying "msg" or "message" keys.
func flattenDetail(detail interface{}) string {
	switch d := detail.(type) {
	case string:
		return strings.TrimSpace(d)

	case []interface{}:
		parts := make([]string, 0, len(d))
		for _, item := range d {
			switch entry := item.(type) {
			case map[string]interface{}:
				if msg, ok := entry["msg"].(string); ok && msg != "" {
					parts = append(parts, msg)
				} else if msg, ok := entry["message"].(string); ok && msg != "" {
					parts = append(parts, msg)
				}
			case string:
				parts = append(parts, entry)
			default:
				parts = append(parts, fmt.Sprint(entry))
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// joinPrimitives renders a top-level array of primitives ("; "-joined).
func joinPrimitives(items []interface{}) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			parts = append(parts, v)
		case float64, bool:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, "; ")
}
