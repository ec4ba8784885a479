package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrNotJSONObject = errors.New("legacy message must be a JSON object")

// LegacyMessage is one element of a conversation_data array. Tenants wrote
// these arrays client-side for years, so elements carry arbitrary extra keys.
// Only text, image and isUser are interpreted; every other key round-trips
// through unmarshal/marshal untouched.
type LegacyMessage struct {
	fields map[string]json.RawMessage
}

func NewLegacyMessage(text string, isUser bool, at time.Time) LegacyMessage {
	textJSON, _ := json.Marshal(text)
	isUserJSON, _ := json.Marshal(isUser)
	return LegacyMessage{fields: map[string]json.RawMessage{
		"text":      textJSON,
		"isUser":    isUserJSON,
		"timestamp": json.RawMessage(strconv.FormatInt(at.UnixMilli(), 10)),
	}}
}

func (m *LegacyMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrNotJSONObject
	}
	if raw == nil {
		return ErrNotJSONObject
	}
	if v, ok := raw["text"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("legacy message key \"text\": expected string, got %s", v)
		}
	}
	if v, ok := raw["image"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("legacy message key \"image\": expected string, got %s", v)
		}
	}
	if v, ok := raw["isUser"]; ok {
		var b *bool
		if err := json.Unmarshal(v, &b); err != nil {
			return fmt.Errorf("legacy message key \"isUser\": expected bool, got %s", v)
		}
	}
	m.fields = raw
	return nil
}

func (m LegacyMessage) MarshalJSON() ([]byte, error) {
	if m.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.fields)
}

// Text returns the message text. ok is false when the key is absent or null.
func (m LegacyMessage) Text() (string, bool) {
	return m.stringKey("text")
}

// Image returns the inline image payload, if any.
func (m LegacyMessage) Image() (string, bool) {
	return m.stringKey("image")
}

// IsUser reports whether the visitor (rather than the bot) wrote the message.
// ok is false when the element never carried the key.
func (m LegacyMessage) IsUser() (bool, bool) {
	v, present := m.fields["isUser"]
	if !present {
		return false, false
	}
	var b *bool
	if err := json.Unmarshal(v, &b); err != nil || b == nil {
		return false, false
	}
	return *b, true
}

// Get exposes any key verbatim, interpreted or not.
func (m LegacyMessage) Get(key string) (json.RawMessage, bool) {
	v, ok := m.fields[key]
	return v, ok
}

// Redact overwrites the text with the sentinel and nulls the image while
// leaving every other key in place. It reports whether anything changed.
// Redacting an already redacted element is a no-op only if the image was
// already null, so callers should treat repeat runs as safe, not as free.
func (m *LegacyMessage) Redact(sentinel string) bool {
	if m.fields == nil {
		return false
	}
	changed := false
	if v, ok := m.fields["text"]; ok {
		sentinelJSON, _ := json.Marshal(sentinel)
		if string(v) != string(sentinelJSON) {
			m.fields["text"] = sentinelJSON
			changed = true
		}
	}
	if v, ok := m.fields["image"]; ok && string(v) != "null" {
		m.fields["image"] = json.RawMessage("null")
		changed = true
	}
	return changed
}

func (m LegacyMessage) stringKey(key string) (string, bool) {
	v, present := m.fields[key]
	if !present {
		return "", false
	}
	var s *string
	if err := json.Unmarshal(v, &s); err != nil || s == nil {
		return "", false
	}
	return *s, true
}
