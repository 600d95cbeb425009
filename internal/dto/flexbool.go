package dto

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexBool decodes the loose booleans browsers and forms send: true, 1, "1",
// "true" and "on" are true; anything else is false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("1")):
		*b = true
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = FlexBool(ParseFlexBool(s))
		return nil
	}
	*b = false
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) { return json.Marshal(bool(b)) }

// ParseFlexBool applies the FlexBool rules to a raw string.
func ParseFlexBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on":
		return true
	}
	return false
}

// String renders the canonical "1"/"0" form used in payment metadata.
func (b FlexBool) String() string {
	if b {
		return "1"
	}
	return "0"
}
