package jsonutil

import (
	"bytes"
	"encoding/json"
)

// FlexibleStringValue converts a json.RawMessage to a string, accepting a bare
// number or boolean where a string is expected. Numbers keep their exact
// source text, so large integer ids survive. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var numVal json.Number
	if err := dec.Decode(&numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		if boolVal {
			return "true"
		}
		return "false"
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleString is a string field that also decodes from a JSON number or
// boolean, e.g. job ids exported as integers.
type FlexibleString string

func (s *FlexibleString) UnmarshalJSON(data []byte) error {
	*s = FlexibleString(FlexibleStringValue(data))
	return nil
}
