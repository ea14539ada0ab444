package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errCodeType = errors.New("code must be a string or a non-negative integer")

// codeField accepts a code as a JSON string or as a JSON integer. Codes never
// start with a zero, so the integer form loses nothing.
type codeField string

// UnmarshalJSON accepts a string, a non-negative integer literal or null.
func (c *codeField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = codeField(s)
		return nil
	}
	if len(data) == 0 {
		return errCodeType
	}
	for _, b := range data {
		if b < '0' || b > '9' {
			return errCodeType
		}
	}
	*c = codeField(data)
	return nil
}
