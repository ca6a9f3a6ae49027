package validation

import (
	"encoding/json"
	"strconv"
)

// Timestamp accepts an epoch-millis value sent either as a JSON number or a
// string, which is how the confirmation page forwards the query parameter.
// The raw text is kept as received; parsing is deferred to the consumer so a
// garbage value can still travel through binding.
type Timestamp struct {
	raw string
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t.raw = s
		return nil
	}
	t.raw = string(b)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(t.raw, 10, 64); err == nil {
		return []byte(t.raw), nil
	}
	return json.Marshal(t.raw)
}

// String returns the raw value as received on the wire.
func (t Timestamp) String() string {
	return t.raw
}

// Int64 parses the timestamp; (0, false) on garbage.
func (t Timestamp) Int64() (int64, bool) {
	millis, err := strconv.ParseInt(t.raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return millis, true
}

// ConfirmRequest is the payload for POST /confirmar-sub. No field carries a
// `required` tag on purpose: a blank or missing token is a business-level
// rejection ({ok:false} at HTTP 200), not a transport error.
type ConfirmRequest struct {
	MainToken string    `json:"mainToken"`
	SubToken  string    `json:"subToken"`
	Timestamp Timestamp `json:"timestamp"`
}
