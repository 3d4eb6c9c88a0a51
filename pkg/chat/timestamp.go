package chat

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Timestamp is a time.Time that travels over the wire as Unix milliseconds,
// the format the chat server stores.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: time.UnixMilli(t.UnixMilli())}
}

func Now() Timestamp {
	return NewTimestamp(time.Now())
}

func UnixMilli(ms int64) Timestamp {
	return Timestamp{Time: time.UnixMilli(ms)}
}

func (t Timestamp) Millis() int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(t.Millis(), 10)), nil
}

// UnmarshalJSON accepts milliseconds (integer or float), RFC3339 strings and null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			*t = UnixMilli(ms)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return errors.Wrapf(err, "invalid timestamp %q", s)
		}
		*t = NewTimestamp(parsed)
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return errors.Wrapf(err, "invalid timestamp %s", string(b))
	}
	*t = UnixMilli(int64(f))
	return nil
}

func (Timestamp) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "integer",
		Description: "Unix time in milliseconds",
	}
}
