package model

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Status is the confirmation lifecycle of a checkpoint on L1. Values are
// ordered: a checkpoint only ever moves to a higher status.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusConfirmed
	StatusFinalized
)

var statusNames = [...]string{
	StatusUnknown:   "-",
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusFinalized: "Finalized",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}

	return "-"
}

// ParseStatus accepts both the stored form ("Pending") and the wire form
// ("pending"). "-" and "unknown" map to StatusUnknown.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "-", "unknown":
		return StatusUnknown, nil
	case "pending":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "finalized":
		return StatusFinalized, nil
	default:
		return StatusUnknown, errors.Errorf("invalid status: %q", s)
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

// Value stores the status as its display string.
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *Status) Scan(src interface{}) error {
	var str string

	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case nil:
		*s = StatusUnknown
		return nil
	default:
		return errors.Errorf("cannot scan %T into Status", src)
	}

	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}
