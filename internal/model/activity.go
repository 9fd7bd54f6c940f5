package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Direction is the direction of a call relative to the account
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// CallType is the outcome of a call. Values other than these are kept as-is.
type CallType string

const (
	CallAnswered CallType = "answered"
	CallMissed   CallType = "missed"
)

// ActivityID identifies an activity. The service may send it as a JSON string or
// number; both decode to the same string form.
type ActivityID string

func (id *ActivityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ActivityID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("activity id must be a string or number: %w", err)
	}
	*id = ActivityID(n.String())
	return nil
}

// MarshalJSON writes integer ids as JSON numbers, everything else as strings.
func (id ActivityID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil && !hasLeadingZero(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ActivityID) String() string {
	return string(id)
}

func hasLeadingZero(s string) bool {
	return len(s) > 1 && s[0] == '0'
}

// Activity represents a single logged call event
type Activity struct {
	ID         ActivityID `json:"id" yaml:"id"`
	From       string     `json:"from" yaml:"from"`
	To         string     `json:"to" yaml:"to"`
	Via        string     `json:"via" yaml:"via"`
	Direction  Direction  `json:"direction" yaml:"direction"`
	CallType   CallType   `json:"call_type" yaml:"call_type"`
	Duration   int        `json:"duration" yaml:"duration"`
	CreatedAt  string     `json:"created_at" yaml:"created_at"`
	IsArchived bool       `json:"is_archived" yaml:"is_archived"`
}

// CreatedTime parses CreatedAt.
func (a Activity) CreatedTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, a.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid created_at %q for activity %s: %w", a.CreatedAt, a.ID, err)
	}
	return t, nil
}

// IsInbound reports whether the caller dialled in.
func (a Activity) IsInbound() bool {
	return a.Direction == DirectionInbound
}

// Answered reports whether the call was picked up.
func (a Activity) Answered() bool {
	return a.CallType == CallAnswered
}

// CallIcon is the glyph class shown next to a call
type CallIcon int

const (
	IconMissed CallIcon = iota
	IconReceived
	IconPlaced
)

func (i CallIcon) String() string {
	switch i {
	case IconReceived:
		return "received"
	case IconPlaced:
		return "placed"
	default:
		return "missed"
	}
}

// Glyph is the terminal rendering of the icon.
func (i CallIcon) Glyph() string {
	switch i {
	case IconReceived:
		return "↙"
	case IconPlaced:
		return "↗"
	default:
		return "✗"
	}
}

// Icon maps (call_type, direction) to an icon. Only answered calls are
// distinguished by direction; every other call type is shown as missed.
func (a Activity) Icon() CallIcon {
	if a.CallType != CallAnswered {
		return IconMissed
	}
	if a.Direction == DirectionInbound {
		return IconReceived
	}
	return IconPlaced
}

// Summary returns the second line of a feed row, e.g. "you called +33 6 45 13 53 91".
func (a Activity) Summary() string {
	if a.Answered() && !a.IsInbound() {
		return "you called " + a.To
	}
	return "tried to call " + a.To
}

// FindByID returns the activity with the given id, or nil.
func FindByID(activities []Activity, id ActivityID) *Activity {
	for i := range activities {
		if activities[i].ID == id {
			return &activities[i]
		}
	}
	return nil
}
