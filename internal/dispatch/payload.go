package dispatch

import (
	"errors"
	"strconv"
	"strings"

	"vidlink/internal/ladder"
)

// ErrBadPayload is returned for button data that does not match either
// payload shape.
var ErrBadPayload = errors.New("dispatch: malformed button payload")

const (
	payloadSep = "|"
	historyTag = "history"
)

// PayloadKind distinguishes the two button payload shapes.
type PayloadKind int

const (
	// PayloadSelection is format_id|correlation_id[|label].
	PayloadSelection PayloadKind = iota
	// PayloadHistory is history|page_index.
	PayloadHistory
)

// Payload is a decoded button press.
type Payload struct {
	Kind          PayloadKind
	FormatID      string
	CorrelationID string
	// Label is empty when the sender omitted it.
	Label ladder.Label
	Page  int
}

// EncodeSelection builds the payload for a format button.
func EncodeSelection(formatID, correlationID string, label ladder.Label) string {
	if label == "" {
		return formatID + payloadSep + correlationID
	}
	return formatID + payloadSep + correlationID + payloadSep + string(label)
}

// EncodeHistory builds the payload for a history navigation button.
func EncodeHistory(page int) string {
	return historyTag + payloadSep + strconv.Itoa(page)
}

// ParsePayload decodes button data, validating the field count before any
// field is used.
func ParsePayload(data string) (Payload, error) {
	parts := strings.Split(data, payloadSep)

	if parts[0] == historyTag {
		if len(parts) != 2 {
			return Payload{}, ErrBadPayload
		}
		page, err := strconv.Atoi(parts[1])
		if err != nil || page < 0 {
			return Payload{}, ErrBadPayload
		}
		return Payload{Kind: PayloadHistory, Page: page}, nil
	}

	if len(parts) < 2 || len(parts) > 3 {
		return Payload{}, ErrBadPayload
	}
	for _, p := range parts {
		if p == "" {
			return Payload{}, ErrBadPayload
		}
	}

	p := Payload{
		Kind:          PayloadSelection,
		FormatID:      parts[0],
		CorrelationID: parts[1],
	}
	if len(parts) == 3 {
		label, err := ladder.ParseLabel(parts[2])
		if err != nil {
			return Payload{}, ErrBadPayload
		}
		p.Label = label
	}
	return p, nil
}
