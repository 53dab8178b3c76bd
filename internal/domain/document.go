package domain

import "encoding/json"

// DefaultDocument is the skeleton served before anything has been committed.
func DefaultDocument() []byte {
	return []byte(`{"devices":[],"connections":[],"rooms":[]}`)
}

// The subsystem treats the document as opaque beyond this structural view:
// the three collections must be present, identifiers must be positive and
// unique, and cross-references must resolve. Everything else passes through
// untouched so the committed bytes stay byte-identical to what was submitted.
type documentShape struct {
	Devices     *[]deviceShape     `json:"devices"`
	Connections *[]connectionShape `json:"connections"`
	Rooms       *[]roomShape       `json:"rooms"`
}

type deviceShape struct {
	ID   *int64 `json:"id"`
	Room *int64 `json:"room"`
}

type connectionShape struct {
	From *int64 `json:"from"`
	To   *int64 `json:"to"`
}

type roomShape struct {
	ID *int64 `json:"id"`
}

// ValidateDocument checks a submitted document against the structural
// invariants. It returns a *ValidationError identifying the offending
// collection entry, or nil if the document is acceptable.
func ValidateDocument(raw []byte) error {
	var doc documentShape
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ValidationError{Reason: "document is not valid JSON"}
	}

	if doc.Devices == nil {
		return &ValidationError{Reason: "missing required array: devices"}
	}
	if doc.Connections == nil {
		return &ValidationError{Reason: "missing required array: connections"}
	}
	if doc.Rooms == nil {
		return &ValidationError{Reason: "missing required array: rooms"}
	}

	rooms := make(map[int64]bool, len(*doc.Rooms))
	for i, room := range *doc.Rooms {
		if room.ID == nil {
			return &ValidationError{Collection: "rooms", Index: i, Field: "id", Reason: "missing identifier"}
		}
		if *room.ID <= 0 {
			return &ValidationError{Collection: "rooms", Index: i, Field: "id", Reason: "identifier must be positive"}
		}
		if rooms[*room.ID] {
			return &ValidationError{Collection: "rooms", Index: i, Field: "id", Reason: "duplicate identifier"}
		}
		rooms[*room.ID] = true
	}

	devices := make(map[int64]bool, len(*doc.Devices))
	for i, dev := range *doc.Devices {
		if dev.ID == nil {
			return &ValidationError{Collection: "devices", Index: i, Field: "id", Reason: "missing identifier"}
		}
		if *dev.ID <= 0 {
			return &ValidationError{Collection: "devices", Index: i, Field: "id", Reason: "identifier must be positive"}
		}
		if devices[*dev.ID] {
			return &ValidationError{Collection: "devices", Index: i, Field: "id", Reason: "duplicate identifier"}
		}
		devices[*dev.ID] = true

		if dev.Room != nil && !rooms[*dev.Room] {
			return &ValidationError{Collection: "devices", Index: i, Field: "room", Reason: "references unknown room"}
		}
	}

	for i, conn := range *doc.Connections {
		if conn.From == nil {
			return &ValidationError{Collection: "connections", Index: i, Field: "from", Reason: "missing device reference"}
		}
		if conn.To == nil {
			return &ValidationError{Collection: "connections", Index: i, Field: "to", Reason: "missing device reference"}
		}
		if !devices[*conn.From] {
			return &ValidationError{Collection: "connections", Index: i, Field: "from", Reason: "references unknown device"}
		}
		if !devices[*conn.To] {
			return &ValidationError{Collection: "connections", Index: i, Field: "to", Reason: "references unknown device"}
		}
	}

	return nil
}
