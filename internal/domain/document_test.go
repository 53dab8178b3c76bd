package domain

import (
	"errors"
	"testing"
)

func TestDefaultDocument_IsValid(t *testing.T) {
	if err := ValidateDocument(DefaultDocument()); err != nil {
		t.Errorf("default document rejected: %v", err)
	}
}

func TestValidateDocument_AcceptsUnknownFields(t *testing.T) {
	// Validation is structural only; extra fields at any level pass through.
	doc := `{
		"devices": [{"id": 1, "name": "sw1", "vendor": "cisco", "room": 5}],
		"connections": [{"from": 1, "to": 1, "kind": "loopback"}],
		"rooms": [{"id": 5, "floor": 2}],
		"meta": {"revision": 7}
	}`
	if err := ValidateDocument([]byte(doc)); err != nil {
		t.Errorf("document rejected: %v", err)
	}
}

func TestValidateDocument_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		collection string
		index      int
		field      string
	}{
		{
			name: "missing devices array",
			doc:  `{"connections":[],"rooms":[]}`,
		},
		{
			name: "missing connections array",
			doc:  `{"devices":[],"rooms":[]}`,
		},
		{
			name: "missing rooms array",
			doc:  `{"devices":[],"connections":[]}`,
		},
		{
			name: "devices is null",
			doc:  `{"devices":null,"connections":[],"rooms":[]}`,
		},
		{
			name:       "device without id",
			doc:        `{"devices":[{"name":"sw1"}],"connections":[],"rooms":[]}`,
			collection: "devices", index: 0, field: "id",
		},
		{
			name:       "zero device id",
			doc:        `{"devices":[{"id":0}],"connections":[],"rooms":[]}`,
			collection: "devices", index: 0, field: "id",
		},
		{
			name:       "negative room id",
			doc:        `{"devices":[],"connections":[],"rooms":[{"id":-3}]}`,
			collection: "rooms", index: 0, field: "id",
		},
		{
			name:       "duplicate device id",
			doc:        `{"devices":[{"id":1},{"id":1}],"connections":[],"rooms":[]}`,
			collection: "devices", index: 1, field: "id",
		},
		{
			name:       "duplicate room id",
			doc:        `{"devices":[],"connections":[],"rooms":[{"id":2},{"id":2}]}`,
			collection: "rooms", index: 1, field: "id",
		},
		{
			name:       "device references unknown room",
			doc:        `{"devices":[{"id":1,"room":9}],"connections":[],"rooms":[]}`,
			collection: "devices", index: 0, field: "room",
		},
		{
			name:       "connection from unknown device",
			doc:        `{"devices":[{"id":1}],"connections":[{"from":9,"to":1}],"rooms":[]}`,
			collection: "connections", index: 0, field: "from",
		},
		{
			name:       "connection to unknown device",
			doc:        `{"devices":[{"id":1}],"connections":[{"from":1,"to":9}],"rooms":[]}`,
			collection: "connections", index: 0, field: "to",
		},
		{
			name:       "second connection is the broken one",
			doc:        `{"devices":[{"id":1},{"id":2}],"connections":[{"from":1,"to":2},{"from":2,"to":7}],"rooms":[]}`,
			collection: "connections", index: 1, field: "to",
		},
		{
			name:       "connection missing endpoint",
			doc:        `{"devices":[{"id":1}],"connections":[{"from":1}],"rooms":[]}`,
			collection: "connections", index: 0, field: "to",
		},
		{
			name: "not json at all",
			doc:  `devices: []`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected a validation error")
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T", err)
			}
			if vErr.Collection != tt.collection || vErr.Field != tt.field {
				t.Errorf("location = %s/%s, want %s/%s", vErr.Collection, vErr.Field, tt.collection, tt.field)
			}
			if tt.collection != "" && vErr.Index != tt.index {
				t.Errorf("index = %d, want %d", vErr.Index, tt.index)
			}
		})
	}
}

func TestValidateDocument_LeavesPayloadUntouched(t *testing.T) {
	// Validation must not normalize: the caller persists the raw bytes.
	raw := []byte(`{"devices": [ {"id":1, "z":"last"} ], "connections": [], "rooms": []}`)
	before := string(raw)

	if err := ValidateDocument(raw); err != nil {
		t.Fatalf("document rejected: %v", err)
	}
	if string(raw) != before {
		t.Error("payload mutated during validation")
	}
}
