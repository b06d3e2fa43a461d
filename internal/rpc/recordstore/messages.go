package recordstore

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Request is the common request envelope. Unused fields stay empty.
type Request struct {
	Table      string         `json:"table"`
	ID         string         `json:"id,omitempty"`
	OwnerField string         `json:"owner_field,omitempty"`
	Owner      string         `json:"owner,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

type RecordReply struct {
	Record map[string]any `json:"record"`
}

type RecordsReply struct {
	Records []map[string]any `json:"records"`
}

type StatusReply struct {
	Status string `json:"status"`
}

// Encode converts any JSON-marshalable value whose encoding is an object
// into a Struct.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return s, nil
}

// Decode fills v from s. Numbers come back as float64 in maps.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
