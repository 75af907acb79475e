package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bakeline/ordersync/internal/domain"
)

var ErrUnknownEvent = errors.New("unknown event name")

// SchemaError reports a payload that failed its event schema.
type SchemaError struct {
	Event  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("payload for %s rejected: %s", e.Event, e.Reason)
}

// Frame is the raw wire shape of one push-channel message in either
// direction.
type Frame struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is a validated inbound frame. Key is the server-supplied eventId
// when present; otherwise a synthesized identifier flagged by Synthesized.
// A synthesized key is best effort: duplicates of a key-less frame are not
// collapsed by the deduper.
type Envelope struct {
	Name        string
	Key         string
	Synthesized bool
	Payload     map[string]any
}

// Decode parses and validates one inbound frame. A frame whose name is not
// registered or whose payload fails the event schema is returned as an error
// for the caller to drop and log.
func Decode(data []byte) (Envelope, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	name := strings.TrimSpace(frame.Name)
	if name == "" {
		return Envelope{}, errors.New("frame has no event name")
	}
	schema, ok := payloadSchemas[name]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}

	raw := frame.Payload
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	instance, err := jsonUnmarshalInstance(raw)
	if err != nil {
		return Envelope{}, fmt.Errorf("malformed payload for %s: %w", name, err)
	}
	if err := schema.Validate(instance); err != nil {
		return Envelope{}, &SchemaError{Event: name, Reason: err.Error()}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Envelope{}, fmt.Errorf("malformed payload for %s: %w", name, err)
	}

	env := Envelope{Name: name, Payload: payload}
	if key, ok := payload["eventId"].(string); ok && strings.TrimSpace(key) != "" {
		env.Key = strings.TrimSpace(key)
	} else {
		env.Key = "local_" + uuid.NewString()
		env.Synthesized = true
	}
	return env, nil
}

// EncodeFrame serializes one outbound frame.
func EncodeFrame(name string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Name: name, Payload: body})
}

// JoinRoomPayload is the outbound subscription-scope control payload.
type JoinRoomPayload struct {
	Role         domain.Role `json:"role"`
	UserID       string      `json:"userId"`
	BranchID     string      `json:"branchId,omitempty"`
	ChefID       string      `json:"chefId,omitempty"`
	DepartmentID string      `json:"departmentId,omitempty"`
}

func JoinRoom(s domain.Session) JoinRoomPayload {
	return JoinRoomPayload{
		Role:         s.Role,
		UserID:       s.UserID,
		BranchID:     s.BranchID,
		ChefID:       s.ChefID,
		DepartmentID: s.DepartmentID,
	}
}
