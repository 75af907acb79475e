package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bakeline/ordersync/internal/domain"
)

func TestDecodeValidFrameUsesServerEventID(t *testing.T) {
	frame := []byte(`{
		"name": "orderStatusUpdated",
		"payload": {
			"eventId": "evt_42",
			"orderId": "O1",
			"status": "approved",
			"orderNumber": "ORD-1",
			"branchName": "Central"
		}
	}`)
	env, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, EventOrderStatusUpdated, env.Name)
	require.Equal(t, "evt_42", env.Key)
	require.False(t, env.Synthesized)
	require.Equal(t, "O1", env.Payload["orderId"])
}

func TestDecodeSynthesizesKeyWhenEventIDAbsent(t *testing.T) {
	frame := []byte(`{
		"name": "orderCompleted",
		"payload": {"orderId": "O1", "orderNumber": "ORD-1", "branchName": "Central"}
	}`)
	env, err := Decode(frame)
	require.NoError(t, err)
	require.True(t, env.Synthesized)
	require.NotEmpty(t, env.Key)

	again, err := Decode(frame)
	require.NoError(t, err)
	// Synthesized keys are best effort: each delivery gets a fresh one.
	require.NotEqual(t, env.Key, again.Key)
}

func TestDecodeRejectsMissingRequiredFields(t *testing.T) {
	frame := []byte(`{
		"name": "orderStatusUpdated",
		"payload": {"orderId": "O1", "orderNumber": "ORD-1", "branchName": "Central"}
	}`)
	_, err := Decode(frame)
	require.Error(t, err)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Equal(t, EventOrderStatusUpdated, schemaErr.Event)
}

func TestDecodeRejectsUnknownEventName(t *testing.T) {
	_, err := Decode([]byte(`{"name": "orderVaporized", "payload": {}}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	_, err := Decode([]byte(`{"name": `))
	require.Error(t, err)

	_, err = Decode([]byte(`{"payload": {}}`))
	require.Error(t, err)
}

func TestDecodeRequiresNonEmptyItems(t *testing.T) {
	frame := []byte(`{
		"name": "orderCreated",
		"payload": {"orderId": "O1", "orderNumber": "ORD-1", "branchName": "Central", "items": []}
	}`)
	_, err := Decode(frame)
	require.Error(t, err)
}

func TestEveryInboundEventHasASchema(t *testing.T) {
	for _, name := range EventNames() {
		require.Contains(t, payloadSchemas, name)
	}
}

func TestJoinRoomCarriesSessionScope(t *testing.T) {
	payload := JoinRoom(domain.Session{
		UserID:   "u1",
		Role:     domain.RoleBranch,
		BranchID: "b7",
	})
	require.Equal(t, domain.RoleBranch, payload.Role)
	require.Equal(t, "u1", payload.UserID)
	require.Equal(t, "b7", payload.BranchID)
	require.Empty(t, payload.ChefID)

	data, err := EncodeFrame(ControlJoinRoom, payload)
	require.NoError(t, err)
	require.Contains(t, string(data), `"joinRoom"`)
	require.Contains(t, string(data), `"branchId":"b7"`)
}
