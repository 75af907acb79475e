package wire

// Server-pushed event names. One frame carries exactly one of these.
const (
	EventOrderCreated        = "orderCreated"
	EventOrderConfirmed      = "orderConfirmed"
	EventOrderStatusUpdated  = "orderStatusUpdated"
	EventTaskAssigned        = "taskAssigned"
	EventItemStatusUpdated   = "itemStatusUpdated"
	EventOrderCompleted      = "orderCompleted"
	EventOrderShipped        = "orderShipped"
	EventOrderDelivered      = "orderDelivered"
	EventReturnStatusUpdated = "returnStatusUpdated"
	EventMissingAssignments  = "missingAssignments"

	EventFactoryOrderCreated      = "factoryOrderCreated"
	EventFactoryTaskAssigned      = "factoryTaskAssigned"
	EventFactoryItemStatusUpdated = "factoryItemStatusUpdated"
	EventFactoryOrderCompleted    = "factoryOrderCompleted"
)

// ControlJoinRoom is the outbound client->server frame establishing the
// server-side subscription scope. Re-sent on every successful (re)connect.
const ControlJoinRoom = "joinRoom"

// EventNames lists every inbound event the client understands, in a stable
// order for diagnostics.
func EventNames() []string {
	return []string{
		EventOrderCreated,
		EventOrderConfirmed,
		EventOrderStatusUpdated,
		EventTaskAssigned,
		EventItemStatusUpdated,
		EventOrderCompleted,
		EventOrderShipped,
		EventOrderDelivered,
		EventReturnStatusUpdated,
		EventMissingAssignments,
		EventFactoryOrderCreated,
		EventFactoryTaskAssigned,
		EventFactoryItemStatusUpdated,
		EventFactoryOrderCompleted,
	}
}
