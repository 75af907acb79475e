package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// eventRequirements declares the minimal required-field set per event name.
// A payload missing any of these is dropped by Decode before it reaches the
// normalizer.
var eventRequirements = map[string]struct {
	required  []string
	itemsList bool
}{
	EventOrderCreated:        {required: []string{"orderId", "orderNumber", "branchName", "items"}, itemsList: true},
	EventOrderConfirmed:      {required: []string{"orderId", "status", "orderNumber", "branchName"}},
	EventOrderStatusUpdated:  {required: []string{"orderId", "status", "orderNumber", "branchName"}},
	EventTaskAssigned:        {required: []string{"orderId", "orderNumber", "branchName", "items"}, itemsList: true},
	EventItemStatusUpdated:   {required: []string{"orderId", "itemId", "status", "orderNumber", "branchName"}},
	EventOrderCompleted:      {required: []string{"orderId", "orderNumber", "branchName"}},
	EventOrderShipped:        {required: []string{"orderId", "orderNumber", "branchName"}},
	EventOrderDelivered:      {required: []string{"orderId", "orderNumber", "branchName"}},
	EventReturnStatusUpdated: {required: []string{"orderId", "returnId", "status", "orderNumber"}},
	EventMissingAssignments:  {required: []string{"orderId", "itemId", "orderNumber", "productName"}},

	EventFactoryOrderCreated:      {required: []string{"factoryOrderId", "orderNumber", "items"}, itemsList: true},
	EventFactoryTaskAssigned:      {required: []string{"factoryOrderId", "orderNumber", "items"}, itemsList: true},
	EventFactoryItemStatusUpdated: {required: []string{"factoryOrderId", "itemId", "status", "orderNumber"}},
	EventFactoryOrderCompleted:    {required: []string{"factoryOrderId", "orderNumber"}},
}

var payloadSchemas = map[string]*jsonschema.Schema{}

func init() {
	compiler := jsonschema.NewCompiler()
	for name, req := range eventRequirements {
		resource := name + ".json"
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDocument(req.required, req.itemsList)))
		if err != nil {
			panic(fmt.Sprintf("wire: schema for %s: %v", name, err))
		}
		if err := compiler.AddResource(resource, doc); err != nil {
			panic(fmt.Sprintf("wire: schema for %s: %v", name, err))
		}
	}
	for name := range eventRequirements {
		schema, err := compiler.Compile(name + ".json")
		if err != nil {
			panic(fmt.Sprintf("wire: compile schema for %s: %v", name, err))
		}
		payloadSchemas[name] = schema
	}
}

// jsonUnmarshalInstance decodes a payload the way the schema validator
// expects instances to be decoded.
func jsonUnmarshalInstance(raw []byte) (any, error) {
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}

func schemaDocument(required []string, itemsList bool) []byte {
	properties := map[string]any{
		"eventId": map[string]any{"type": "string"},
	}
	for _, field := range required {
		if field == "items" {
			continue
		}
		properties[field] = map[string]any{"type": "string", "minLength": 1}
	}
	if itemsList {
		properties["items"] = map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "object"},
		}
	}
	doc := map[string]any{
		"type":       "object",
		"required":   required,
		"properties": properties,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("wire: marshal schema: %v", err))
	}
	return data
}
