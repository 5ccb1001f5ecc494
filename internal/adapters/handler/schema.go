package handler

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi/webhook.yaml
var webhookSchemaDoc []byte

// NotificationSchema validates raw webhook bodies before they are decoded.
type NotificationSchema struct {
	schema *openapi3.Schema
}

func LoadNotificationSchema(ctx context.Context) (*NotificationSchema, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(webhookSchemaDoc)
	if err != nil {
		return nil, fmt.Errorf("load webhook schema: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid webhook schema: %w", err)
	}

	ref, ok := doc.Components.Schemas["Notification"]
	if !ok || ref.Value == nil {
		return nil, fmt.Errorf("webhook schema has no Notification component")
	}
	return &NotificationSchema{schema: ref.Value}, nil
}

// Validate checks body against the Notification schema.
func (s *NotificationSchema) Validate(body []byte) error {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	if err := s.schema.VisitJSON(value); err != nil {
		return fmt.Errorf("body does not match notification schema: %w", err)
	}
	return nil
}
