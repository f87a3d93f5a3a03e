package backend

import (
	"github.com/snabb-tech/dispatch/core"
)

// Configuration holds a complete backend configuration
type Configuration struct {
	Collections []collectionConfiguration `json:"collections"`
}

// collectionConfiguration describes one resource kind
type collectionConfiguration struct {
	Resource      string                      `json:"resource"`
	Description   string                      `json:"description"`
	SchemaID      string                      `json:"schema_id"`
	Properties    []string                    `json:"properties"`
	UniqueIndices []string                    `json:"unique_indices"`
	Notifications []notificationConfiguration `json:"notifications"`
}

// notificationConfiguration binds a store operation on the kind to a
// published domain event
type notificationConfiguration struct {
	Operation core.Operation `json:"operation"`
	Channel   string         `json:"channel"`
	Event     string         `json:"event"`
}

// mutableFields returns the whitelist of fields a create or update request
// can set, the declared properties plus all unique indices.
func (rc collectionConfiguration) mutableFields() []string {
	fields := make([]string, 0, len(rc.Properties)+len(rc.UniqueIndices))
	fields = append(fields, rc.Properties...)
	fields = append(fields, rc.UniqueIndices...)
	return fields
}
