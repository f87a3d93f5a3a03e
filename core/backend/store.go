package backend

import (
	"context"
)

// Instance is one persisted record of a resource kind. Next to the
// configured fields it always carries "id" and "createdAt", both assigned
// by the store at creation and immutable afterwards.
type Instance map[string]interface{}

// ID returns the instance identifier.
func (i Instance) ID() string {
	id, _ := i["id"].(string)
	return id
}

// Store is the per-kind persistence contract.
//
// Get resolves an id to an instance and fails with the kind-specific
// not-found error when the id is well-formed but unassigned. A malformed id
// is not a not-found condition, it surfaces as an internal failure.
//
// List returns up to limit instances ordered by creation time descending,
// skipping the first skip. It never fails on an empty result.
//
// Create assigns id and creation time and fails with the kind-specific
// already-exists error when a unique index is violated.
//
// Update replaces the mutable fields of an existing instance wholesale;
// fields missing from the new set become absent on the instance.
//
// Remove deletes the instance permanently.
type Store interface {
	Get(ctx context.Context, id string) (Instance, error)
	List(ctx context.Context, limit, skip int) ([]Instance, error)
	Create(ctx context.Context, fields Instance) (Instance, error)
	Update(ctx context.Context, id string, fields Instance) (Instance, error)
	Remove(ctx context.Context, id string) error
}

// splitFields separates the unique-index values from the remaining
// properties of a whitelisted field set. Unique fields are always strings;
// a missing or non-string value becomes the empty string, which unique
// indices treat as absent.
func splitFields(fields Instance, unique []string) (properties map[string]interface{}, uniqueValues []string) {
	properties = make(map[string]interface{}, len(fields))
	for key, value := range fields {
		properties[key] = value
	}
	uniqueValues = make([]string, len(unique))
	for n, key := range unique {
		if value, ok := properties[key].(string); ok {
			uniqueValues[n] = value
		}
		delete(properties, key)
	}
	return properties, uniqueValues
}
