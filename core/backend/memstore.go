package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/google/uuid"

	"github.com/snabb-tech/dispatch/core/apierror"
)

// memStore keeps one resource kind in process memory. It honors the exact
// same contract as the Postgres store, including the malformed-id failure
// mode, so the HTTP pipeline behaves identically on both.
type memStore struct {
	mu       sync.RWMutex
	resource string
	unique   []string

	instances map[string]Instance
	sequence  map[string]int64
	nextSeq   int64
}

func newMemStore(rc collectionConfiguration) *memStore {
	return &memStore{
		resource:  rc.Resource,
		unique:    rc.UniqueIndices,
		instances: make(map[string]Instance),
		sequence:  make(map[string]int64),
	}
}

// clone makes a deep copy through JSON, instances enter and leave the store
// as decoded JSON values anyway.
func clone(instance Instance) Instance {
	data, _ := json.Marshal(instance)
	copied := Instance{}
	json.Unmarshal(data, &copied)
	return copied
}

func (s *memStore) checkUnique(fields Instance, selfID string) error {
	for _, key := range s.unique {
		value, ok := fields[key].(string)
		if !ok || value == "" {
			continue
		}
		for id, other := range s.instances {
			if id == selfID {
				continue
			}
			if existing, ok := other[key].(string); ok && existing == value {
				return apierror.AlreadyExists(s.resource)
			}
		}
	}
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (Instance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get %s: invalid input syntax for id %q: %w", s.resource, id, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[id]
	if !ok {
		return nil, apierror.NotFound(s.resource)
	}
	return clone(instance), nil
}

func (s *memStore) List(ctx context.Context, limit, skip int) ([]Instance, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	// newest first; the sequence breaks creation-time ties deterministically
	sort.Slice(ids, func(i, j int) bool {
		a := s.instances[ids[i]]["createdAt"].(time.Time)
		b := s.instances[ids[j]]["createdAt"].(time.Time)
		if !a.Equal(b) {
			return a.After(b)
		}
		return s.sequence[ids[i]] > s.sequence[ids[j]]
	})
	result := []Instance{}
	for n := skip; n < len(ids) && len(result) < limit; n++ {
		result = append(result, clone(s.instances[ids[n]]))
	}
	s.mu.RUnlock()
	return result, nil
}

func (s *memStore) Create(ctx context.Context, fields Instance) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(fields, ""); err != nil {
		return nil, err
	}
	instance := clone(fields)
	id := uuid.New().String()
	instance["id"] = id
	instance["createdAt"] = time.Now().UTC()
	s.instances[id] = instance
	s.nextSeq++
	s.sequence[id] = s.nextSeq
	return clone(instance), nil
}

func (s *memStore) Update(ctx context.Context, id string, fields Instance) (Instance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("update %s: invalid input syntax for id %q: %w", s.resource, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.instances[id]
	if !ok {
		return nil, apierror.NotFound(s.resource)
	}
	if err := s.checkUnique(fields, id); err != nil {
		return nil, err
	}
	instance := clone(fields)
	instance["id"] = id
	instance["createdAt"] = existing["createdAt"]
	s.instances[id] = instance
	return clone(instance), nil
}

func (s *memStore) Remove(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("remove %s: invalid input syntax for id %q: %w", s.resource, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		return apierror.NotFound(s.resource)
	}
	delete(s.instances, id)
	delete(s.sequence, id)
	return nil
}
