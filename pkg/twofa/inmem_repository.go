package twofa

import (
	"context"
	"sync"
	"time"
)

// InMemoryMethodRepository implements MethodRepository in process memory
type InMemoryMethodRepository struct {
	mutex   sync.RWMutex
	methods map[string][]methodRecord // keyed by user id
}

func NewInMemoryMethodRepository() *InMemoryMethodRepository {
	return &InMemoryMethodRepository{
		methods: make(map[string][]methodRecord),
	}
}

func (r *InMemoryMethodRepository) ListMethods(ctx context.Context, userID string) (MethodList, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return recordsToList(r.methods[userID]), nil
}

func (r *InMemoryMethodRepository) AddMethod(ctx context.Context, userID string, method Method) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	records, err := appendRecord(r.methods[userID], method)
	if err != nil {
		return err
	}
	r.methods[userID] = records
	return nil
}

func (r *InMemoryMethodRepository) SetEnabled(ctx context.Context, userID, methodID string, enabled bool) error {
	return r.update(userID, methodID, func(rec *methodRecord) {
		rec.Enabled = enabled
	})
}

func (r *InMemoryMethodRepository) RemoveMethod(ctx context.Context, userID, methodID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	records, err := removeRecord(r.methods[userID], methodID)
	if err != nil {
		return err
	}
	r.methods[userID] = records
	return nil
}

func (r *InMemoryMethodRepository) TouchLastUsed(ctx context.Context, userID, methodID string, at time.Time) error {
	return r.update(userID, methodID, func(rec *methodRecord) {
		t := at
		rec.LastUsedAt = &t
	})
}

func (r *InMemoryMethodRepository) update(userID, methodID string, fn func(*methodRecord)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return updateRecord(r.methods[userID], methodID, fn)
}

// The helpers below are shared by the repositories that keep a user's
// methods as a slice of records.

func recordsToList(records []methodRecord) MethodList {
	list := make(MethodList, 0, len(records))
	for _, rec := range records {
		list = append(list, rec.method())
	}
	return list
}

func appendRecord(records []methodRecord, method Method) ([]methodRecord, error) {
	for _, rec := range records {
		if rec.Type == method.Type && rec.Value == method.Value {
			return records, ErrDuplicateMethod
		}
	}
	// copy so readers holding the old slice never observe the append
	res := make([]methodRecord, len(records), len(records)+1)
	copy(res, records)
	return append(res, toRecord(method)), nil
}

func removeRecord(records []methodRecord, methodID string) ([]methodRecord, error) {
	for i, rec := range records {
		if rec.ID == methodID {
			res := make([]methodRecord, 0, len(records)-1)
			res = append(res, records[:i]...)
			return append(res, records[i+1:]...), nil
		}
	}
	return records, ErrMethodNotFound
}

func updateRecord(records []methodRecord, methodID string, fn func(*methodRecord)) error {
	for i := range records {
		if records[i].ID == methodID {
			fn(&records[i])
			return nil
		}
	}
	return ErrMethodNotFound
}
