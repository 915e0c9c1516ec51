package board

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Serialization helpers for converting between boards and Redis hashes.
//
// Snapshot and log hashes map element id to the element's JSON encoding. The
// board record hash holds plain fields with millisecond timestamps.

// ElementsToHash encodes elements as an id → JSON hash.
func ElementsToHash(elements map[string]*Element) (map[string]interface{}, error) {
	hash := make(map[string]interface{}, len(elements))
	for id, e := range elements {
		if e == nil {
			continue
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal element %q: %w", id, err)
		}
		hash[id] = string(raw)
	}
	return hash, nil
}

// HashToElements decodes an id → JSON hash. The hash key is authoritative for
// the element id.
func HashToElements(hash map[string]string) (map[string]*Element, error) {
	elements := make(map[string]*Element, len(hash))
	for id, raw := range hash {
		e := &Element{}
		if err := json.Unmarshal([]byte(raw), e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal element %q: %w", id, err)
		}
		e.ID = id
		elements[id] = e
	}
	return elements, nil
}

// HashToRecords decodes an element log hash into records ordered by id,
// keeping only elements of type typeFilter when it is not empty.
func HashToRecords(hash map[string]string, typeFilter string) ([]Record, error) {
	elements, err := HashToElements(hash)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(elements))
	for id, e := range elements {
		if typeFilter != "" && e.Type() != typeFilter {
			continue
		}
		records = append(records, Record{ID: id, Data: e})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// HashToSnapshotTimes parses the created_at_ms and saved_at_ms fields of a
// board record. Missing fields yield zero times.
func HashToSnapshotTimes(hash map[string]string) (createdAt, savedAt time.Time) {
	if ms, err := strconv.ParseInt(hash["created_at_ms"], 10, 64); err == nil && ms > 0 {
		createdAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(hash["saved_at_ms"], 10, 64); err == nil && ms > 0 {
		savedAt = time.UnixMilli(ms)
	}
	return createdAt, savedAt
}
