package event

import (
	"encoding/json"
	"fmt"
)

// EventUpgrader rewrites a payload from SourceVersion to SourceVersion+1.
// Upgraders run at read time; stored payloads are never rewritten.
type EventUpgrader interface {
	SourceVersion() int
	Upgrade(payload []byte) ([]byte, error)
}

// FieldUpgrader upgrades a payload by editing its top-level JSON fields
type FieldUpgrader struct {
	source    int
	transform func(fields map[string]any) error
}

// NewFieldUpgrader creates an upgrader from sourceVersion to sourceVersion+1
func NewFieldUpgrader(sourceVersion int, transform func(fields map[string]any) error) *FieldUpgrader {
	return &FieldUpgrader{source: sourceVersion, transform: transform}
}

// SourceVersion returns the schema version the upgrader reads
func (u *FieldUpgrader) SourceVersion() int {
	return u.source
}

// Upgrade applies the transform to the decoded payload
func (u *FieldUpgrader) Upgrade(payload []byte) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	if err := u.transform(fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// AddField sets a default for a field introduced in sourceVersion+1
func AddField(sourceVersion int, name string, value any) *FieldUpgrader {
	return NewFieldUpgrader(sourceVersion, func(fields map[string]any) error {
		if _, ok := fields[name]; !ok {
			fields[name] = value
		}
		return nil
	})
}

// RenameField moves a field to its new name
func RenameField(sourceVersion int, from, to string) *FieldUpgrader {
	return NewFieldUpgrader(sourceVersion, func(fields map[string]any) error {
		if v, ok := fields[from]; ok {
			fields[to] = v
			delete(fields, from)
		}
		return nil
	})
}

// RemoveField drops a field that no longer exists
func RemoveField(sourceVersion int, name string) *FieldUpgrader {
	return NewFieldUpgrader(sourceVersion, func(fields map[string]any) error {
		delete(fields, name)
		return nil
	})
}
