package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONB represents a PostgreSQL JSONB field
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Merge returns a new map holding j's keys with other's copied over them,
// overwriting on collision. Neither operand is modified, so accumulated
// data can be merged speculatively and discarded on failure.
func (j JSONB) Merge(other JSONB) JSONB {
	merged := make(JSONB, len(j)+len(other))
	for k, v := range j {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
