package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringList is a custom type for handling JSONB string arrays in
// PostgreSQL. It implements sql.Scanner and driver.Valuer to convert
// between Go's []string and PostgreSQL's JSONB type.
type StringList []string

// Scan implements the sql.Scanner interface.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for StringList")
	}

	if len(data) == 0 {
		*l = StringList{}
		return nil
	}

	return json.Unmarshal(data, l)
}

// Value implements the driver.Valuer interface.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}
