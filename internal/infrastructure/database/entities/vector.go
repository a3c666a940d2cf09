package entities

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector maps a pgvector column. The wire format is the pgvector text
// representation: "[0.1,0.2,...]".
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

func (v *Vector) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}

	var s string
	switch raw := value.(type) {
	case []byte:
		s = string(raw)
	case string:
		s = raw
	default:
		return fmt.Errorf("unsupported vector column type %T", value)
	}

	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		*v = Vector{}
		return nil
	}

	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return fmt.Errorf("parse vector element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}

// GormDataType pins the column type; 1536 matches text-embedding-3-small.
func (Vector) GormDataType() string {
	return "vector(1536)"
}
