package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Annany2002/nebula-apigen/internal/domain"
)

type writeMode int

const (
	modeCreate writeMode = iota
	modeReplace
	modePatch
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// prepareValues checks a request body against t and returns the columns to
// write, in table order, with their converted values. Create and replace
// requests must carry every required column; patch requests may carry any
// subset. Key columns are never required on replace.
func prepareValues(t domain.TableDescriptor, values Record, mode writeMode) ([]string, []any, error) {
	byName := make(map[string]any, len(values))
	for name, v := range values {
		if !t.HasColumn(name) {
			return nil, nil, fmt.Errorf("%w: '%s' is not a column of '%s'", ErrColumnNotFound, name, t.Name)
		}
		byName[strings.ToLower(name)] = v
	}

	key, _ := t.KeyColumn()
	var columns []string
	var args []any
	for _, col := range t.Columns {
		v, present := byName[strings.ToLower(col.Name)]
		if !present {
			isKey := col.PrimaryKey || col.Name == key.Name
			if mode != modePatch && col.Required() && !(mode == modeReplace && isKey) {
				return nil, nil, fmt.Errorf("%w: '%s'", ErrMissingColumn, col.Name)
			}
			// A full update clears the nullable columns it leaves out.
			if mode == modeReplace && col.Nullable && !isKey {
				columns = append(columns, col.Name)
				args = append(args, nil)
			}
			continue
		}
		converted, err := convertValue(col, v)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, col.Name)
		args = append(args, converted)
	}
	return columns, args, nil
}

// convertValue turns a decoded JSON value into the driver value for col.
func convertValue(col domain.ColumnDescriptor, v any) (any, error) {
	if v == nil {
		if !col.Nullable {
			return nil, fmt.Errorf("%w: column '%s' cannot be null", ErrTypeMismatch, col.Name)
		}
		return nil, nil
	}
	mismatch := func(want string) error {
		return fmt.Errorf("%w: column '%s' expects %s, got %T", ErrTypeMismatch, col.Name, want, v)
	}

	switch col.Target.Kind {
	case domain.KindInteger:
		switch x := v.(type) {
		case json.Number:
			n, err := x.Int64()
			if err != nil {
				return nil, mismatch("an integer")
			}
			return n, nil
		case float64:
			if x != math.Trunc(x) {
				return nil, mismatch("an integer")
			}
			return int64(x), nil
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		}
		return nil, mismatch("an integer")

	case domain.KindNumber:
		switch x := v.(type) {
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, mismatch("a number")
			}
			return f, nil
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
		return nil, mismatch("a number")

	case domain.KindDecimal:
		switch x := v.(type) {
		case json.Number:
			return x.String(), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case string:
			if _, err := strconv.ParseFloat(x, 64); err != nil {
				return nil, mismatch("a decimal")
			}
			return x, nil
		}
		return nil, mismatch("a decimal")

	case domain.KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, mismatch("a boolean")

	case domain.KindJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, mismatch("a JSON value")
		}
		return string(data), nil
	}

	s, ok := v.(string)
	if !ok {
		return nil, mismatch("a string")
	}
	switch col.Target.Kind {
	case domain.KindUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, mismatch("a UUID")
		}
		return id.String(), nil
	case domain.KindDate:
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return nil, mismatch("a date (YYYY-MM-DD)")
		}
		return s, nil
	case domain.KindTime:
		if _, err := time.Parse(time.TimeOnly, s); err != nil {
			return nil, mismatch("a time (HH:MM:SS)")
		}
		return s, nil
	case domain.KindDateTime:
		for _, layout := range dateTimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return nil, mismatch("an ISO-8601 timestamp")
	case domain.KindBytes:
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, mismatch("base64 data")
		}
		return data, nil
	}
	return s, nil
}

// convertFilter parses a query string value for an equality match on col.
func convertFilter(col domain.ColumnDescriptor, raw string) (any, error) {
	switch col.Target.Kind {
	case domain.KindInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer for column '%s'", col.Name)
		}
		return v, nil
	case domain.KindNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number for column '%s'", col.Name)
		}
		return v, nil
	case domain.KindBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a boolean for column '%s'", col.Name)
		}
		return v, nil
	case domain.KindUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a UUID for column '%s'", col.Name)
		}
		return id.String(), nil
	case domain.KindBytes:
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("expected base64 data for column '%s'", col.Name)
		}
		return data, nil
	default:
		return raw, nil
	}
}

// convertOutput normalizes a scanned driver value so that it serializes
// according to the column's target type: dates as ISO-8601 strings, bytes
// as base64, JSON documents inline.
func convertOutput(col domain.ColumnDescriptor, v any) any {
	kind := col.Target.Kind
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if kind == domain.KindBytes {
			return append([]byte(nil), x...)
		}
		return convertOutput(col, string(x))
	case string:
		switch kind {
		case domain.KindJSON:
			if json.Valid([]byte(x)) {
				return json.RawMessage(x)
			}
		case domain.KindBytes:
			return []byte(x)
		case domain.KindInteger:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n
			}
		case domain.KindNumber:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		case domain.KindBoolean:
			if b, err := strconv.ParseBool(x); err == nil {
				return b
			}
		}
		return x
	case time.Time:
		switch kind {
		case domain.KindDate:
			return x.Format(time.DateOnly)
		case domain.KindTime:
			return x.Format(time.TimeOnly)
		}
		return x
	case int64:
		switch kind {
		case domain.KindBoolean:
			return x != 0
		case domain.KindNumber:
			return float64(x)
		case domain.KindDecimal:
			return strconv.FormatInt(x, 10)
		}
		return x
	case float64:
		switch kind {
		case domain.KindDecimal:
			return strconv.FormatFloat(x, 'f', -1, 64)
		case domain.KindInteger:
			if x == math.Trunc(x) {
				return int64(x)
			}
		}
		return x
	case [16]byte:
		return uuid.UUID(x).String()
	}
	return v
}
