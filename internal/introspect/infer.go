package introspect

import (
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

const idField = "_id"

// fieldStats accumulates what the sample says about one field.
type fieldStats struct {
	present int
	nulls   int
	types   map[string]int
}

// InferCollection derives a table descriptor from sampled documents.
//
// The field set is the union of top-level fields. A field's source type is
// the BSON type seen most often among its non-null values (ties go to the
// lexically smallest name). Fields missing from any document, or null in
// any, are nullable. _id is the primary key and comes first; the remaining
// fields are ordered by name. Fields whose names are not identifiers are
// skipped.
func InferCollection(name string, docs []bson.D) domain.TableDescriptor {
	stats := map[string]*fieldStats{}
	for _, doc := range docs {
		for _, elem := range doc {
			fs, ok := stats[elem.Key]
			if !ok {
				fs = &fieldStats{types: map[string]int{}}
				stats[elem.Key] = fs
			}
			fs.present++
			typ := bsonTypeName(elem.Value)
			if typ == "null" {
				fs.nulls++
				continue
			}
			fs.types[typ]++
		}
	}

	if _, ok := stats[idField]; !ok {
		// Empty collection, or a sample without _id: the server still assigns one.
		stats[idField] = &fieldStats{present: len(docs), types: map[string]int{"objectId": 1}}
	}

	names := make([]string, 0, len(stats))
	for field := range stats {
		if field == idField {
			continue
		}
		if !core.IsValidIdentifier(field) {
			customLog.Warnf("Introspect: Skipping field '%s' of collection '%s': not a valid identifier", field, name)
			continue
		}
		names = append(names, field)
	}
	sort.Strings(names)
	names = append([]string{idField}, names...)

	t := domain.TableDescriptor{Name: name, PrimaryKey: []string{idField}}
	for _, field := range names {
		fs := stats[field]
		col := domain.ColumnDescriptor{
			Name:       field,
			SourceType: majorityType(fs.types),
			Nullable:   fs.present < len(docs) || fs.nulls > 0,
		}
		if field == idField {
			col.Nullable = false
			col.PrimaryKey = true
			col.AutoIncrement = col.SourceType == "objectId"
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

// majorityType picks the most frequent type; "null" when nothing non-null
// was observed, which the type mapper rejects.
func majorityType(types map[string]int) string {
	best, bestCount := "null", 0
	for typ, n := range types {
		if n > bestCount || (n == bestCount && typ < best) {
			best, bestCount = typ, n
		}
	}
	return best
}

// bsonTypeName returns the mongo shell name of a decoded BSON value.
func bsonTypeName(v any) string {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return "null"
	case string:
		return "string"
	case primitive.Symbol:
		return "symbol"
	case primitive.ObjectID:
		return "objectId"
	case int32:
		return "int"
	case int64, int:
		return "long"
	case float64:
		return "double"
	case primitive.Decimal128:
		return "decimal"
	case bool:
		return "bool"
	case primitive.DateTime, time.Time:
		return "date"
	case primitive.Timestamp:
		return "timestamp"
	case bson.D, bson.M:
		return "object"
	case bson.A, []any:
		return "array"
	case primitive.Binary, []byte:
		return "binData"
	case primitive.Regex:
		return "regex"
	case primitive.JavaScript, primitive.CodeWithScope:
		return "javascript"
	default:
		return fmt.Sprintf("unknown(%T)", v)
	}
}
