package document

import (
	"fmt"
	"strconv"
)

// IDField is the reserved field name carrying a record's identity.
// A source field with this name overrides the derived ID and is removed
// from Fields.
const IDField = "_id"

// Record is the normalized flat form of one ingested file or tabular row.
type Record struct {
	ID     string
	Fields map[string]any
}

// RecordID derives the stable ID for one ingested unit.
//
// A whole-file record (count <= 1) is identified by the file's base name.
// A row- or element-derived record appends a zero-padded index whose width
// covers count-1, so lexical and numeric order agree: 100 rows pad to three
// digits and the first row becomes base_000.
func RecordID(base string, index, count int) string {
	if count <= 1 {
		return base
	}
	width := len(strconv.Itoa(count - 1))
	return fmt.Sprintf("%s_%0*d", base, width, index)
}

// TakeIDOverride removes the reserved _id field from fields and returns it
// as the record ID when it holds a usable scalar.
func TakeIDOverride(fields map[string]any) (string, bool) {
	v, ok := fields[IDField]
	if !ok {
		return "", false
	}
	delete(fields, IDField)
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case int64:
		return strconv.FormatInt(id, 10), true
	case float64:
		return strconv.FormatFloat(id, 'g', -1, 64), true
	default:
		return "", false
	}
}
