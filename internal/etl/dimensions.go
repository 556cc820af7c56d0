package etl

import (
	"strings"

	"github.com/citydata/crimewatch/internal/socrata"
)

// FieldMapping maps a portal field name to a target column. Order matters:
// it fixes the column order of the load.
type FieldMapping struct {
	Source string
	Target string
}

// DimensionSpec declares the reconciliation of one reference table. One
// generic routine (BuildBatch) consumes these; adding a dimension means
// adding a descriptor, not code.
type DimensionSpec struct {
	Name         string
	Table        string
	DatasetID    string
	Fields       []FieldMapping
	KeyColumn    string
	NormalizeKey func(string) string
	BoolColumns  []string
}

// DimensionBatch is the load-ready reconciled projection of one table.
// Row values are *string for text columns, bool for declared boolean
// columns, and nil for absent fields.
type DimensionBatch struct {
	Table     string
	Columns   []string
	KeyColumn string
	Rows      [][]interface{}
}

// DimensionSpecs returns the descriptors for every reference table, in load
// order. Dataset IDs are the Chicago Data Portal's.
func DimensionSpecs() []DimensionSpec {
	return []DimensionSpec{
		{
			Name:      "community_areas",
			Table:     "dim_community_areas",
			DatasetID: "igwz-8jzy",
			Fields: []FieldMapping{
				{"area_num_1", "id"},
				{"community", "name"},
			},
			KeyColumn: "id",
		},
		{
			Name:      "iucr_codes",
			Table:     "dim_iucr_codes",
			DatasetID: "c7ck-438e",
			Fields: []FieldMapping{
				{"iucr", "id"},
				{"primary_description", "primary_desc"},
				{"secondary_description", "secondary_desc"},
				{"index_code", "index_code"},
				{"active", "is_active"},
			},
			KeyColumn:   "id",
			BoolColumns: []string{"is_active"},
		},
		{
			Name:      "wards",
			Table:     "dim_wards",
			DatasetID: "k9yb-bpqx",
			Fields: []FieldMapping{
				{"ward", "id"},
			},
			KeyColumn: "id",
		},
		{
			Name:      "beats",
			Table:     "dim_beats",
			DatasetID: "n9it-hstw",
			Fields: []FieldMapping{
				{"beat_num", "beat_num"},
				{"district", "district"},
				{"sector", "sector"},
				{"beat", "beat"},
			},
			KeyColumn:    "beat_num",
			NormalizeKey: NormalizeBeat,
		},
		{
			Name:      "districts",
			Table:     "dim_districts",
			DatasetID: "24zt-jpfn",
			Fields: []FieldMapping{
				{"dist_num", "dist_num"},
				{"dist_label", "dist_label"},
			},
			KeyColumn:    "dist_num",
			NormalizeKey: NormalizeDistrict,
		},
	}
}

// BuildBatch projects raw dimension rows onto the spec's target columns,
// deduplicates by key (first occurrence in fetch order wins), normalizes
// the key, and coerces declared boolean columns.
func BuildBatch(spec DimensionSpec, rows []socrata.Row) DimensionBatch {
	columns := make([]string, len(spec.Fields))
	keyIdx := -1
	for i, f := range spec.Fields {
		columns[i] = f.Target
		if f.Target == spec.KeyColumn {
			keyIdx = i
		}
	}

	boolIdx := make(map[int]bool)
	for i, f := range spec.Fields {
		for _, b := range spec.BoolColumns {
			if f.Target == b {
				boolIdx[i] = true
			}
		}
	}

	batch := DimensionBatch{
		Table:     spec.Table,
		Columns:   columns,
		KeyColumn: spec.KeyColumn,
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		values := make([]interface{}, len(spec.Fields))
		for i, f := range spec.Fields {
			values[i] = toString(row[f.Source])
		}

		// Dedup on the raw key; first occurrence wins. Rows with a missing
		// key share the empty key and collapse to one.
		key := ""
		if s, ok := values[keyIdx].(*string); ok && s != nil {
			key = *s
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if spec.NormalizeKey != nil {
			if s, ok := values[keyIdx].(*string); ok && s != nil {
				normalized := spec.NormalizeKey(*s)
				values[keyIdx] = &normalized
			}
		}

		// Boolean-like text compares case-insensitively against "true";
		// anything else, including missing, is false.
		for i := range values {
			if !boolIdx[i] {
				continue
			}
			b := false
			if s, ok := values[i].(*string); ok && s != nil {
				b = strings.EqualFold(*s, "true")
			}
			values[i] = b
		}

		batch.Rows = append(batch.Rows, values)
	}

	return batch
}

// NormalizeDistrict strips a trailing fractional part and zero-pads to
// three digits so district codes match the fact table ("1" -> "001").
func NormalizeDistrict(code string) string {
	return zeroPad(stripFraction(code), 3)
}

// NormalizeBeat strips a trailing fractional part ("123.0" -> "123").
// Beat codes keep their natural width.
func NormalizeBeat(code string) string {
	return stripFraction(code)
}

func stripFraction(s string) string {
	if idx := strings.Index(s, "."); idx >= 0 {
		return s[:idx]
	}
	return s
}

func zeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
