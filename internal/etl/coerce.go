package etl

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/citydata/crimewatch/internal/models"
	"github.com/citydata/crimewatch/internal/socrata"
)

// Timestamp layouts seen in portal responses. Floating timestamps usually
// carry milliseconds but older extracts omit them.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// fieldSpec binds one source field to its coercion rule. The table below is
// the complete fact schema: every coercion is declared here rather than
// hidden in column-wide casts, so the null semantics of each field are
// auditable in one place.
type fieldSpec struct {
	name  string
	apply func(rec *models.CrimeRecord, raw interface{})
}

var crimeFields = []fieldSpec{
	{"id", func(r *models.CrimeRecord, v interface{}) { r.ID = toInt64(v) }},
	{"case_number", func(r *models.CrimeRecord, v interface{}) { r.CaseNumber = toString(v) }},
	{"date", func(r *models.CrimeRecord, v interface{}) { r.Date = toTimestamp(v) }},
	{"updated_on", func(r *models.CrimeRecord, v interface{}) { r.UpdatedOn = toTimestamp(v) }},
	{"block", func(r *models.CrimeRecord, v interface{}) { r.Block = toString(v) }},
	{"iucr", func(r *models.CrimeRecord, v interface{}) { r.IUCR = toString(v) }},
	{"primary_type", func(r *models.CrimeRecord, v interface{}) { r.PrimaryType = toString(v) }},
	{"description", func(r *models.CrimeRecord, v interface{}) { r.Description = toString(v) }},
	{"location_description", func(r *models.CrimeRecord, v interface{}) { r.LocationDescription = toString(v) }},
	{"arrest", func(r *models.CrimeRecord, v interface{}) { r.Arrest = toBool(v) }},
	{"domestic", func(r *models.CrimeRecord, v interface{}) { r.Domestic = toBool(v) }},
	{"beat", func(r *models.CrimeRecord, v interface{}) { r.Beat = toString(v) }},
	{"district", func(r *models.CrimeRecord, v interface{}) { r.District = toString(v) }},
	{"ward", func(r *models.CrimeRecord, v interface{}) { r.Ward = toInt16(v) }},
	{"community_area", func(r *models.CrimeRecord, v interface{}) { r.CommunityArea = toString(v) }},
	{"fbi_code", func(r *models.CrimeRecord, v interface{}) { r.FBICode = toString(v) }},
	{"x_coordinate", func(r *models.CrimeRecord, v interface{}) { r.XCoordinate = toFloat32(v) }},
	{"y_coordinate", func(r *models.CrimeRecord, v interface{}) { r.YCoordinate = toFloat32(v) }},
	{"latitude", func(r *models.CrimeRecord, v interface{}) { r.Latitude = toFloat32(v) }},
	{"longitude", func(r *models.CrimeRecord, v interface{}) { r.Longitude = toFloat32(v) }},
	{"year", func(r *models.CrimeRecord, v interface{}) { r.Year = toInt16(v) }},
}

// Clean converts a batch of raw portal rows into typed crime records.
//
// Field names are lower-cased first, then each declared field is coerced
// independently. A value that fails to parse becomes nil; it never drops the
// row and never returns an error. Rows whose id fails to parse are kept here
// with a nil ID; the orchestrator decides their fate before load.
func Clean(rows []socrata.Row) []models.CrimeRecord {
	records := make([]models.CrimeRecord, 0, len(rows))

	for _, row := range rows {
		lowered := make(map[string]interface{}, len(row))
		for key, value := range row {
			lowered[strings.ToLower(key)] = value
		}

		var rec models.CrimeRecord
		for _, field := range crimeFields {
			field.apply(&rec, lowered[field.name])
		}
		records = append(records, rec)
	}

	return records
}

// toString passes text through and stringifies stray scalars. Missing or
// null values stay nil.
func toString(v interface{}) *string {
	switch val := v.(type) {
	case string:
		return &val
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(val)
		return &s
	default:
		return nil
	}
}

// toTimestamp parses Socrata floating timestamps. Unparseable or missing
// values become nil.
func toTimestamp(v interface{}) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

// toFloat32 parses a numeric value into reduced-precision float. Geocoded
// coordinates do not warrant 64 bits.
func toFloat32(v interface{}) *float32 {
	switch val := v.(type) {
	case float64:
		f := float32(val)
		return &f
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		f := float32(parsed)
		return &f
	default:
		return nil
	}
}

// toInt16 parses a numeric value and truncates to a small integer. The
// pointer keeps "missing" distinct from 0. Out-of-range values become nil.
func toInt16(v interface{}) *int16 {
	var parsed float64
	switch val := v.(type) {
	case float64:
		parsed = val
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		parsed = f
	default:
		return nil
	}
	// NaN slips past both range checks and its int16 conversion is
	// implementation-defined; it degrades to null like any bad value.
	if math.IsNaN(parsed) || parsed < -32768 || parsed > 32767 {
		return nil
	}
	i := int16(parsed)
	return &i
}

// toInt64 parses the portal's record ID. A fractional representation like
// "123.0" still truncates to 123.
func toInt64(v interface{}) *int64 {
	switch val := v.(type) {
	case float64:
		i := int64(val)
		return &i
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return &i
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			i := int64(f)
			return &i
		}
		return nil
	default:
		return nil
	}
}

// toBool keeps null as a distinct state from false.
func toBool(v interface{}) *bool {
	switch val := v.(type) {
	case bool:
		return &val
	case string:
		switch strings.ToLower(val) {
		case "true":
			b := true
			return &b
		case "false":
			b := false
			return &b
		}
		return nil
	default:
		return nil
	}
}
