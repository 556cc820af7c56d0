package models

import (
	"time"
)

// CrimeRecord represents a single reported incident from the Chicago Data
// Portal crimes dataset (2001 to present).
//
// The primary key is the portal's own record ID, never autogenerated locally.
// All nullable fields use pointers to distinguish between zero values and NULL:
// a missing ward must stay NULL rather than collapse to 0.
type CrimeRecord struct {
	// Timestamps. Date is the incident time; both may be NULL when the
	// portal value fails to parse.
	Date      *time.Time `json:"date,omitempty"`
	UpdatedOn *time.Time `json:"updatedOn,omitempty"`

	// Identifiers. ID is nil only for rows whose portal ID failed to parse;
	// such rows are dropped before load.
	ID         *int64  `json:"id"`
	CaseNumber *string `json:"caseNumber,omitempty"`

	// Categorical / text data.
	Block               *string `json:"block,omitempty"`
	IUCR                *string `json:"iucr,omitempty"`
	PrimaryType         *string `json:"primaryType,omitempty"`
	Description         *string `json:"description,omitempty"`
	LocationDescription *string `json:"locationDescription,omitempty"`

	// Flags.
	Arrest   *bool `json:"arrest,omitempty"`
	Domestic *bool `json:"domestic,omitempty"`

	// Jurisdiction codes. Numeric-looking but stored as strings to preserve
	// leading zeros ("004" is a district, 4 is not).
	Beat          *string `json:"beat,omitempty"`
	District      *string `json:"district,omitempty"`
	Ward          *int16  `json:"ward,omitempty"`
	CommunityArea *string `json:"communityArea,omitempty"`
	FBICode       *string `json:"fbiCode,omitempty"`

	// Spatial data. float32 is enough for geocoded coordinates.
	XCoordinate *float32 `json:"xCoordinate,omitempty"`
	YCoordinate *float32 `json:"yCoordinate,omitempty"`
	Latitude    *float32 `json:"latitude,omitempty"`
	Longitude   *float32 `json:"longitude,omitempty"`

	// Partitioning / filtering.
	Year *int16 `json:"year,omitempty"`
}

// TableName returns the fact table name.
func (CrimeRecord) TableName() string {
	return "crime_records"
}
