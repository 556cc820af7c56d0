package database

import (
	"context"
	"fmt"
)

// DDL for the fact table and the five dimension tables. The fact table's
// primary key is the portal's record ID, never a local sequence.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS crime_records (
		id                   BIGINT PRIMARY KEY,
		case_number          VARCHAR(20),
		date                 TIMESTAMP,
		updated_on           TIMESTAMP,
		block                VARCHAR(100),
		iucr                 VARCHAR(10),
		primary_type         VARCHAR(100),
		description          VARCHAR(255),
		location_description VARCHAR(100),
		arrest               BOOLEAN,
		domestic             BOOLEAN,
		beat                 VARCHAR(10),
		district             VARCHAR(10),
		ward                 SMALLINT,
		community_area       VARCHAR(10),
		fbi_code             VARCHAR(10),
		x_coordinate         REAL,
		y_coordinate         REAL,
		latitude             REAL,
		longitude            REAL,
		year                 SMALLINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crime_records_case_number ON crime_records (case_number)`,
	`CREATE INDEX IF NOT EXISTS idx_crime_records_date ON crime_records (date)`,
	`CREATE INDEX IF NOT EXISTS idx_crime_records_primary_type ON crime_records (primary_type)`,
	`CREATE INDEX IF NOT EXISTS idx_crime_records_year ON crime_records (year)`,
	`CREATE TABLE IF NOT EXISTS dim_community_areas (
		id   VARCHAR(10) PRIMARY KEY,
		name VARCHAR(100)
	)`,
	`CREATE TABLE IF NOT EXISTS dim_iucr_codes (
		id             VARCHAR(10) PRIMARY KEY,
		primary_desc   VARCHAR(100),
		secondary_desc VARCHAR(255),
		index_code     VARCHAR(10),
		is_active      BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS dim_wards (
		id VARCHAR(10) PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS dim_beats (
		beat_num VARCHAR(10) PRIMARY KEY,
		district VARCHAR(10),
		sector   VARCHAR(10),
		beat     VARCHAR(10)
	)`,
	`CREATE TABLE IF NOT EXISTS dim_districts (
		dist_num   VARCHAR(10) PRIMARY KEY,
		dist_label VARCHAR(100)
	)`,
}

// EnsureSchema creates the fact and dimension tables if they do not exist.
// All statements run in one transaction so a partially created schema never
// survives a failure. Safe to run repeatedly.
func (db *Database) EnsureSchema(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}
