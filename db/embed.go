// Package db embeds the database schema.
package db

import _ "embed"

// Schema contains the DDL for the discount_codes and orders tables.
//
//go:embed migrations/001_schema.sql
var Schema string
