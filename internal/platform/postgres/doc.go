// Package postgres persists generations, their items and gallery likes in
// PostgreSQL. It implements the interfaces of internal/store over
// database/sql with the pgx driver and embeds the goose migrations that
// create the schema.
package postgres
