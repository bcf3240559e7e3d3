// Package sqlite provides the SQLite-backed audit sink.
package sqlite
