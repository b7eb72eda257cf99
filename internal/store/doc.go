// Package store keeps a SQLite history of detection jobs and the outcome of
// every image in them, including chips lost to failed inference batches.
package store
