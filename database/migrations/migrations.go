// Package migrations registers the shop schema. Importing it (blank) makes
// every migration available to the migration runner.
package migrations
