// Package sqlite persists calibration records and tracker settings in a
// single SQLite file.
//
// Settings and the active calibration of each mode live in a flat kv table
// keyed the way calibration.Key and the pipeline setting keys name them, so
// the file can be inspected with any SQL console. Every saved calibration is
// also appended to calibration_history under a fresh UUID.
//
// The schema is managed by golang-migrate from the embedded migrations
// directory; Open always migrates to the latest version.
package sqlite
