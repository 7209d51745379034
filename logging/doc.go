// Package logging builds the process-wide zap logger: a console core for
// interactive use and an optional size-rotated JSON file.
package logging
