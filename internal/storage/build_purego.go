//go:build !sqlite_cgo

package storage

// The default build uses the pure Go driver and needs no C toolchain.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver name
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
