//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec as an auto-loaded extension for cgo builds.
	// The store probes for it at startup with SELECT vec_version().
	vec.Auto()
}
