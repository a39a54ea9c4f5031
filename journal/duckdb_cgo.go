//go:build cgo

package journal

// go-duckdb wraps the DuckDB C library and only compiles with cgo, so the
// driver registration lives behind this build constraint. Without cgo,
// Open("duckdb", ...) fails at sql.Open with an unknown-driver error.
import _ "github.com/marcboeker/go-duckdb"
