package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrKeyNotFound        = errors.New("db: key not found")
	ErrIndexNotFound      = errors.New("db: index not found")
	ErrIndexExists        = errors.New("db: index already exists")
	ErrPreconditionFailed = errors.New("db: index changed since it was read")
	ErrSchemaConflict     = errors.New("db: schema change not supported by backend")
)

// Op names used for error context. Redis ops are command names, Azure ops are REST calls.
const (
	OpCreateIndex = "FT.CREATE"
	OpAlterIndex  = "FT.ALTER"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpAggregate   = "FT.AGGREGATE"
	OpCursorRead  = "FT.CURSOR READ"
	OpHMGet       = "HMGET"
	OpHSet        = "HSET"
	OpJSONGet     = "JSON.GET"
	OpJSONSet     = "JSON.SET"
	OpGet         = "GET"
	OpSet         = "SET"

	OpGetIndex    = "GET /indexes"
	OpPutIndex    = "PUT /indexes"
	OpSearchDocs  = "POST /docs/search"
	OpIndexDocs   = "POST /docs/index"
	OpServiceStat = "GET /servicestats"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
