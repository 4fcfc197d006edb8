package constants

import "time"

var (
	HTTPScheme       = "http"
	HTTPSecureScheme = "https"
)

const (
	// MultiGetBatchMax is the number of ids sent in one multi-get request.
	// Longer id lists are split client-side to stay under query-length limits.
	MultiGetBatchMax = 100

	// TimestampLayout is the fixed-width UTC layout used on the wire for
	// utc_date_secs attributes.
	TimestampLayout = "20060102T150405-0700"

	DefaultHTTPTimeout = 10 * time.Second

	// AllIndex is the pseudo index that scans every entity of a type.
	AllIndex = "all"

	// FulltextName is the only fulltext definition name an entity type may carry.
	FulltextName = "fulltext"

	VersionConflictBody = "version conflict"
	UniqueViolationBody = "unique index constraint violation"
)

// Wire paths. Entity ids are full db ids of the form "@type:token".
const (
	EntityPath     = "/1.0/e/"
	MultiGetPath   = "/1.0/e/multi"
	IndexPath      = "/1.0/i/"
	UniquePath     = "/1.0/u/"
	CounterPath    = "/1.0/c/"
	SchemaPath     = "/1.0/s/"
	QuarantinePath = "/1.0/q/"
	NukePath       = "/1.0/nuke"
	PingPath       = "/ping"

	IncludeQuarantineParam = "includeQuarantine=true"
	QuarantinedField       = "$quarantined"
)
