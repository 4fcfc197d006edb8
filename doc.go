// The [st9] package is a typed client for the ST9 indexed key-value store.
//
// # Types
//
// Entity types are declared once, at startup, in a [models.Registry]. A
// declaration lists typed attributes, secondary indexes, counters, an
// optional fulltext definition and has-one / has-many edges to other types.
// Declarations can be written in Go as [models.TypeSpec] values or loaded
// from YAML with [models.LoadTypeSpecs].
//
// # Connecting
//
// Provide the ST9 endpoint URL to [FromEndpointURLString], or a
// [config.Config] to [FromConfig]. [FromConnection] accepts any
// [connection.Connection], which is how tests plug in fakes.
//
// # Finding
//
// [DB.Find] and [DB.FindMany] read entities by id. [DB.FindWithIndex] scans
// an index and returns a [cursor.Cursor]: ids are fetched page by page and
// entities only when the cursor is read. [DB.FindUnique] reads a unique
// index entry and [DB.Count] a counter.
//
// # Units of work
//
// [DB.WithIdentityMap] attaches an identity cache to a context. Every lookup
// made with that context returns the same instance for the same id until the
// entity is updated or destroyed. A context is meant for one goroutine.
//
// # Cascades
//
// Destroying or quarantining an entity whose type declares has-many edges
// walks those edges. This is refused with [constants.ErrCascade] unless
// cascades are allowed in the configuration. The walk is not
// transactional: an error part way leaves earlier deletions in place.
package st9
