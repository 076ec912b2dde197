// Package mysql provides the session archive repositories backed by MySQL,
// plus a JSON-log fallback for development. It encapsulates schema migrations
// and connection pool management. The archive is write-only history and is
// never consulted on the routing path.
package mysql
