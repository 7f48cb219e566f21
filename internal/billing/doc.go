// Package billing provides the client-side machinery for pulling merchant
// data from the external billing platform.
//
// The package is organized around three layers:
//
//   - Execute: bounded retry with exponential backoff and jitter for a single
//     API call, classifying failures into a closed set of error kinds
//   - FetchAll: cursor-based pagination over a list endpoint, bounded by a
//     page ceiling, with every page request going through Execute
//   - Client: typed facade exposing the list-all and get-by-id operations the
//     sync pipeline consumes
//
// Retryability is decided exclusively on the abstract ErrorKind of a failure,
// never on the concrete type of an underlying transport error. The kinds
// rate_limited, connection and api_error are transient; everything else
// aborts the call immediately.
//
// All list operations return bounded snapshots: when a walk hits the page
// ceiling the accumulated items are returned as-is and a truncation warning
// is logged. Callers must treat results as possibly incomplete rather than
// as an error.
package billing
