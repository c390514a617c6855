package connector

import "github.com/fluxondata/pgwrap/pool"

// Stats mirrors the pool's connection counts for callers that configure
// connections through this package without importing the pool directly.
type Stats = pool.Stats
