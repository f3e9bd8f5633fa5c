// Package database manages the SQLite connection for BotLink Core.
//
// It wraps database/sql with:
//   - Connection setup (WAL mode, busy timeout, foreign keys, file permissions)
//   - Embedded SQL migrations applied at startup (see the migrations package)
//   - Health checks for readiness reporting
//
// SQLite is opened with a single-connection pool: the hub's persistence is
// fire-and-forget and low-volume, so one serialized writer is sufficient
// and avoids lock contention.
package database
