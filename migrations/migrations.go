// Package migrations embeds the ledger schema for both supported
// databases. The immutability guard lives here, not in application code:
// row-level triggers reject any UPDATE or DELETE against committed
// transactions and entries, so even direct store access cannot rewrite
// history. Operational resets must use TRUNCATE, which bypasses FOR EACH
// ROW triggers by design of the database, not of this code.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

//go:embed sqlite/*.sql
var SQLite embed.FS
