// Package database provides the SQLite store behind the launch journal.
//
// The database is a single file under the user's cache directory. It is
// opened with a busy timeout and foreign keys on, optionally in WAL mode, and
// limited to one connection since the launcher is its only writer.
//
// Schema changes are embedded SQL migrations (package migrations) applied in
// version order, each in its own transaction:
//
//	db, err := database.Open(ctx, database.Config{Path: path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql.
package database
