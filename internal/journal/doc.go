// Package journal records one row per launcher run in the launches table.
//
// SQLiteRepository subscribes to the lifecycle event bus and fills in the
// row for the current session as events arrive: chosen port, backend path
// and PID, health result, startup time, and finally the shutdown outcome.
// Recent and Get serve the control API's launch history.
//
// Journal writes are best effort. A failed write is logged and the launch
// continues.
package journal
