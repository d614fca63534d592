// Package influxdb records launcher startup and shutdown timings in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Writes are
// non-blocking and batched; asynchronous write errors reach the callback set
// with SetOnError. The integration is optional and disabled by default.
//
// Two measurements are written:
//
//	launcher_startup   tags: session          fields: port_scan_ms, resolve_ms, spawn_ms, health_ms, total_ms, port, healthy
//	launcher_shutdown  tags: session, outcome fields: duration_ms, pid, exit_code
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, influxdb.WithDefaultTag("version", version))
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // integration off
//	}
//	defer client.Close()
//	bus.Subscribe("influxdb", influxdb.NewRecorder(client))
package influxdb
