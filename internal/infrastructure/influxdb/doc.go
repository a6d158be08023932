// Package influxdb records device telemetry history in InfluxDB v2.
//
// Every device mutation produces a point: battery level, status and online
// flag, location, and issued commands. Points are tagged with device_id and
// owner_id so dashboards can slice per robot or per customer.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry history off
//	}
//	defer client.Close()
//
//	client.WriteBattery("dev-1", "user-1", 18, true, time.Now())
//
// Writes are batched by the underlying client and never block the caller.
package influxdb
