// Package influxdb mirrors evidence records into InfluxDB.
//
// The SQLite evidence stores are the system of record. This package keeps a
// secondary, query-friendly timeline in the "evidence_events" measurement so
// investigators can correlate events across devices with Flux or the
// InfluxDB UI.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // mirror off
//	}
//	defer client.Close()
//
//	client.WriteEvidence(influxdb.EvidencePoint{
//	    StoreKey:  "fe_dev_0f3a9c",
//	    EventType: "state_changed",
//	    EntityID:  "light.kitchen",
//	})
//
// # Error Handling
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Failures are delivered to the SetOnError callback.
package influxdb
