package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementEvidence is the measurement holding mirrored evidence records.
const MeasurementEvidence = "evidence_events"

// MeasurementReadiness is the measurement holding one point per readiness run.
const MeasurementReadiness = "readiness_runs"

// EvidencePoint is one evidence record as mirrored into InfluxDB.
//
// StoreKey, Platform and EventType become tags; identifiers and the payload
// are fields so entity churn does not blow up series cardinality.
type EvidencePoint struct {
	StoreKey   string
	Category   string
	Platform   string
	EventType  string
	EntityID   string
	DeviceID   string
	RecordID   string
	Payload    string
	ObservedAt time.Time
}

// WriteEvidence queues an evidence point. Non-blocking; dropped silently
// when the client is closed.
func (c *Client) WriteEvidence(p EvidencePoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newEvidencePoint(p))
}

func newEvidencePoint(p EvidencePoint) *write.Point {
	tags := map[string]string{
		"store_key":  p.StoreKey,
		"event_type": p.EventType,
	}
	if p.Category != "" {
		tags["category"] = p.Category
	}
	if p.Platform != "" {
		tags["platform"] = p.Platform
	}

	fields := map[string]interface{}{
		"record_id": p.RecordID,
		"payload":   p.Payload,
	}
	if p.EntityID != "" {
		fields["entity_id"] = p.EntityID
	}
	if p.DeviceID != "" {
		fields["device_id"] = p.DeviceID
	}

	ts := p.ObservedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(MeasurementEvidence, tags, fields, ts)
}

// WritePoint writes a custom point stamped now, for ad-hoc measurements such
// as readiness run summaries.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
