package readiness

import (
	"github.com/nerrad567/gray-logic-forensics/internal/evidence"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/influxdb"
)

// EvidenceWriter accepts mirrored evidence points. Satisfied by
// *influxdb.Client.
type EvidenceWriter interface {
	WriteEvidence(p influxdb.EvidencePoint)
}

// InfluxMirror copies stored evidence records into InfluxDB.
type InfluxMirror struct {
	w EvidenceWriter
}

// NewInfluxMirror returns a mirror writing to w.
func NewInfluxMirror(w EvidenceWriter) *InfluxMirror {
	return &InfluxMirror{w: w}
}

// MirrorRecord implements evidence.Mirror.
func (m *InfluxMirror) MirrorRecord(h *evidence.Handle, rec evidence.Record) {
	m.w.WriteEvidence(influxdb.EvidencePoint{
		StoreKey:   h.Key,
		Category:   string(h.Category),
		Platform:   rec.Platform,
		EventType:  rec.EventType,
		EntityID:   rec.EntityID,
		DeviceID:   rec.DeviceID,
		RecordID:   rec.ID,
		Payload:    string(rec.Payload),
		ObservedAt: rec.ObservedAt,
	})
}
