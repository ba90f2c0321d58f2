// Package evidence provisions evidence stores for objects of forensic
// interest and registers the collectors that fill them.
//
// Store keys are Prefix, a fixed-width category tag, and the object id:
//
//	fe_dev_<device id>      device
//	fe_lan_<component id>   LAN component
//	fe_ppp_<platform>       platform poll/push log
//	fe_aut_<platform>       platform automation log (reserved)
//	fe_con_<platform>       platform connector log (reserved)
//
// Device and LAN stores carry a category tag, so they are not named
// fe_<id> as in earlier store layouts. Without the tag a device id could
// equal a LAN component id or a platform name and share its store.
// ParseKey rejects the untagged names.
//
// The Provisioner runs once after the inventory is built and returns a
// HandleSet. The Registrar then subscribes the cloud path to the state
// changes of every registered entity; each event is routed by Route and
// appended, in delivery order, to the device store and the platform's
// poll/push store. The LAN and device paths are registered but reserved.
//
// SQLiteBackend persists stores in the evidence_stores and evidence_records
// tables created by the migrations package.
package evidence
