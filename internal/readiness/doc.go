// Package readiness wires the forensic readiness pipeline together.
//
// A Setup is built once per process from configuration and its
// collaborators, and owns every stage:
//
//	configure filter -> build inventory -> start maintenance -> provision stores -> register collectors
//
// Configuration and consistency errors stop Run. Maintenance, provisioning
// and registration problems are logged, recorded in the Report, and leave
// the rest of the pipeline running with fewer objects covered.
package readiness
