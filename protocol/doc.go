// Package protocol implements the volumetric planning core for a robotic
// plate-preparation run: the tube geometry/decay model, the pre-flight
// capacity validator, and the dispense sequencer that drives an external
// instrument driver over a validated plan.
//
// Two workflow variants share this core: a protein-quantification assay
// (per-record dilution factors) and a sample normalizer (explicit per-record
// sample/diluent volumes). Everything that can fail is checked before a
// single physical action is issued.
package protocol
