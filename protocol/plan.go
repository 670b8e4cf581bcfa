package protocol

import "fmt"

// Variant selects which of the two workflow shapes a plan follows.
type Variant int

const (
	// VariantAssay builds an assay plate: per-record dilution factors, an
	// optional bulk reagent pass after the main loop setup.
	VariantAssay Variant = iota
	// VariantNormalizer equalizes protein concentration across wells:
	// explicit per-record sample/diluent volumes, optional additive passes.
	VariantNormalizer
)

func (v Variant) String() string {
	if v == VariantNormalizer {
		return "normalizer"
	}
	return "assay"
}

// Labware identities handed to the driver. The external labware resolver
// maps these plus a coordinate to a physical deck position.
const (
	PlateLabware       = "destination plate"
	LysatePlateLabware = "lysate plate" // samples-in-a-plate source (tray 0)
	ConicalRackLabware = "reagent tubes" // 15/50 ml conical rack
	TwoMLRackLabware   = "2 ml tube rack"
)

// maxSampleRacks bounds the number of discrete 24-tube sample racks.
const maxSampleRacks = 4

// rackLabware names the labware for a sample tray index.
func rackLabware(tray int) string {
	if tray == 0 {
		return LysatePlateLabware
	}
	return fmt.Sprintf("sample rack %d", tray)
}

// reservoirLabware names the labware holding a reservoir of the given class:
// 2 ml tubes sit on their own rack, conicals share the reagent rack.
func reservoirLabware(class TubeClass) string {
	if class == Tube2ML {
		return TwoMLRackLabware
	}
	return ConicalRackLabware
}

// SampleRecord is one validated row of the plan. SampleVol and DiluentVol
// are always populated: the assay variant derives them from the dilution
// factor, the normalizer reads them from the sheet.
type SampleRecord struct {
	Name       string
	Tray       int
	Source     Coord
	Dest       Coord
	Dilution   float64 // assay only; 1 means neat
	SampleVol  float64 // µl drawn from the source
	DiluentVol float64 // µl of diluent to reach the target well volume
}

// ReservoirSet holds the tracked reservoirs a validated plan references,
// with starting heights already computed. Entries are nil when the workflow
// does not use them.
type ReservoirSet struct {
	Reagent  *Reservoir
	Diluent  *Reservoir
	TCEP     *Reservoir
	IAM      *Reservoir
	Control1 *Reservoir
	Control2 *Reservoir
}

// ControlFor resolves a control sentinel source to its reservoir, or nil.
func (rs *ReservoirSet) ControlFor(src Coord) *Reservoir {
	switch src {
	case ControlSource1:
		return rs.Control1
	case ControlSource2:
		return rs.Control2
	}
	return nil
}

// Plan is the validated, ordered sequence of sample records plus the global
// parameters and reservoir state driving one run. Immutable after BuildPlan
// except for the reservoir height/volume pairs, which are owned by the
// sequencer loop.
type Plan struct {
	Variant    Variant
	Params     *Params
	Records    []SampleRecord
	Reservoirs ReservoirSet

	// trays maps a sample tray index to its labware identity, resolved once
	// during plan construction.
	trays map[int]string
}

// SourceLocation resolves a record's aspirate position. Control sentinels
// resolve to the configured control tube.
func (p *Plan) SourceLocation(rec SampleRecord) Location {
	if ctl := p.Reservoirs.ControlFor(rec.Source); ctl != nil {
		return ctl.Location
	}
	return Location{Labware: p.trays[rec.Tray], Well: rec.Source}
}

// DestLocation resolves a record's dispense position on the target plate.
func (p *Plan) DestLocation(rec SampleRecord) Location {
	return Location{Labware: PlateLabware, Well: rec.Dest}
}
