package protocol

import (
	"fmt"
	"strconv"
)

// Capacity margins and bounds, in µl unless noted.
const (
	plateWells    = 96 // destination plate capacity
	rackPositions = 24 // tube positions per sample rack

	dilutionMin = 1.0
	dilutionMax = 25.0

	// additiveDeadVolume is the fluid an additive tube must hold beyond the
	// total dispensed: the unreachable volume at the tube bottom.
	additiveDeadVolume = 20.0

	// reservoirMargin is the minimum slack required in diluent and control
	// tubes beyond the total drawn over the plan.
	reservoirMargin = 100.0
)

// requiredColumns returns the sample sheet columns a variant cannot run
// without.
func requiredColumns(variant Variant) []string {
	base := []string{ColSampleName, ColTray, ColSource, ColDest}
	if variant == VariantAssay {
		return append(base, ColDilution)
	}
	return append(base, ColSampleVol, ColDiluentVol)
}

// BuildPlan runs the full pre-flight pass: it types and normalizes the
// sample sheet, applies the ordered capacity and geometry checks, and
// computes every reservoir's starting aspiration height. It is
// side-effect-free and all-or-nothing: the first violation aborts with a
// typed *ValidationError and no instrument has moved.
func BuildPlan(variant Variant, params *Params, sheet *SampleSheet) (*Plan, error) {
	// 1. required columns, naming the first one missing
	for _, col := range requiredColumns(variant) {
		if !sheet.HasColumn(col) {
			return nil, validationErrorf(KindMissingColumn,
				"sample sheet is missing the required column %q", col)
		}
	}

	// 2. type the rows, normalizing coordinates as we go
	records := make([]SampleRecord, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		rec := SampleRecord{
			Name:   row[ColSampleName],
			Source: NormalizeCoord(Coord(row[ColSource])),
			Dest:   NormalizeCoord(Coord(row[ColDest])),
		}
		tray, err := strconv.Atoi(row[ColTray])
		if err != nil {
			return nil, validationErrorf(KindBadTray,
				"row %d (%s): aspirate tray %q is not a number", i+1, rec.Name, row[ColTray])
		}
		rec.Tray = tray

		switch variant {
		case VariantAssay:
			d, err := strconv.ParseFloat(row[ColDilution], 64)
			if err != nil {
				return nil, validationErrorf(KindBadValue,
					"row %d (%s): dilution %q is not a number", i+1, rec.Name, row[ColDilution])
			}
			rec.Dilution = d
		case VariantNormalizer:
			sv, err := strconv.ParseFloat(row[ColSampleVol], 64)
			if err != nil {
				return nil, validationErrorf(KindBadValue,
					"row %d (%s): sample volume %q is not a number", i+1, rec.Name, row[ColSampleVol])
			}
			dv, err := strconv.ParseFloat(row[ColDiluentVol], 64)
			if err != nil {
				return nil, validationErrorf(KindBadValue,
					"row %d (%s): diluent volume %q is not a number", i+1, rec.Name, row[ColDiluentVol])
			}
			rec.SampleVol, rec.DiluentVol = sv, dv
		}
		records = append(records, rec)
	}

	// 3. every destination must be a valid plate position
	for _, rec := range records {
		if !ValidPlateCoord(rec.Dest) {
			return nil, validationErrorf(KindBadCoordinate,
				"dispense location %q (%s) is not a valid plate position", rec.Dest, rec.Name)
		}
	}

	// 4. every source must be valid for its tray class
	for _, rec := range records {
		if rs := checkControlSource(variant, params, rec.Source); rs != nil {
			return nil, rs
		}
		if isControlSource(variant, rec.Source) {
			continue
		}
		if params.SampleRacks == 0 {
			if !ValidPlateCoord(rec.Source) {
				return nil, validationErrorf(KindBadCoordinate,
					"aspirate location %q (%s) is not a valid plate position", rec.Source, rec.Name)
			}
		} else if !ValidRackCoord(rec.Source) {
			return nil, validationErrorf(KindBadCoordinate,
				"aspirate location %q (%s) is not a valid tube rack position", rec.Source, rec.Name)
		}
	}

	// 5. tray indices: zero declared racks forces every tray to 0, otherwise
	// each tray must be one of 0..4 and within the declared rack count
	if params.SampleRacks < 0 || params.SampleRacks > maxSampleRacks {
		return nil, validationErrorf(KindBadTray,
			"number of sample racks must be 0 (plate) or 1-%d, got %d", maxSampleRacks, params.SampleRacks)
	}
	for i := range records {
		if params.SampleRacks == 0 {
			records[i].Tray = 0
			continue
		}
		if records[i].Tray < 0 || records[i].Tray > maxSampleRacks {
			return nil, validationErrorf(KindBadTray,
				"aspirate tray %d (%s) is not valid", records[i].Tray, records[i].Name)
		}
	}

	// 6. distinct source positions must fit the declared racks (controls
	// live off-rack and do not count)
	type trayCoord struct {
		tray int
		src  Coord
	}
	distinct := map[trayCoord]struct{}{}
	for _, rec := range records {
		if isControlSource(variant, rec.Source) {
			continue
		}
		distinct[trayCoord{rec.Tray, rec.Source}] = struct{}{}
	}
	capacity := plateWells
	if params.SampleRacks > 0 {
		capacity = params.SampleRacks * rackPositions
	}
	if len(distinct) > capacity {
		return nil, validationErrorf(KindCapacityExceeded,
			"%d distinct sample positions exceed the declared capacity of %d", len(distinct), capacity)
	}

	// 7. the run must fit the destination plate
	if len(records) > plateWells {
		return nil, validationErrorf(KindCapacityExceeded,
			"%d records will not fit on a %d-well plate", len(records), plateWells)
	}

	if variant == VariantAssay {
		// 8. any dilution beyond neat needs a diluent on deck
		for _, rec := range records {
			if rec.Dilution > 1 && !params.Diluent.Configured() {
				return nil, validationErrorf(KindOutOfRange,
					"sample %q requests a dilution but no diluent position is configured", rec.Name)
			}
		}
		// 9. dilution factors are bounded
		for _, rec := range records {
			if rec.Dilution < dilutionMin || rec.Dilution > dilutionMax {
				return nil, validationErrorf(KindOutOfRange,
					"dilution for %q is %g; it must be between %g and %g",
					rec.Name, rec.Dilution, dilutionMin, dilutionMax)
			}
		}
		// derive per-record volumes from the dilution factor
		for i := range records {
			records[i].SampleVol = params.SampleVolPerWell / records[i].Dilution
			records[i].DiluentVol = params.SampleVolPerWell - records[i].SampleVol
		}
	}

	plan := &Plan{
		Variant: variant,
		Params:  params,
		Records: records,
		trays:   trayLabwareMap(),
	}

	if err := checkCapacities(plan); err != nil {
		return nil, err
	}
	if err := buildReservoirs(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// isControlSource reports whether src is a control sentinel usable in this
// variant.
func isControlSource(variant Variant, src Coord) bool {
	return variant == VariantNormalizer && (src == ControlSource1 || src == ControlSource2)
}

// checkControlSource rejects control sentinels that have no enabled control
// behind them (and any control sentinel in the assay variant).
func checkControlSource(variant Variant, params *Params, src Coord) *ValidationError {
	if src != ControlSource1 && src != ControlSource2 {
		return nil
	}
	if variant != VariantNormalizer {
		return validationErrorf(KindBadCoordinate,
			"control sample %q is not usable in the assay workflow", src)
	}
	if src == ControlSource1 && !params.Control1.Enabled {
		return validationErrorf(KindBadCoordinate,
			"sample sheet references %s but control 1 is not enabled", src)
	}
	if src == ControlSource2 && !params.Control2.Enabled {
		return validationErrorf(KindBadCoordinate,
			"sample sheet references %s but control 2 is not enabled", src)
	}
	return nil
}

// trayLabwareMap resolves every legal tray index to its labware identity
// once, so the sequencer never branches on tray tags.
func trayLabwareMap() map[int]string {
	m := make(map[int]string, maxSampleRacks+1)
	for i := 0; i <= maxSampleRacks; i++ {
		m[i] = rackLabware(i)
	}
	return m
}

// checkCapacities verifies every reservoir the plan draws from holds enough
// fluid for the whole run, with the margins each reservoir role requires.
func checkCapacities(plan *Plan) error {
	p := plan.Params
	n := len(plan.Records)

	var totalSample, totalDiluent, cntl1Draw, cntl2Draw float64
	for _, rec := range plan.Records {
		totalSample += rec.SampleVol
		totalDiluent += rec.DiluentVol
		switch rec.Source {
		case ControlSource1:
			cntl1Draw += rec.SampleVol
		case ControlSource2:
			cntl2Draw += rec.SampleVol
		}
	}

	switch plan.Variant {
	case VariantAssay:
		if p.DispenseReagent {
			need := float64(n) * p.ReagentVolPerWell
			if need > p.Reagent.Volume {
				return validationErrorf(KindCapacityExceeded,
					"insufficient reagent volume: %d records need %g µl, tube holds %g µl",
					n, need, p.Reagent.Volume)
			}
			// the tube must also stay one well-volume above empty after
			// every draw, or the final aspirations run dry
			if p.Reagent.Volume < need+p.ReagentVolPerWell {
				return validationErrorf(KindCapacityExceeded,
					"reagent volume %g µl leaves less than one well volume (%g µl) in reserve",
					p.Reagent.Volume, p.ReagentVolPerWell)
			}
		}
		if totalDiluent > 0 && p.Diluent.Volume < totalDiluent+p.SampleVolPerWell {
			return validationErrorf(KindCapacityExceeded,
				"insufficient diluent volume: need %g µl plus a %g µl floor, tube holds %g µl",
				totalDiluent, p.SampleVolPerWell, p.Diluent.Volume)
		}

	case VariantNormalizer:
		if p.TCEP.Enabled {
			need := float64(n)*p.TCEP.VolPerWell + additiveDeadVolume
			if need > p.TCEP.Volume {
				return validationErrorf(KindCapacityExceeded,
					"not enough tcep reagent: you need at least %g µl", need)
			}
		}
		if p.IAM.Enabled {
			need := float64(n)*p.IAM.VolPerWell + additiveDeadVolume
			if need > p.IAM.Volume {
				return validationErrorf(KindCapacityExceeded,
					"not enough iam reagent: you need at least %g µl", need)
			}
		}
		if need := totalDiluent + reservoirMargin; need > p.Diluent.Volume {
			return validationErrorf(KindCapacityExceeded,
				"not enough diluent: you need at least %g µl", need)
		}
		if p.Control1.Enabled {
			if need := cntl1Draw + reservoirMargin; need > p.Control1.Volume {
				return validationErrorf(KindCapacityExceeded,
					"not enough control 1 volume: you need at least %g µl", need)
			}
		}
		if p.Control2.Enabled {
			if need := cntl2Draw + reservoirMargin; need > p.Control2.Volume {
				return validationErrorf(KindCapacityExceeded,
					"not enough control 2 volume: you need at least %g µl", need)
			}
		}
	}
	return nil
}

// buildReservoirs computes every configured reservoir's starting height from
// its own fill volume and attaches the set to the plan.
func buildReservoirs(plan *Plan) error {
	p := plan.Params
	var err error

	switch plan.Variant {
	case VariantAssay:
		// the assay keeps reagent and diluent in conicals on the reagent rack
		if plan.Reservoirs.Reagent, err = newPlanReservoir("reagent", p.Reagent, false); err != nil {
			return err
		}
		if p.Diluent.Configured() {
			if plan.Reservoirs.Diluent, err = newPlanReservoir("diluent", p.Diluent, false); err != nil {
				return err
			}
		}
	case VariantNormalizer:
		if plan.Reservoirs.Diluent, err = newPlanReservoir("diluent", p.Diluent, true); err != nil {
			return err
		}
		if p.TCEP.Enabled {
			if plan.Reservoirs.TCEP, err = newPlanReservoir("tcep", p.TCEP.ReservoirParams, true); err != nil {
				return err
			}
		}
		if p.IAM.Enabled {
			if plan.Reservoirs.IAM, err = newPlanReservoir("iam", p.IAM.ReservoirParams, true); err != nil {
				return err
			}
		}
		if p.Control1.Enabled {
			if plan.Reservoirs.Control1, err = newPlanReservoir("control 1", p.Control1.ReservoirParams, true); err != nil {
				return err
			}
		}
		if p.Control2.Enabled {
			if plan.Reservoirs.Control2, err = newPlanReservoir("control 2", p.Control2.ReservoirParams, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// newPlanReservoir parses a reservoir's tube class and builds it with its
// starting height. allow2ML is false for the assay variant, whose reservoirs
// must sit in Falcon conicals.
func newPlanReservoir(name string, rp ReservoirParams, allow2ML bool) (*Reservoir, error) {
	class, err := ParseTubeClass(rp.TubeSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if !allow2ML && class == Tube2ML {
		return nil, validationErrorf(KindBadTubeClass,
			"the %s must be in a 15 ml or 50 ml Falcon tube", name)
	}
	loc := Location{Labware: reservoirLabware(class), Well: NormalizeCoord(Coord(rp.Location))}
	return NewReservoir(name, class, loc, rp.Volume), nil
}
