package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assayParams() *Params {
	return &Params{
		SampleRacks:       1,
		SampleVolPerWell:  200,
		SampleAspHeight:   2,
		AspirateDelaySec:  1,
		DispenseReagent:   true,
		ReagentVolPerWell: 50,
		Reagent:           ReservoirParams{Location: "A3", TubeSize: "50 ml", Volume: 20000},
		Diluent:           ReservoirParams{Location: "A4", TubeSize: "15 ml", Volume: 10000},
	}
}

func normParams() *Params {
	return &Params{
		SampleRacks:      1,
		SampleAspHeight:  2,
		AspirateDelaySec: 1,
		Diluent:          ReservoirParams{Location: "A3", TubeSize: "15 ml", Volume: 5000},
	}
}

func assayRow(name, tray, src, dest, dilution string) map[string]string {
	return map[string]string{
		ColSampleName: name, ColTray: tray, ColSource: src, ColDest: dest, ColDilution: dilution,
	}
}

func normRow(name, tray, src, dest, sampleVol, diluentVol string) map[string]string {
	return map[string]string{
		ColSampleName: name, ColTray: tray, ColSource: src, ColDest: dest,
		ColSampleVol: sampleVol, ColDiluentVol: diluentVol,
	}
}

func sheetOf(variant Variant, rows ...map[string]string) *SampleSheet {
	return &SampleSheet{Columns: requiredColumns(variant), Rows: rows}
}

// plateWell returns the i-th plate coordinate in row-major order.
func plateWell(i int) string {
	return fmt.Sprintf("%c%d", 'A'+i/12, i%12+1)
}

// rackWell returns the i-th tube rack coordinate in row-major order.
func rackWell(i int) string {
	return fmt.Sprintf("%c%d", 'A'+i/6, i%6+1)
}

func requireKind(t *testing.T, err error, kind ValidationKind) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, kind, verr.Kind, "got %v", err)
	return verr
}

func TestBuildPlan_MissingColumn_NamesIt(t *testing.T) {
	// GIVEN an assay sheet without the dilution column
	sheet := &SampleSheet{
		Columns: []string{ColSampleName, ColTray, ColSource, ColDest},
		Rows:    []map[string]string{assayRow("s1", "1", "A1", "A1", "")},
	}

	// WHEN the plan is built
	_, err := BuildPlan(VariantAssay, assayParams(), sheet)

	// THEN the diagnostic names the missing column
	verr := requireKind(t, err, KindMissingColumn)
	assert.Contains(t, verr.Msg, ColDilution)
}

func TestBuildPlan_NormalizesCoordinates(t *testing.T) {
	sheet := sheetOf(VariantAssay, assayRow("s1", "1", "a1", "b07", "1"))

	plan, err := BuildPlan(VariantAssay, assayParams(), sheet)
	require.NoError(t, err)

	assert.Equal(t, Coord("A1"), plan.Records[0].Source)
	assert.Equal(t, Coord("B7"), plan.Records[0].Dest)
}

func TestBuildPlan_BadDispenseLocation(t *testing.T) {
	sheet := sheetOf(VariantAssay, assayRow("s1", "1", "A1", "J1", "1"))

	_, err := BuildPlan(VariantAssay, assayParams(), sheet)

	verr := requireKind(t, err, KindBadCoordinate)
	assert.Contains(t, verr.Msg, "J1")
}

func TestBuildPlan_SourceValidityFollowsTrayClass(t *testing.T) {
	// GIVEN a source that is a plate position but not a rack position
	sheet := sheetOf(VariantAssay, assayRow("s1", "1", "H10", "A1", "1"))

	// WHEN racks are declared, the rack addressing rejects it
	_, err := BuildPlan(VariantAssay, assayParams(), sheet)
	requireKind(t, err, KindBadCoordinate)

	// AND WHEN the samples sit in a plate (0 racks), it passes
	p := assayParams()
	p.SampleRacks = 0
	plan, err := BuildPlan(VariantAssay, p, sheet)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Records[0].Tray)
}

func TestBuildPlan_ZeroRacks_ForcesTrayZero(t *testing.T) {
	// GIVEN a sheet claiming tray 3 while the plan declares zero racks
	p := assayParams()
	p.SampleRacks = 0
	sheet := sheetOf(VariantAssay, assayRow("s1", "3", "C9", "A1", "1"))

	plan, err := BuildPlan(VariantAssay, p, sheet)
	require.NoError(t, err)

	// THEN the tray is forced to 0 regardless of the sheet
	assert.Equal(t, 0, plan.Records[0].Tray)
}

func TestBuildPlan_InvalidTrayNumber(t *testing.T) {
	sheet := sheetOf(VariantAssay, assayRow("s1", "5", "A1", "A1", "1"))

	_, err := BuildPlan(VariantAssay, assayParams(), sheet)

	requireKind(t, err, KindBadTray)
}

func TestBuildPlan_DistinctSourcesExceedRackCapacity(t *testing.T) {
	// GIVEN one declared rack but 25 distinct (tray, position) sources
	rows := make([]map[string]string, 0, 25)
	for i := 0; i < 24; i++ {
		rows = append(rows, assayRow(fmt.Sprintf("s%d", i), "1", rackWell(i), plateWell(i), "1"))
	}
	rows = append(rows, assayRow("s24", "2", "A1", plateWell(24), "1"))
	sheet := sheetOf(VariantAssay, rows...)

	_, err := BuildPlan(VariantAssay, assayParams(), sheet)

	verr := requireKind(t, err, KindCapacityExceeded)
	assert.Contains(t, verr.Msg, "25")
}

func TestBuildPlan_TooManyRecordsForPlate(t *testing.T) {
	rows := make([]map[string]string, 0, 97)
	for i := 0; i < 97; i++ {
		rows = append(rows, assayRow(fmt.Sprintf("s%d", i), "1", "A1", plateWell(i%96), "1"))
	}
	// plenty of reagent so the plate capacity check is what fires
	p := assayParams()
	p.Reagent.Volume = 50000
	sheet := sheetOf(VariantAssay, rows...)

	_, err := BuildPlan(VariantAssay, p, sheet)

	verr := requireKind(t, err, KindCapacityExceeded)
	assert.Contains(t, verr.Msg, "97")
}

func TestBuildPlan_DilutionWithoutDiluent(t *testing.T) {
	p := assayParams()
	p.Diluent = ReservoirParams{}
	sheet := sheetOf(VariantAssay, assayRow("s1", "1", "A1", "A1", "2"))

	_, err := BuildPlan(VariantAssay, p, sheet)

	requireKind(t, err, KindOutOfRange)
}

func TestBuildPlan_DilutionBounds(t *testing.T) {
	// GIVEN dilution factors outside [1, 25]
	for _, bad := range []string{"0.5", "30"} {
		sheet := sheetOf(VariantAssay, assayRow("s1", "1", "A1", "A1", bad))
		_, err := BuildPlan(VariantAssay, assayParams(), sheet)
		requireKind(t, err, KindOutOfRange)
	}

	// AND the boundary values 1 and 25 are accepted
	for _, ok := range []string{"1", "25"} {
		sheet := sheetOf(VariantAssay, assayRow("s1", "1", "A1", "A1", ok))
		_, err := BuildPlan(VariantAssay, assayParams(), sheet)
		assert.NoError(t, err, "dilution %s", ok)
	}
}

func TestBuildPlan_ReagentCapacity(t *testing.T) {
	// GIVEN 25 records at 50 µl reagent per well
	rows := make([]map[string]string, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, assayRow(fmt.Sprintf("s%d", i), "1", rackWell(i%24), plateWell(i), "1"))
	}
	sheet := sheetOf(VariantAssay, rows...)

	// WHEN the tube holds only 1000 µl
	p := assayParams()
	p.Reagent.Volume = 1000
	_, err := BuildPlan(VariantAssay, p, sheet)

	// THEN the plan is rejected before anything moves
	requireKind(t, err, KindCapacityExceeded)

	// AND 1500 µl is enough (1250 drawn plus one well volume in reserve)
	p.Reagent.Volume = 1500
	_, err = BuildPlan(VariantAssay, p, sheet)
	assert.NoError(t, err)
}

func TestBuildPlan_AssayDerivesVolumes(t *testing.T) {
	// GIVEN dilutions [1, 2, 4] with a 200 µl target well volume
	sheet := sheetOf(VariantAssay,
		assayRow("neat", "1", "A1", "A1", "1"),
		assayRow("half", "1", "A2", "A2", "2"),
		assayRow("quarter", "1", "A3", "A3", "4"),
	)

	plan, err := BuildPlan(VariantAssay, assayParams(), sheet)
	require.NoError(t, err)

	// THEN the sample/diluent pairs are (200,0), (100,100), (50,150)
	want := []struct{ sample, diluent float64 }{{200, 0}, {100, 100}, {50, 150}}
	for i, w := range want {
		assert.Equal(t, w.sample, plan.Records[i].SampleVol, "record %d sample", i)
		assert.Equal(t, w.diluent, plan.Records[i].DiluentVol, "record %d diluent", i)
	}
}

func TestBuildPlan_AssayDiluentFloor(t *testing.T) {
	// GIVEN a plan drawing 150 µl of diluent with a 200 µl floor required
	sheet := sheetOf(VariantAssay, assayRow("s1", "1", "A1", "A1", "4"))
	p := assayParams()
	p.Diluent.Volume = 300 // 150 needed + 200 floor > 300

	_, err := BuildPlan(VariantAssay, p, sheet)

	requireKind(t, err, KindCapacityExceeded)
}

func TestBuildPlan_AssayRejects2MLReservoir(t *testing.T) {
	p := assayParams()
	p.Reagent.TubeSize = "2 ml"
	sheet := sheetOf(VariantAssay, assayRow("s1", "1", "A1", "A1", "1"))

	_, err := BuildPlan(VariantAssay, p, sheet)

	requireKind(t, err, KindBadTubeClass)
}

func TestBuildPlan_NormalizerAdditiveMargins(t *testing.T) {
	// GIVEN 3 records and a 10 µl/well additive pass (30 µl + 20 µl dead volume)
	rows := []map[string]string{
		normRow("s1", "1", "A1", "A1", "50", "50"),
		normRow("s2", "1", "A2", "A2", "50", "50"),
		normRow("s3", "1", "A3", "A3", "50", "50"),
	}
	p := normParams()
	p.TCEP = AdditiveParams{Enabled: true, VolPerWell: 10,
		ReservoirParams: ReservoirParams{Location: "A1", TubeSize: "2 ml", Volume: 40}}

	// WHEN the tube holds less than need+margin
	_, err := BuildPlan(VariantNormalizer, p, sheetOf(VariantNormalizer, rows...))
	verr := requireKind(t, err, KindCapacityExceeded)
	assert.Contains(t, verr.Msg, "tcep")

	// AND exactly need+margin passes
	p.TCEP.Volume = 50
	_, err = BuildPlan(VariantNormalizer, p, sheetOf(VariantNormalizer, rows...))
	assert.NoError(t, err)
}

func TestBuildPlan_NormalizerDiluentMargin(t *testing.T) {
	// total diluent draw 150 µl + 100 µl margin
	rows := []map[string]string{
		normRow("s1", "1", "A1", "A1", "50", "75"),
		normRow("s2", "1", "A2", "A2", "50", "75"),
	}
	p := normParams()
	p.Diluent.Volume = 249

	_, err := BuildPlan(VariantNormalizer, p, sheetOf(VariantNormalizer, rows...))
	requireKind(t, err, KindCapacityExceeded)

	p.Diluent.Volume = 250
	_, err = BuildPlan(VariantNormalizer, p, sheetOf(VariantNormalizer, rows...))
	assert.NoError(t, err)
}

func TestBuildPlan_ControlCapacityAndResolution(t *testing.T) {
	// GIVEN a record drawing 60 µl from control 1
	rows := []map[string]string{
		normRow("ctl", "1", "CNTL1", "A1", "60", "40"),
		normRow("s1", "1", "A2", "A2", "50", "50"),
	}
	p := normParams()
	p.Control1 = ControlParams{Enabled: true,
		ReservoirParams: ReservoirParams{Location: "B1", TubeSize: "2 ml", Volume: 150}}

	// WHEN the control tube holds less than draw+margin
	_, err := BuildPlan(VariantNormalizer, p, sheetOf(VariantNormalizer, rows...))
	requireKind(t, err, KindCapacityExceeded)

	// AND with enough volume the sentinel resolves to the control tube
	p.Control1.Volume = 160
	plan, err := BuildPlan(VariantNormalizer, p, sheetOf(VariantNormalizer, rows...))
	require.NoError(t, err)
	loc := plan.SourceLocation(plan.Records[0])
	assert.Equal(t, TwoMLRackLabware, loc.Labware)
	assert.Equal(t, Coord("B1"), loc.Well)
}

func TestBuildPlan_ControlSentinelWithoutControl(t *testing.T) {
	rows := []map[string]string{normRow("ctl", "1", "CNTL2", "A1", "60", "40")}

	_, err := BuildPlan(VariantNormalizer, normParams(), sheetOf(VariantNormalizer, rows...))

	verr := requireKind(t, err, KindBadCoordinate)
	assert.Contains(t, verr.Msg, "CNTL2")
}

func TestBuildPlan_FiftyMLDiluentHeight_UsesOwnVolume(t *testing.T) {
	// GIVEN a 50 ml diluent at 5000 µl next to a much fuller reagent tube
	p := assayParams()
	p.Diluent = ReservoirParams{Location: "A4", TubeSize: "50 ml", Volume: 5000}
	p.Reagent.Volume = 20000
	sheet := sheetOf(VariantAssay, assayRow("s1", "1", "A1", "A1", "2"))

	plan, err := BuildPlan(VariantAssay, p, sheet)
	require.NoError(t, err)

	// THEN the diluent height comes from its own 5000 µl, not the reagent's
	assert.InDelta(t, Tube50ML.InitialHeight(5000), plan.Reservoirs.Diluent.Height, 1e-12)
}

func TestBuildPlan_TrayResolution(t *testing.T) {
	sheet := sheetOf(VariantAssay,
		assayRow("s1", "1", "A1", "A1", "1"),
		assayRow("s2", "2", "A1", "A2", "1"),
	)
	p := assayParams()
	p.SampleRacks = 2

	plan, err := BuildPlan(VariantAssay, p, sheet)
	require.NoError(t, err)

	assert.Equal(t, "sample rack 1", plan.SourceLocation(plan.Records[0]).Labware)
	assert.Equal(t, "sample rack 2", plan.SourceLocation(plan.Records[1]).Labware)
	assert.Equal(t, PlateLabware, plan.DestLocation(plan.Records[0]).Labware)
}
