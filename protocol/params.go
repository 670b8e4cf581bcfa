package protocol

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReservoirParams locates one configured reservoir: where it sits on the
// reagent rack, what tube it is in, and how much fluid it starts with.
type ReservoirParams struct {
	Location string  `yaml:"location"`
	TubeSize string  `yaml:"tube_size"`
	Volume   float64 `yaml:"volume"`
}

// Configured reports whether the sheet named a location for this reservoir.
func (rp ReservoirParams) Configured() bool { return rp.Location != "" }

// AdditiveParams configures one optional bulk additive pass (normalizer
// variant): a reservoir plus the per-well volume dispensed from it.
type AdditiveParams struct {
	Enabled         bool    `yaml:"enabled"`
	VolPerWell      float64 `yaml:"vol_per_well"`
	ReservoirParams `yaml:",inline"`
}

// ControlParams configures one optional control sample tube (normalizer
// variant), addressable from the sample sheet as CNTL1/CNTL2.
type ControlParams struct {
	Enabled         bool `yaml:"enabled"`
	ReservoirParams `yaml:",inline"`
}

// Params is the immutable workflow-wide configuration, built once from the
// parameter sheet (or YAML run spec) and passed by reference into the
// validator and sequencer.
type Params struct {
	SampleSheet      string  `yaml:"sample_sheet"`       // sample sheet filename
	SampleRacks      int     `yaml:"sample_racks"`       // 0 = samples in a 96-well plate, 1-4 = discrete tube racks
	SampleVolPerWell float64 `yaml:"sample_vol_per_well"` // assay: target final well volume (µl)
	SampleAspHeight  float64 `yaml:"sample_asp_height"`  // mm above well bottom for sample draws
	AspirateDelaySec float64 `yaml:"aspirate_delay_sec"` // settle time after sample aspiration
	Mix              bool    `yaml:"mix"`                // pre-mix each source well before aspirating
	MixReps          int     `yaml:"mix_reps"`
	MixVol           float64 `yaml:"mix_vol"`

	DispenseReagent   bool    `yaml:"dispense_reagent"`     // assay: bulk reagent pass enabled
	ReagentVolPerWell float64 `yaml:"reagent_vol_per_well"` // assay: µl of reagent per well

	Reagent  ReservoirParams `yaml:"reagent"`
	Diluent  ReservoirParams `yaml:"diluent"`
	TCEP     AdditiveParams  `yaml:"tcep"` // normalizer: reducer (TCEP/enolase) pass before the main loop
	IAM      AdditiveParams  `yaml:"iam"`  // normalizer: alkylator (IAM) pass after the operator pause
	Control1 ControlParams   `yaml:"control_1"`
	Control2 ControlParams   `yaml:"control_2"`
}

// ParseBool converts a parameter-sheet truth token to a bool. The accepted
// vocabulary is fixed; anything else is a format error.
func ParseBool(token string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "y", "yes", "t", "true", "on", "1", "yup":
		return true, nil
	case "n", "no", "f", "false", "off", "0", "nope":
		return false, nil
	}
	return false, validationErrorf(KindBadBool, "invalid truth value %q", token)
}

// LoadParams reads a key/value parameter sheet (CSV with 'variable' and
// 'value' columns) into a Params. Unrecognized variables are ignored so one
// sheet format can serve both workflow variants.
func LoadParams(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening parameter sheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading parameter sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, validationErrorf(KindMissingColumn, "parameter sheet %s is empty", path)
	}

	header := rows[0]
	if len(header) > 0 {
		// sheets exported from spreadsheet tools may carry a UTF-8 BOM
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	varIdx, valIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "variable":
			varIdx = i
		case "value":
			valIdx = i
		}
	}
	if varIdx < 0 || valIdx < 0 {
		return nil, validationErrorf(KindMissingColumn,
			"parameter sheet must have 'variable' and 'value' columns")
	}

	p := &Params{}
	for _, row := range rows[1:] {
		if len(row) <= varIdx || len(row) <= valIdx {
			continue
		}
		key := strings.TrimSpace(row[varIdx])
		val := strings.TrimSpace(row[valIdx])
		if err := p.set(key, val); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
	}
	return p, nil
}

// set assigns one parameter-sheet entry. Keys follow the sheet vocabulary
// used on the bench, so the same sheets keep working.
func (p *Params) set(key, val string) error {
	assignFloat := func(dst *float64) error {
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return validationErrorf(KindBadValue, "expected a number, got %q", val)
		}
		*dst = v
		return nil
	}
	assignInt := func(dst *int) error {
		v, err := strconv.Atoi(val)
		if err != nil {
			return validationErrorf(KindBadValue, "expected an integer, got %q", val)
		}
		*dst = v
		return nil
	}
	assignBool := func(dst *bool) error {
		v, err := ParseBool(val)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	switch key {
	case "inputCSVfilename":
		p.SampleSheet = val
	case "number_of_sample_racks":
		return assignInt(&p.SampleRacks)
	case "sample_vol_perWell":
		return assignFloat(&p.SampleVolPerWell)
	case "sample_aspiration_height":
		return assignFloat(&p.SampleAspHeight)
	case "aspiration_delay_sec":
		return assignFloat(&p.AspirateDelaySec)
	case "mix":
		return assignBool(&p.Mix)
	case "mix_reps":
		return assignInt(&p.MixReps)
	case "mix_vol":
		return assignFloat(&p.MixVol)
	case "aspirate_reagent":
		return assignBool(&p.DispenseReagent)
	case "reagent_vol_perWell":
		return assignFloat(&p.ReagentVolPerWell)
	case "reagent_vol":
		return assignFloat(&p.Reagent.Volume)
	case "reagent_tube_size":
		p.Reagent.TubeSize = val
	case "reagent_location":
		p.Reagent.Location = val
	case "diluent_vol":
		return assignFloat(&p.Diluent.Volume)
	case "diluent_tube_size":
		p.Diluent.TubeSize = val
	case "diluent_location":
		p.Diluent.Location = val
	case "add_tcep":
		return assignBool(&p.TCEP.Enabled)
	case "tcep_location":
		p.TCEP.Location = val
	case "tcep_tube_size":
		p.TCEP.TubeSize = val
	case "tcep_vol":
		return assignFloat(&p.TCEP.Volume)
	case "tcep_vol_perWell":
		return assignFloat(&p.TCEP.VolPerWell)
	case "add_iam":
		return assignBool(&p.IAM.Enabled)
	case "iam_location":
		p.IAM.Location = val
	case "iam_tube_size":
		p.IAM.TubeSize = val
	case "iam_vol":
		return assignFloat(&p.IAM.Volume)
	case "iam_vol_perWell":
		return assignFloat(&p.IAM.VolPerWell)
	case "control_1":
		return assignBool(&p.Control1.Enabled)
	case "cntl1_location":
		p.Control1.Location = val
	case "cntl1_tube_size":
		p.Control1.TubeSize = val
	case "cntl1_vol":
		return assignFloat(&p.Control1.Volume)
	case "control_2":
		return assignBool(&p.Control2.Enabled)
	case "cntl2_location":
		p.Control2.Location = val
	case "cntl2_tube_size":
		p.Control2.TubeSize = val
	case "cntl2_vol":
		return assignFloat(&p.Control2.Volume)
	}
	return nil
}
