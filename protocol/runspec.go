package protocol

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RunSample is one inline sample row in a YAML run spec. Dilution is used by
// the assay workflow, the volume pair by the normalizer.
type RunSample struct {
	Name       string  `yaml:"name"`
	Tray       int     `yaml:"tray"`
	Source     string  `yaml:"source"`
	Dest       string  `yaml:"dest"`
	Dilution   float64 `yaml:"dilution,omitempty"`
	SampleVol  float64 `yaml:"sample_volume,omitempty"`
	DiluentVol float64 `yaml:"diluent_volume,omitempty"`
}

// RunSpec is a single-file alternative to the two CSV sheets: workflow
// selection, parameters, and (optionally) inline sample rows in one YAML
// document. When Samples is empty the sample sheet named in the params is
// loaded as usual.
type RunSpec struct {
	Workflow string      `yaml:"workflow"` // "assay" or "normalize"
	Params   Params      `yaml:"params"`
	Samples  []RunSample `yaml:"samples,omitempty"`
}

// LoadRunSpec reads and parses a YAML run spec.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run spec: %w", err)
	}
	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing run spec: %w", err)
	}
	return &spec, nil
}

// Variant maps the spec's workflow token to a Variant.
func (rs *RunSpec) Variant() (Variant, error) {
	switch rs.Workflow {
	case "assay":
		return VariantAssay, nil
	case "normalize", "normalizer":
		return VariantNormalizer, nil
	}
	return 0, validationErrorf(KindBadValue,
		"run spec workflow must be 'assay' or 'normalize', got %q", rs.Workflow)
}

// SampleSheet converts inline sample rows to the tabular form BuildPlan
// consumes, so YAML and CSV inputs validate identically.
func (rs *RunSpec) SampleSheet(variant Variant) *SampleSheet {
	columns := requiredColumns(variant)
	sheet := &SampleSheet{Columns: columns}
	for _, s := range rs.Samples {
		row := map[string]string{
			ColSampleName: s.Name,
			ColTray:       strconv.Itoa(s.Tray),
			ColSource:     s.Source,
			ColDest:       s.Dest,
		}
		if variant == VariantAssay {
			row[ColDilution] = formatVol(s.Dilution)
		} else {
			row[ColSampleVol] = formatVol(s.SampleVol)
			row[ColDiluentVol] = formatVol(s.DiluentVol)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func formatVol(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
