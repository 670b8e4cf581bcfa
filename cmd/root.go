package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platerun/platerun/protocol"
)

var (
	// CLI flags shared by both workflow subcommands
	paramsPath  string // parameter sheet (key/value CSV)
	samplesPath string // sample sheet CSV; overrides the name in the parameter sheet
	runSpecPath string // YAML run spec; replaces both CSV inputs
	logLevel    string // log verbosity level
	dryRun      bool   // validate the plan and stop before any dispensing
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "platerun",
	Short: "Plan, validate, and sequence robotic plate-preparation runs",
	Long: `platerun validates a declarative plate-preparation plan against tube
geometry and reservoir capacity, then sequences the dispensing actions.
Every feasibility problem is reported before a single µl moves.`,
}

// assayCmd runs the protein-quantification assay workflow.
var assayCmd = &cobra.Command{
	Use:   "assay",
	Short: "Build an assay plate from diluted samples and bulk reagent",
	Run: func(cmd *cobra.Command, args []string) {
		runWorkflow(protocol.VariantAssay)
	},
}

// normalizeCmd runs the sample-normalization workflow.
var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize sample concentrations with optional additive passes",
	Run: func(cmd *cobra.Command, args []string) {
		runWorkflow(protocol.VariantNormalizer)
	},
}

// runWorkflow loads inputs, validates the plan, and (unless dry-running)
// sequences it against the logging driver.
func runWorkflow(variant protocol.Variant) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)

	params, sheet := loadInputs(variant)

	plan, err := protocol.BuildPlan(variant, params, sheet)
	if err != nil {
		logrus.Fatalf("plan validation failed: %v", err)
	}
	logrus.Infof("plan validated: %d records, %s workflow", len(plan.Records), plan.Variant)

	if dryRun {
		logrus.Info("dry run requested; plan is feasible, stopping before dispensing")
		return
	}

	seq := protocol.NewSequencer(plan, protocol.LogDriver{}, consoleOperator{})
	if err := seq.Run(); err != nil {
		logrus.Fatalf("run aborted: %v", err)
	}
}

// loadInputs resolves the parameter and sample inputs from either the YAML
// run spec or the CSV sheet pair.
func loadInputs(variant protocol.Variant) (*protocol.Params, *protocol.SampleSheet) {
	if runSpecPath != "" {
		spec, err := protocol.LoadRunSpec(runSpecPath)
		if err != nil {
			logrus.Fatalf("unable to read run spec: %v", err)
		}
		if spec.Workflow != "" {
			specVariant, err := spec.Variant()
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			if specVariant != variant {
				logrus.Fatalf("run spec declares the %s workflow; use the matching subcommand", specVariant)
			}
		}
		if len(spec.Samples) > 0 {
			return &spec.Params, spec.SampleSheet(variant)
		}
		sheet := loadSampleSheet(&spec.Params)
		return &spec.Params, sheet
	}

	if paramsPath == "" {
		logrus.Fatalf("either --params or --run-spec is required")
	}
	params, err := protocol.LoadParams(paramsPath)
	if err != nil {
		logrus.Fatalf("unable to read parameter sheet: %v", err)
	}
	return params, loadSampleSheet(params)
}

func loadSampleSheet(params *protocol.Params) *protocol.SampleSheet {
	path := samplesPath
	if path == "" {
		path = params.SampleSheet
	}
	if path == "" {
		logrus.Fatalf("no sample sheet: set inputCSVfilename in the parameter sheet or pass --samples")
	}
	sheet, err := protocol.LoadSampleSheet(path)
	if err != nil {
		logrus.Fatalf("unable to read sample sheet: %v", err)
	}
	return sheet
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{assayCmd, normalizeCmd} {
		c.Flags().StringVar(&paramsPath, "params", "", "Parameter sheet (key/value CSV)")
		c.Flags().StringVar(&samplesPath, "samples", "", "Sample sheet CSV (overrides the parameter sheet entry)")
		c.Flags().StringVar(&runSpecPath, "run-spec", "", "YAML run spec bundling parameters and samples")
		c.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
		c.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the plan and stop before dispensing")
	}

	rootCmd.AddCommand(assayCmd)
	rootCmd.AddCommand(normalizeCmd)
}
