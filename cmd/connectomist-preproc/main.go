package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"goconnectomist/internal/cli"
	"goconnectomist/internal/logger"
	"goconnectomist/internal/models"
	"goconnectomist/pkg/preproc"
)

type options struct {
	common cli.Common

	outdir       string
	subject      string
	dwi          string
	bval         string
	bvec         string
	magnitude    string
	phase        string
	manufacturer string
	morphologist string
	stopAfter    string
	project      string
	timeStep     string

	invertY, invertZ   bool
	noInvertX          bool
	skipSusceptibility bool
	negativeSign       bool
	qc                 bool
	deleteSteps        bool

	deltaTE        float64
	partialFourier float64
	parallel       int
	echoSpacing    float64
	epiFactor      int
	b0Field        float64
	waterFatShift  float64
}

func main() {
	os.Exit(cli.Execute(newCommand()))
}

func newCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "connectomist-preproc",
		Short: "Run the Connectomist diffusion preprocessing",
		Long: "Import the diffusion data, extract a rough brain mask, detect the outlier\n" +
			"slices, correct the susceptibility and eddy current distortions and\n" +
			"optionally register the result to a Morphologist anatomy.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}
	o.common.Bind(cmd)

	f := cmd.Flags()
	f.StringVarP(&o.outdir, "outdir", "o", "", "output directory")
	f.StringVarP(&o.subject, "subject", "s", "", "subject identifier")
	f.StringVar(&o.dwi, "dwi", "", "diffusion NIfTI file")
	f.StringVar(&o.bval, "bval", "", "b-values file")
	f.StringVar(&o.bvec, "bvec", "", "b-vectors file")
	f.StringVar(&o.magnitude, "b0-magnitude", "", "field map magnitude NIfTI file")
	f.StringVar(&o.phase, "b0-phase", "", "field map phase NIfTI file")
	f.StringVarP(&o.manufacturer, "manufacturer", "m", "", fmt.Sprintf("scanner manufacturer, one of %v", models.Manufacturers()))
	f.StringVar(&o.morphologist, "morphologist", "", "Morphologist directory, enables the registration to the anatomy")
	f.StringVar(&o.stopAfter, "stop-after", "", "last stage to run, for example 03-Outliers")
	f.BoolVar(&o.qc, "qc", false, "write the quality check report, needs --morphologist")
	f.StringVar(&o.project, "project", "", "project name of the quality check report")
	f.StringVar(&o.timeStep, "timestep", "", "time step of the quality check report")

	f.BoolVar(&o.noInvertX, "no-invert-x", false, "keep the x axis of the gradient directions")
	f.BoolVar(&o.invertY, "invert-y", false, "invert the y axis of the gradient directions")
	f.BoolVar(&o.invertZ, "invert-z", false, "invert the z axis of the gradient directions")
	f.BoolVar(&o.skipSusceptibility, "no-susceptibility", false, "skip the susceptibility correction")
	f.BoolVar(&o.negativeSign, "negative-sign", false, "negative phase encoding direction")
	f.BoolVar(&o.deleteSteps, "delete-steps", false, "remove the intermediate stage directories")

	f.Float64Var(&o.deltaTE, "delta-te", 0, "echo time difference of the field map in ms")
	f.Float64Var(&o.partialFourier, "partial-fourier", 0, "partial Fourier factor")
	f.IntVar(&o.parallel, "parallel-acceleration", 0, "parallel acceleration factor")
	f.Float64Var(&o.echoSpacing, "echo-spacing", 0, "echo spacing in ms")
	f.IntVar(&o.epiFactor, "epi-factor", 0, "EPI factor")
	f.Float64Var(&o.b0Field, "b0-field", 0, "B0 field strength in Tesla")
	f.Float64Var(&o.waterFatShift, "water-fat-shift", 0, "water fat shift in pixels")

	for _, name := range []string{"outdir", "subject", "dwi", "bval", "bvec", "manufacturer"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// params starts from the configuration file and applies the flags the
// user actually set.
func (o *options) params(cmd *cobra.Command, base preproc.Params) (preproc.Params, error) {
	p := base
	p.OutDir = o.outdir
	p.SubjectID = o.subject
	p.Manufacturer = o.manufacturer
	p.MorphologistDir = o.morphologist
	p.Inputs = preproc.InputFiles{
		DWI:         o.dwi,
		BVal:        o.bval,
		BVec:        o.bvec,
		B0Magnitude: o.magnitude,
		B0Phase:     o.phase,
	}

	f := cmd.Flags()
	if f.Changed("no-invert-x") {
		p.InvertX = !o.noInvertX
	}
	if f.Changed("invert-y") {
		p.InvertY = o.invertY
	}
	if f.Changed("invert-z") {
		p.InvertZ = o.invertZ
	}
	if f.Changed("no-susceptibility") {
		p.SkipSusceptibility = o.skipSusceptibility
	}
	if f.Changed("delete-steps") {
		p.DeleteSteps = o.deleteSteps
	}
	p.NegativeSign = o.negativeSign
	if f.Changed("delta-te") {
		p.DeltaTE = preproc.Float(o.deltaTE)
	}
	if f.Changed("partial-fourier") {
		p.PartialFourierFactor = preproc.Float(o.partialFourier)
	}
	if f.Changed("parallel-acceleration") {
		p.ParallelAccelerationFactor = preproc.Int(o.parallel)
	}
	if f.Changed("echo-spacing") {
		p.EchoSpacing = preproc.Float(o.echoSpacing)
	}
	if f.Changed("epi-factor") {
		p.EPIFactor = preproc.Int(o.epiFactor)
	}
	if f.Changed("b0-field") {
		p.B0Field = preproc.Float(o.b0Field)
	}
	if f.Changed("water-fat-shift") {
		p.WaterFatShift = preproc.Float(o.waterFatShift)
	}
	if o.qc {
		p.QC = &preproc.QCOptions{ProjectName: o.project, TimeStep: o.timeStep}
	}
	if o.stopAfter != "" {
		s, err := preproc.ParseStage(o.stopAfter)
		if err != nil {
			return p, err
		}
		p.StopAfter = s
	}
	return p, nil
}

func run(cmd *cobra.Command, o *options) error {
	ctx, cfg, err := o.common.Setup(cmd.Context())
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx, "connectomist-preproc")

	p, err := o.params(cmd, cfg.PreprocParams())
	if err != nil {
		return err
	}
	if p.Plan, err = preproc.NewPlan(p); err != nil {
		return err
	}
	defer cli.WritePlan(ctx, p.Plan, o.common.PlanPath)

	eng, conv, err := cli.Engine(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info().Str("engine", eng.Path()).Str("release", eng.Release()).Msg("engine ready")

	start := time.Now()
	res, err := preproc.CompletePreprocessing(ctx, eng, conv, p)
	if err != nil {
		return err
	}

	fmt.Println("\nPreprocessing completed successfully!")
	fmt.Printf("Run:      %s\n", res.RunID)
	if res.DWI != "" {
		fmt.Printf("DWI:      %s\n", res.DWI)
		fmt.Printf("b-values: %s\n", res.BVal)
		fmt.Printf("b-vectors: %s\n", res.BVec)
	}
	if res.Outliers != "" {
		fmt.Printf("Outliers: %s\n", res.Outliers)
	}
	fmt.Printf("Total time: %.2f seconds\n", time.Since(start).Seconds())
	return nil
}
