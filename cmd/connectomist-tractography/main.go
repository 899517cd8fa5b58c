package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"goconnectomist/internal/cli"
	"goconnectomist/internal/logger"
	"goconnectomist/pkg/tractography"
)

type options struct {
	common cli.Common

	outdir       string
	subject      string
	preprocDir   string
	morphologist string

	model         string
	order         int
	estimator     string
	trackingType  string
	bundleMap     string
	minLength     float64
	maxLength     float64
	aperture      float64
	forwardStep   float64
	atlas         string
	bundleNames   []string
	addCerebellum bool
	noCommissures bool
	modelOnly     bool
	deleteSteps   bool
}

func main() {
	os.Exit(cli.Execute(newCommand()))
}

func newCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "connectomist-tractography",
		Short: "Run the Connectomist local modeling, tractography and bundle labeling",
		Long: "Estimate the local diffusion model on the registered data, build the\n" +
			"tractography mask from the Morphologist segmentation, track the fibers\n" +
			"and label the resulting bundles with an atlas.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}
	o.common.Bind(cmd)

	f := cmd.Flags()
	f.StringVarP(&o.outdir, "outdir", "o", "", "output directory")
	f.StringVarP(&o.subject, "subject", "s", "", "subject identifier")
	f.StringVar(&o.preprocDir, "preproc", "", "preprocessing output directory")
	f.StringVar(&o.morphologist, "morphologist", "", "Morphologist directory")
	f.StringVar(&o.model, "model", "", fmt.Sprintf("local model, one of %v", tractography.Models()))
	f.IntVar(&o.order, "order", 0, "spherical harmonics order")
	f.StringVar(&o.estimator, "estimator", "", fmt.Sprintf("tensor estimator, one of %v", tractography.Estimators()))
	f.StringVar(&o.trackingType, "tracking", "", fmt.Sprintf("tracking type, one of %v", tractography.TrackingTypes()))
	f.StringVar(&o.bundleMap, "bundlemap", "", fmt.Sprintf("bundle map format, one of %v", tractography.BundleMapFormats()))
	f.Float64Var(&o.minLength, "min-length", 0, "minimum fiber length in mm")
	f.Float64Var(&o.maxLength, "max-length", 0, "maximum fiber length in mm")
	f.Float64Var(&o.aperture, "aperture", 0, "aperture angle in degrees")
	f.Float64Var(&o.forwardStep, "step", 0, "forward step in mm")
	f.StringVar(&o.atlas, "atlas", "", "bundle atlas")
	f.StringSliceVar(&o.bundleNames, "bundles", nil, "bundles to label, all of the atlas by default")
	f.BoolVar(&o.addCerebellum, "add-cerebellum", false, "add the cerebellum to the tractography mask")
	f.BoolVar(&o.noCommissures, "no-commissures", false, "leave the commissures out of the tractography mask")
	f.BoolVar(&o.modelOnly, "model-only", false, "stop after the local model and its scalar maps")
	f.BoolVar(&o.deleteSteps, "delete-steps", false, "remove the stage directories once the exports are written")

	for _, name := range []string{"outdir", "subject", "preproc", "morphologist"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (o *options) params(cmd *cobra.Command, p tractography.Params) tractography.Params {
	p.OutDir = o.outdir
	p.SubjectID = o.subject
	p.PreprocDir = o.preprocDir
	p.MorphologistDir = o.morphologist
	p.ModelOnly = o.modelOnly

	f := cmd.Flags()
	if f.Changed("model") {
		p.Model.Model = o.model
	}
	if f.Changed("order") {
		p.Model.Order = o.order
	}
	if f.Changed("estimator") {
		p.Model.DTIEstimator = o.estimator
	}
	if f.Changed("tracking") {
		p.Tracking.TrackingType = o.trackingType
	}
	if f.Changed("bundlemap") {
		p.Tracking.BundleMap = o.bundleMap
	}
	if f.Changed("min-length") {
		p.Tracking.MinFiberLength = o.minLength
	}
	if f.Changed("max-length") {
		p.Tracking.MaxFiberLength = o.maxLength
	}
	if f.Changed("aperture") {
		p.Tracking.ApertureAngle = o.aperture
	}
	if f.Changed("step") {
		p.Tracking.ForwardStep = o.forwardStep
	}
	if f.Changed("atlas") {
		p.Labeling.Atlas = o.atlas
	}
	if f.Changed("bundles") {
		p.Labeling.BundleNames = o.bundleNames
	}
	if f.Changed("add-cerebellum") {
		p.Mask.AddCerebellum = o.addCerebellum
	}
	if f.Changed("no-commissures") {
		p.Mask.AddCommissures = !o.noCommissures
	}
	if f.Changed("delete-steps") {
		p.DeleteSteps = o.deleteSteps
	}
	return p
}

func run(cmd *cobra.Command, o *options) error {
	ctx, cfg, err := o.common.Setup(cmd.Context())
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx, "connectomist-tractography")

	p := o.params(cmd, cfg.TractographyParams())
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Plan, err = tractography.NewPlan(p); err != nil {
		return err
	}
	defer cli.WritePlan(ctx, p.Plan, o.common.PlanPath)

	eng, conv, err := cli.Engine(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info().Str("engine", eng.Path()).Str("release", eng.Release()).Msg("engine ready")

	start := time.Now()
	res, err := tractography.CompleteTractography(ctx, eng, conv, p)
	if err != nil {
		return err
	}

	fmt.Println("\nTractography completed successfully!")
	fmt.Printf("Run:     %s\n", res.RunID)
	fmt.Printf("GFA:     %s\n", res.GFA)
	fmt.Printf("MD:      %s\n", res.MD)
	if !p.ModelOnly {
		fmt.Printf("Mask:    %s\n", res.Mask)
		fmt.Printf("Bundles: %d files\n", len(res.Bundles))
	}
	fmt.Printf("Total time: %.2f seconds\n", time.Since(start).Seconds())
	return nil
}
