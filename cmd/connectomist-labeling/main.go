package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"goconnectomist/internal/cli"
	"goconnectomist/pkg/labeling"
	"goconnectomist/pkg/preproc"
)

type options struct {
	common cli.Common

	outdir          string
	subject         string
	tractographyDir string
	registrationDir string
	morphologist    string
	atlas           string
	customAtlasDir  string
	bundleNames     []string
	fiberCount      int
	noResampling    bool
	keepTemporary   bool
}

func main() {
	os.Exit(cli.Execute(newCommand()))
}

func newCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "connectomist-labeling",
		Short: "Label the bundle maps of a Connectomist tractography",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}
	o.common.Bind(cmd)

	f := cmd.Flags()
	f.StringVarP(&o.outdir, "outdir", "o", "", "output directory")
	f.StringVarP(&o.subject, "subject", "s", "", "subject identifier")
	f.StringVar(&o.tractographyDir, "tractography", "", "tractography stage directory holding the bundle maps")
	f.StringVar(&o.registrationDir, "registration", "", fmt.Sprintf("registration stage directory, the %s folder of the preprocessing", preproc.StageRegistration.Dir()))
	f.StringVar(&o.morphologist, "morphologist", "", "Morphologist directory")
	f.StringVar(&o.atlas, "atlas", "", fmt.Sprintf("bundle atlas, one of %v", labeling.Atlases()))
	f.StringVar(&o.customAtlasDir, "custom-atlas", "", "atlas directory, with --atlas "+labeling.AtlasCustom)
	f.StringSliceVar(&o.bundleNames, "bundles", nil, "bundles to label, all of the atlas by default")
	f.IntVar(&o.fiberCount, "fibers", 0, "number of fibers labelled at once")
	f.BoolVar(&o.noResampling, "no-resampling", false, "the fibers are already resampled to 21 points")
	f.BoolVar(&o.keepTemporary, "keep-temporary", false, "keep the temporary labeling files")

	for _, name := range []string{"outdir", "subject", "tractography", "registration", "morphologist"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (o *options) params(cmd *cobra.Command, opts labeling.Options) labeling.RunParams {
	f := cmd.Flags()
	if f.Changed("atlas") {
		opts.Atlas = o.atlas
	}
	if f.Changed("custom-atlas") {
		opts.CustomAtlasDir = o.customAtlasDir
	}
	if f.Changed("bundles") {
		opts.BundleNames = o.bundleNames
	}
	if f.Changed("fibers") {
		opts.FiberCount = o.fiberCount
	}
	if f.Changed("no-resampling") {
		opts.DisableResampling = o.noResampling
	}
	if f.Changed("keep-temporary") {
		opts.KeepTemporaryFiles = o.keepTemporary
	}

	return labeling.RunParams{
		OutDir:          o.outdir,
		TractographyDir: o.tractographyDir,
		RegistrationDir: o.registrationDir,
		MorphologistDir: o.morphologist,
		SubjectID:       o.subject,
		Options:         opts,
	}
}

func run(cmd *cobra.Command, o *options) error {
	ctx, cfg, err := o.common.Setup(cmd.Context())
	if err != nil {
		return err
	}

	p := o.params(cmd, cfg.LabelingOptions())
	if err := p.Options.Validate(); err != nil {
		return err
	}
	if p.Plan, err = labeling.NewPlan(); err != nil {
		return err
	}
	defer cli.WritePlan(ctx, p.Plan, o.common.PlanPath)

	eng, conv, err := cli.Engine(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := labeling.Labeling(ctx, eng, conv, p)
	if err != nil {
		return err
	}

	fmt.Println("\nLabeling completed successfully!")
	fmt.Printf("Run:     %s\n", res.RunID)
	fmt.Printf("Output:  %s\n", res.Dir)
	fmt.Printf("Bundles: %d files under %s\n", len(res.Bundles), filepath.Join(o.outdir, "bundles"))
	return nil
}
