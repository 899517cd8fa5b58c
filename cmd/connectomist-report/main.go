package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"goconnectomist/internal/cli"
	"goconnectomist/internal/logger"
	"goconnectomist/pkg/report"
)

type options struct {
	common cli.Common

	layout   string
	datapath string
	output   string
	title    string
	subject  string
	project  string
	timeStep string
	date     string
	boundary bool
}

func main() {
	os.Exit(cli.Execute(newCommand()))
}

func newCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "connectomist-report",
		Short: "Render a PDF quality report from a page layout",
		Long: "Render the cover page and the triplanar image pages described by a YAML\n" +
			"or JSON layout file into a single PDF.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}
	o.common.Bind(cmd)

	f := cmd.Flags()
	f.StringVarP(&o.layout, "layout", "l", "", "page layout file")
	f.StringVarP(&o.datapath, "datapath", "d", "", "directory of the relative image paths")
	f.StringVarP(&o.output, "output", "o", "", "PDF file to write")
	f.StringVar(&o.title, "title", "Diffusion quality check", "report title")
	f.StringVarP(&o.subject, "subject", "s", "", "subject identifier")
	f.StringVar(&o.project, "project", "", "project name")
	f.StringVar(&o.timeStep, "timestep", "", "acquisition time step")
	f.StringVar(&o.date, "date", "", "report date, today by default")
	f.BoolVar(&o.boundary, "show-boundary", false, "frame every drawing area")

	for _, name := range []string{"layout", "output", "subject"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func run(cmd *cobra.Command, o *options) error {
	ctx, cfg, err := o.common.Setup(cmd.Context())
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx, "connectomist-report")

	date := o.date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	opts := report.Options{
		DataPath:     o.datapath,
		LayoutFile:   o.layout,
		Author:       cfg.Report.Author,
		Client:       cfg.Report.Client,
		PoweredBy:    cfg.Report.PoweredBy,
		Project:      o.project,
		TimeStep:     o.timeStep,
		Subject:      o.subject,
		Date:         date,
		Title:        o.title,
		Filename:     o.output,
		LeftMargin:   cfg.Report.LeftMargin,
		RightMargin:  cfg.Report.RightMargin,
		TopMargin:    cfg.Report.TopMargin,
		BottomMargin: cfg.Report.BottomMargin,
		ShowBoundary: o.boundary,
	}
	if err := report.Generate(ctx, opts); err != nil {
		return err
	}

	size := "unknown size"
	if info, err := os.Stat(o.output); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	log.Info().Str("file", o.output).Msg("report written")
	fmt.Printf("Report written to %s (%s)\n", o.output, size)
	return nil
}
