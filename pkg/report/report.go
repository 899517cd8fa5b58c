package report

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"goconnectomist/internal/logger"
	"goconnectomist/pkg/errdefs"
)

const (
	pageSize  = "Letter"
	spacer    = 3.0 // mm between stacked elements
	lineSpace = 5.0 // mm between text lines
	columnGap = 4.0 // mm between the columns of a TwoCol page
)

type style struct {
	columns   int
	landscape bool
}

var styles = map[string]style{
	StyleOneCol:          {columns: 1},
	StyleTwoCol:          {columns: 2},
	StyleOneColLandscape: {columns: 1, landscape: true},
}

// Options describes the report to generate.
type Options struct {
	// DataPath completes the relative image paths of the layout.
	DataPath   string
	LayoutFile string

	Author    string
	Client    string
	PoweredBy string
	Project   string
	TimeStep  string
	Subject   string
	Date      string
	Title     string

	// Filename is the PDF to write.
	Filename string

	// Margins in millimeters.
	LeftMargin   float64
	RightMargin  float64
	TopMargin    float64
	BottomMargin float64

	// ShowBoundary frames every drawing area.
	ShowBoundary bool
}

// Generate renders the pages of the layout to opts.Filename.
func Generate(ctx context.Context, opts Options) error {
	log := logger.FromContext(ctx, "report")

	pages, err := LoadLayout(opts.DataPath, opts.LayoutFile)
	if err != nil {
		return err
	}

	r := newRenderer(opts)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug().Str("page", page.Name).Str("type", page.Type).Msg("rendering page")
		switch page.Type {
		case PageCover:
			r.cover()
		case PageTriplanar:
			if err := r.triplanar(page); err != nil {
				return errors.WithMessagef(err, "page '%s'", page.Name)
			}
		default:
			return errdefs.Validation("Unexpected '%s' page type.", page.Type)
		}
	}

	if err := os.MkdirAll(filepath.Dir(opts.Filename), 0755); err != nil {
		return errors.Wrapf(err, "creating '%s'", filepath.Dir(opts.Filename))
	}
	if err := r.pdf.OutputFileAndClose(opts.Filename); err != nil {
		return errors.Wrapf(err, "writing '%s'", opts.Filename)
	}
	log.Info().Str("file", opts.Filename).Int("pages", len(pages)).Msg("report written")
	return nil
}

type renderer struct {
	pdf    *fpdf.Fpdf
	opts   Options
	images *imageCache
}

func newRenderer(opts Options) *renderer {
	pdf := fpdf.New("P", "mm", pageSize, "")
	pdf.SetMargins(opts.LeftMargin, opts.TopMargin, opts.RightMargin)
	pdf.SetAutoPageBreak(false, opts.BottomMargin)
	pdf.SetTitle(fmt.Sprintf("%s (%s-%s)", opts.Project, opts.Subject, opts.TimeStep), true)
	pdf.SetAuthor(opts.Author, true)
	pdf.SetSubject(opts.Subject, true)
	pdf.SetCreator(opts.PoweredBy, true)

	r := &renderer{pdf: pdf, opts: opts, images: newImageCache(pdf)}
	pdf.SetHeaderFunc(r.header)
	pdf.SetFooterFunc(r.footer)
	return r
}

// box returns the drawing area of the current page.
func (r *renderer) box() (x, y, w, h float64) {
	pageW, pageH := r.pdf.GetPageSize()
	o := r.opts
	return o.LeftMargin, o.TopMargin, pageW - o.LeftMargin - o.RightMargin, pageH - o.TopMargin - o.BottomMargin
}

func (r *renderer) header() {
	r.pdf.SetFont("Times", "B", 10)
	r.pdf.Text(r.opts.LeftMargin, r.opts.TopMargin/2, strings.ToUpper(r.opts.Project))
}

func (r *renderer) footer() {
	_, pageH := r.pdf.GetPageSize()
	r.pdf.SetFont("Times", "", 9)
	r.pdf.Text(r.opts.LeftMargin, pageH-15, fmt.Sprintf("Page %d: %s - %s",
		r.pdf.PageNo(), strings.ToUpper(r.opts.Title), strings.ToUpper(r.opts.Author)))
}

func (r *renderer) frame(x, y, w, h float64) {
	if r.opts.ShowBoundary {
		r.pdf.SetDrawColor(200, 0, 0)
		r.pdf.Rect(x, y, w, h, "D")
		r.pdf.SetDrawColor(0, 0, 0)
	}
}

// cover writes the study fields in two columns and the report title in a
// rounded box.
func (r *renderer) cover() {
	r.pdf.AddPage()
	x, y, w, h := r.box()
	o := r.opts

	left := []string{
		"Performed by: " + o.Author,
		"Client: " + o.Client,
		"Powered by: " + o.PoweredBy,
	}
	right := []string{
		"Project: " + o.Project,
		"Subject: " + o.Subject,
		"Time step: " + o.TimeStep,
		"QC date: " + o.Date,
	}
	r.pdf.SetFont("Times", "", 11)
	for i, row := range left {
		r.pdf.Text(x, y+lineSpace*float64(i+1), row)
	}
	for i, row := range right {
		r.pdf.Text(x+3*w/4, y+lineSpace*float64(i+1), row)
	}
	r.frame(x, y, w, h/3)

	titleY, titleH := y+h/2, 40.0
	r.pdf.SetFillColor(128, 128, 128)
	r.pdf.RoundedRect(x, titleY, w, titleH, 7, "1234", "FD")
	r.pdf.SetFont("Times", "", 30)
	r.pdf.SetXY(x, titleY)
	r.pdf.CellFormat(w, titleH, o.Title, "", 0, "CM", false, 0, "")
}

// triplanar lays the texts out in a row at the top of the page and the
// image groups in rows, filling the columns one after the other.
func (r *renderer) triplanar(page Page) error {
	st := styles[page.Style]
	if st.landscape {
		r.pdf.AddPageFormat("L", r.pdf.GetPageSizeStr(pageSize))
	} else {
		r.pdf.AddPage()
	}
	x, y, w, h := r.box()

	textH := 0.0
	if n := len(page.Texts); n > 0 {
		textH = h * page.TopMargin
		padding := w * 0.05
		textW := (w - padding*float64(n-1)) / float64(n)
		r.pdf.SetFont("Times", "", 10)
		for i, text := range page.Texts {
			tx := x + float64(i)*(textW+padding)
			for j, line := range splitLines(text, page.LineCount) {
				r.pdf.Text(tx, y+lineSpace*float64(j+1), line)
			}
			r.pdf.Line(tx, y+textH, tx+textW, y+textH)
			r.frame(tx, y, textW, textH)
		}
		textH += spacer
	}

	count := len(page.Images)
	if count == 0 {
		return nil
	}
	rows := int(math.Ceil(float64(count) / float64(st.columns)))
	figW := w
	if st.columns > 1 {
		figW = (w - columnGap*float64(st.columns-1)) / float64(st.columns)
	}
	figH := (h - textH - float64(rows)*spacer) / float64(rows)
	for i, group := range page.Images {
		col, row := i/rows, i%rows
		fx := x + float64(col)*(figW+columnGap)
		fy := y + textH + float64(row)*(figH+spacer)
		r.frame(fx, fy, figW, figH)
		if err := r.group(group, fx, fy, figW, figH); err != nil {
			return err
		}
	}
	return nil
}

// group draws a single image in the whole box, or four images in its
// quarters: upper left, lower left, upper right, lower right.
func (r *renderer) group(paths []string, x, y, w, h float64) error {
	if len(paths) == 1 {
		return r.image(paths[0], x, y, w, h)
	}
	halfW, halfH := w/2, h/2
	origins := [][2]float64{
		{x, y},
		{x, y + halfH},
		{x + halfW, y},
		{x + halfW, y + halfH},
	}
	for i, path := range paths {
		if err := r.image(path, origins[i][0], origins[i][1], halfW, halfH); err != nil {
			return err
		}
	}
	return nil
}

// image fits path in the box, centered, keeping its aspect ratio.
func (r *renderer) image(path string, x, y, w, h float64) error {
	if path == "" {
		return nil
	}
	name, info, err := r.images.get(path)
	if err != nil {
		return err
	}
	iw, ih := info.Width(), info.Height()
	if iw <= 0 || ih <= 0 {
		return errdefs.BadFile(path)
	}
	scale := math.Min(w/iw, h/ih)
	dw, dh := iw*scale, ih*scale
	r.pdf.ImageOptions(name, x+(w-dw)/2, y+(h-dh)/2, dw, dh, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	if r.pdf.Err() {
		return r.pdf.Error()
	}
	return nil
}

// splitLines cuts text every n characters.
func splitLines(text string, n int) []string {
	runes := []rune(text)
	var lines []string
	for start := 0; start < len(runes); start += n {
		end := min(start+n, len(runes))
		lines = append(lines, string(runes[start:end]))
	}
	return lines
}
