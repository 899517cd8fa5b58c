// Package report renders the quality check PDF of a subject from a layout
// file listing the pages to draw: a cover, then triplanar pages made of
// image groups and short texts.
package report

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"goconnectomist/pkg/errdefs"
)

// Page types.
const (
	PageCover     = "cover"
	PageTriplanar = "triplanar"
)

// Page styles.
const (
	StyleOneCol          = "OneCol"
	StyleTwoCol          = "TwoCol"
	StyleOneColLandscape = "OneColLandscape"
)

const (
	// DefaultLineCount is the number of characters per text line.
	DefaultLineCount = 42

	// DefaultTopMargin is the share of the page height given to texts.
	DefaultTopMargin = 0.2
)

// Page is one page of a layout.
type Page struct {
	Name  string
	Type  string
	Style string

	// Images holds groups of one image, or of four images drawn as a 2x2
	// grid. An empty path leaves its slot blank.
	Images [][]string

	Texts     []string
	TopMargin float64
	LineCount int
}

type pageSpec struct {
	Type      string      `yaml:"type"`
	Style     string      `yaml:"style"`
	Images    []yaml.Node `yaml:"images"`
	Texts     []string    `yaml:"texts"`
	TopMargin *float64    `yaml:"topmargin"`
	LineCount int         `yaml:"linecount"`
}

// LoadLayout reads a YAML or JSON layout mapping page names to pages, in
// file order. Relative image paths are resolved against datapath.
func LoadLayout(datapath, file string) ([]Page, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errdefs.BadFile(file)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing layout '%s'", file)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errdefs.Validation("Layout '%s' must map page names to pages.", file)
	}

	root := doc.Content[0]
	pages := make([]Page, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var spec pageSpec
		if err := root.Content[i+1].Decode(&spec); err != nil {
			return nil, errors.Wrapf(err, "decoding page '%s'", name)
		}
		page, err := spec.page(name, datapath)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (s pageSpec) page(name, datapath string) (Page, error) {
	p := Page{
		Name:      name,
		Type:      s.Type,
		Style:     s.Style,
		Texts:     s.Texts,
		TopMargin: DefaultTopMargin,
		LineCount: s.LineCount,
	}
	if p.Type != PageCover && p.Type != PageTriplanar {
		return p, errdefs.Validation("Unexpected '%s' page type.", s.Type)
	}
	if p.Style == "" {
		p.Style = StyleOneCol
	}
	if _, ok := styles[p.Style]; !ok {
		return p, errdefs.Validation("Unexpected '%s' page style in page '%s'.", p.Style, name)
	}
	if s.TopMargin != nil {
		p.TopMargin = *s.TopMargin
	}
	if p.TopMargin < 0 || p.TopMargin > 1 {
		return p, errdefs.Validation("Page '%s' top margin %g is not in [0, 1].", name, p.TopMargin)
	}
	if p.LineCount <= 0 {
		p.LineCount = DefaultLineCount
	}

	for _, node := range s.Images {
		group, err := imageGroup(node, datapath)
		if err != nil {
			return p, errors.WithMessagef(err, "page '%s'", name)
		}
		p.Images = append(p.Images, group)
	}
	return p, nil
}

func imageGroup(node yaml.Node, datapath string) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{resolve(node, datapath)}, nil
	case yaml.SequenceNode:
		if n := len(node.Content); n != 1 && n != 4 {
			return nil, errdefs.Validation("Image groups hold 1 or 4 images, got %d.", n)
		}
		group := make([]string, len(node.Content))
		for i, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				return nil, errdefs.Validation("Image groups can't be nested.")
			}
			group[i] = resolve(*child, datapath)
		}
		return group, nil
	}
	return nil, errdefs.Validation("Unexpected image entry at line %d.", node.Line)
}

func resolve(node yaml.Node, datapath string) string {
	if node.Tag == "!!null" || node.Value == "" {
		return ""
	}
	if filepath.IsAbs(node.Value) {
		return node.Value
	}
	return filepath.Join(datapath, node.Value)
}
