// Package plan records the stage graph of a pipeline run and the status of
// each stage, and renders it as a Graphviz DOT file.
package plan

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"goconnectomist/internal/models"
)

// Plan is a directed acyclic graph of stages. A nil *Plan ignores marks,
// so composers can record statuses unconditionally.
type Plan struct {
	name  string
	graph graph.Graph[string, string]

	mu       sync.Mutex
	index    map[string]int
	status   map[string]models.StageStatus
	messages map[string]string
}

// New creates an empty plan.
func New(name string) *Plan {
	return &Plan{
		name:     name,
		graph:    graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
		index:    make(map[string]int),
		status:   make(map[string]models.StageStatus),
		messages: make(map[string]string),
	}
}

// Name returns the plan name.
func (p *Plan) Name() string {
	return p.name
}

// AddStage adds a stage running algorithm after the given stages, which
// must already be in the plan.
func (p *Plan) AddStage(name, algorithm string, after ...string) error {
	err := p.graph.AddVertex(name, graph.VertexAttribute("algorithm", algorithm))
	if err != nil {
		return errors.Wrapf(err, "unable to add stage %s", name)
	}

	p.mu.Lock()
	p.index[name] = len(p.index)
	p.status[name] = models.StagePending
	p.mu.Unlock()

	for _, parent := range after {
		if err := p.graph.AddEdge(parent, name); err != nil {
			return errors.Wrapf(err, "unable to add edge from %s to %s", parent, name)
		}
	}

	return nil
}

// Order returns the stages in execution order. Independent stages keep
// their insertion order.
func (p *Plan) Order() ([]string, error) {
	p.mu.Lock()
	index := make(map[string]int, len(p.index))
	for k, v := range p.index {
		index[k] = v
	}
	p.mu.Unlock()

	order, err := graph.StableTopologicalSort(p.graph, func(a, b string) bool {
		return index[a] < index[b]
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to sort stages")
	}

	return order, nil
}

// Mark sets the status of a stage. Unknown stages are ignored.
func (p *Plan) Mark(name string, status models.StageStatus) {
	p.MarkWithMessage(name, status, "")
}

// MarkWithMessage sets the status of a stage with a note shown in the
// rendered graph, typically the error of a failed stage.
func (p *Plan) MarkWithMessage(name string, status models.StageStatus, message string) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[name]; !ok {
		return
	}
	p.status[name] = status
	p.messages[name] = message
}

// Status returns the status of a stage, pending when unknown.
func (p *Plan) Status(name string) models.StageStatus {
	if p == nil {
		return models.StagePending
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status[name]
}

// Has reports whether the plan holds the stage.
func (p *Plan) Has(name string) bool {
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.index[name]
	return ok
}

var statusRGB = map[models.StageStatus][3]uint8{
	models.StagePending: {200, 200, 200},
	models.StageRunning: {255, 200, 0},
	models.StageDone:    {0, 170, 0},
	models.StageSkipped: {150, 150, 255},
	models.StageFailed:  {255, 0, 0},
}

func statusColor(status models.StageStatus) (string, error) {
	rgb := statusRGB[status]
	color, err := colors.RGB(rgb[0], rgb[1], rgb[2]) //nolint
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}

	return color.ToHEX().String(), nil
}

//nolint:lll //this is a template
const dotTemplate = `strict digraph "{{.Name}}" {
	rankdir="LR";
	node [shape="box", style="rounded,filled"];
{{range .Nodes}}	"{{.Name}}" [label="{{.Name}}\n{{.Algorithm}}\n{{.Status}}{{if .Message}}\n{{.Message}}{{end}}", fillcolor="{{.Color}}"];
{{end}}{{range .Edges}}	"{{.Source}}" -> "{{.Target}}";
{{end}}}
`

type node struct {
	Name      string
	Algorithm string
	Status    string
	Message   string
	Color     string
}

type edge struct {
	Source string
	Target string
}

type description struct {
	Name  string
	Nodes []node
	Edges []edge
}

// WriteDOT renders the plan as a DOT graph, stages coloured by status.
func (p *Plan) WriteDOT(w io.Writer) error {
	order, err := p.Order()
	if err != nil {
		return err
	}

	adjacencyMap, err := p.graph.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to get adjacency map")
	}

	p.mu.Lock()
	index := make(map[string]int, len(p.index))
	for k, v := range p.index {
		index[k] = v
	}
	status := make(map[string]models.StageStatus, len(p.status))
	for k, v := range p.status {
		status[k] = v
	}
	messages := make(map[string]string, len(p.messages))
	for k, v := range p.messages {
		messages[k] = strings.ReplaceAll(v, `"`, `\"`)
	}
	p.mu.Unlock()

	desc := description{Name: p.name}
	for _, name := range order {
		_, properties, err := p.graph.VertexWithProperties(name)
		if err != nil {
			return errors.Wrap(err, "unable to get vertex properties")
		}

		color, err := statusColor(status[name])
		if err != nil {
			return err
		}
		desc.Nodes = append(desc.Nodes, node{
			Name:      name,
			Algorithm: properties.Attributes["algorithm"],
			Status:    status[name].String(),
			Message:   messages[name],
			Color:     color,
		})

		targets := make([]string, 0, len(adjacencyMap[name]))
		for target := range adjacencyMap[name] {
			targets = append(targets, target)
		}
		sort.Slice(targets, func(i, j int) bool {
			return index[targets[i]] < index[targets[j]]
		})
		for _, target := range targets {
			desc.Edges = append(desc.Edges, edge{Source: name, Target: target})
		}
	}

	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}

	return errors.Wrap(tpl.Execute(w, desc), "unable to execute template")
}

// WriteFile writes the DOT graph to path.
func (p *Plan) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", path)
	}

	if err := p.WriteDOT(file); err != nil {
		file.Close()
		return errors.Wrapf(err, "unable to create dot file %s", path)
	}

	return errors.Wrapf(file.Close(), "unable to close %s", path)
}
