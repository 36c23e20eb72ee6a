// Package loader parses and serializes the persisted graph document format
// described in §6, and hands the result to graph.New for validation.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentgraph/agentgraph/graph"
)

// document mirrors the on-disk YAML shape: a header, a goal block, node and
// edge arrays, and a graph-config block. Field order here matches the
// canonical Dump output so round-tripped documents diff cleanly.
type document struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Goal *goalDoc `yaml:"goal,omitempty"`

	Nodes []nodeDoc `yaml:"nodes"`
	Edges []edgeDoc `yaml:"edges"`

	Config configDoc `yaml:"graph_config"`
}

type goalDoc struct {
	ID              string               `yaml:"id"`
	Name            string               `yaml:"name"`
	Description     string               `yaml:"description"`
	SuccessCriteria []successCriterionDoc `yaml:"success_criteria,omitempty"`
	Constraints     []constraintDoc       `yaml:"constraints,omitempty"`
}

type successCriterionDoc struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Metric      string  `yaml:"metric"`
	Target      float64 `yaml:"target"`
	Weight      float64 `yaml:"weight"`
}

type constraintDoc struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Kind        string `yaml:"kind"`
	Category    string `yaml:"category"`
}

type routeDoc struct {
	When  string `yaml:"when,omitempty"`
	Value string `yaml:"value"`
}

type nodeDoc struct {
	ID              string     `yaml:"id"`
	Name            string     `yaml:"name"`
	Type            string     `yaml:"type"`
	InputKeys       []string   `yaml:"input_keys,omitempty"`
	OutputKeys      []string   `yaml:"output_keys,omitempty"`
	NullableOutputs []string   `yaml:"nullable_outputs,omitempty"`
	Tools           []string   `yaml:"tools,omitempty"`
	SystemPrompt    string     `yaml:"system_prompt,omitempty"`
	ClientFacing    bool       `yaml:"client_facing,omitempty"`
	MaxVisits       *int       `yaml:"max_visits,omitempty"`
	Routes          []routeDoc `yaml:"routes,omitempty"`
}

type edgeDoc struct {
	ID        string `yaml:"id"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition"`
	Predicate string `yaml:"predicate,omitempty"`
	Priority  int    `yaml:"priority"`
}

type configDoc struct {
	EntryPoints      map[string]string `yaml:"entry_points"`
	PauseNodes       []string          `yaml:"pause_nodes,omitempty"`
	TerminalNodes    []string          `yaml:"terminal_nodes,omitempty"`
	InitialInputKeys []string          `yaml:"initial_input_keys,omitempty"`
}

const defaultMaxVisits = 1

// Load parses a persisted graph document from path and returns a validated
// Graph, or the first validation error encountered.
func Load(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a persisted graph document from raw YAML bytes.
func Parse(data []byte) (*graph.Graph, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("loader: parse document: %w", err)
	}
	return fromDocument(&doc)
}

// Dump serializes g back into the persisted document format. Load(Dump(g))
// reproduces an equivalent Graph (§8 round-trip property).
func Dump(g *graph.Graph) ([]byte, error) {
	doc := toDocument(g)
	return yaml.Marshal(doc)
}

func fromDocument(doc *document) (*graph.Graph, error) {
	var goal *graph.Goal
	if doc.Goal != nil {
		goal = &graph.Goal{
			ID:          doc.Goal.ID,
			Name:        doc.Goal.Name,
			Description: doc.Goal.Description,
		}
		for _, sc := range doc.Goal.SuccessCriteria {
			goal.SuccessCriteria = append(goal.SuccessCriteria, graph.SuccessCriterion{
				ID: sc.ID, Description: sc.Description, Metric: sc.Metric, Target: sc.Target, Weight: sc.Weight,
			})
		}
		for _, c := range doc.Goal.Constraints {
			goal.Constraints = append(goal.Constraints, graph.Constraint{
				ID: c.ID, Description: c.Description, Kind: graph.ConstraintKind(c.Kind), Category: c.Category,
			})
		}
	}

	nodes := make([]*graph.NodeSpec, 0, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		maxVisits := defaultMaxVisits
		if nd.MaxVisits != nil {
			maxVisits = *nd.MaxVisits
		}
		n := &graph.NodeSpec{
			ID:              nd.ID,
			Name:            nd.Name,
			Kind:            graph.NodeKind(nd.Type),
			InputKeys:       nd.InputKeys,
			OutputKeys:      nd.OutputKeys,
			NullableOutputs: nd.NullableOutputs,
			Tools:           nd.Tools,
			SystemPrompt:    nd.SystemPrompt,
			ClientFacing:    nd.ClientFacing,
			MaxVisits:       maxVisits,
		}
		for _, rt := range nd.Routes {
			n.Routes = append(n.Routes, graph.RouterRoute{When: rt.When, Value: rt.Value})
		}
		nodes = append(nodes, n)
	}

	edges := make([]*graph.EdgeSpec, 0, len(doc.Edges))
	for _, ed := range doc.Edges {
		edges = append(edges, &graph.EdgeSpec{
			ID:        ed.ID,
			From:      ed.From,
			To:        ed.To,
			Condition: graph.Condition(ed.Condition),
			Predicate: ed.Predicate,
			Priority:  ed.Priority,
		})
	}

	return graph.New(doc.ID, doc.Name, doc.Version, goal, nodes, edges,
		doc.Config.InitialInputKeys, doc.Config.EntryPoints, doc.Config.PauseNodes, doc.Config.TerminalNodes)
}

func toDocument(g *graph.Graph) *document {
	doc := &document{
		ID:      g.ID,
		Name:    g.Name,
		Version: g.Version,
		Config: configDoc{
			EntryPoints:      g.EntryPoints,
			InitialInputKeys: g.InitialInputKeys,
		},
	}

	if g.Goal != nil {
		gd := &goalDoc{ID: g.Goal.ID, Name: g.Goal.Name, Description: g.Goal.Description}
		for _, sc := range g.Goal.SuccessCriteria {
			gd.SuccessCriteria = append(gd.SuccessCriteria, successCriterionDoc{
				ID: sc.ID, Description: sc.Description, Metric: sc.Metric, Target: sc.Target, Weight: sc.Weight,
			})
		}
		for _, c := range g.Goal.Constraints {
			gd.Constraints = append(gd.Constraints, constraintDoc{
				ID: c.ID, Description: c.Description, Kind: string(c.Kind), Category: c.Category,
			})
		}
		doc.Goal = gd
	}

	for id, n := range g.Nodes {
		_ = id
		maxVisits := n.MaxVisits
		nd := nodeDoc{
			ID:              n.ID,
			Name:            n.Name,
			Type:            string(n.Kind),
			InputKeys:       n.InputKeys,
			OutputKeys:      n.OutputKeys,
			NullableOutputs: n.NullableOutputs,
			Tools:           n.Tools,
			SystemPrompt:    n.SystemPrompt,
			ClientFacing:    n.ClientFacing,
			MaxVisits:       &maxVisits,
		}
		for _, rt := range n.Routes {
			nd.Routes = append(nd.Routes, routeDoc{When: rt.When, Value: rt.Value})
		}
		doc.Nodes = append(doc.Nodes, nd)
	}

	for _, e := range g.Edges {
		doc.Edges = append(doc.Edges, edgeDoc{
			ID: e.ID, From: e.From, To: e.To, Condition: string(e.Condition), Predicate: e.Predicate, Priority: e.Priority,
		})
	}

	for p := range g.PauseNodes {
		doc.Config.PauseNodes = append(doc.Config.PauseNodes, p)
	}
	for t := range g.TerminalNodes {
		doc.Config.TerminalNodes = append(doc.Config.TerminalNodes, t)
	}

	return doc
}
