// Package layers defines the architectural layers of a project and the
// policy that says which layer may import which.
package layers

import "sort"

// Layer is a named partition of a project, identified by the first path
// segment under the project root.
type Layer string

// Built-in layers.
const (
	Core       Layer = "core"
	Memory     Layer = "memory"
	Prompts    Layer = "prompts"
	Tools      Layer = "tools"
	Nodes      Layer = "nodes"
	Graphs     Layer = "graphs"
	Interfaces Layer = "interfaces"

	// Config is the shared layer: importable from every layer.
	Config Layer = "config"
)

// Policy maps each layer to the set of layers it may import. It is built
// once by New and never mutated afterwards.
type Policy struct {
	allowed map[Layer]map[Layer]struct{}
	known   map[Layer]struct{}
	shared  Layer
}

// New builds a frozen policy from table. The shared layer is appended to
// every entry of table and becomes a known layer. An import from a layer to
// itself is always permitted and does not need to appear in table.
func New(table map[Layer][]Layer, shared Layer) *Policy {
	p := &Policy{
		allowed: make(map[Layer]map[Layer]struct{}, len(table)),
		known:   make(map[Layer]struct{}, len(table)+1),
		shared:  shared,
	}

	for layer, targets := range table {
		set := make(map[Layer]struct{}, len(targets)+1)
		for _, t := range targets {
			set[t] = struct{}{}
		}
		p.allowed[layer] = set
		p.known[layer] = struct{}{}
	}

	// Closure step: the shared layer is reachable from everywhere.
	if shared != "" {
		for layer, set := range p.allowed {
			if layer != shared {
				set[shared] = struct{}{}
			}
		}
		p.known[shared] = struct{}{}
	}

	return p
}

// Default returns the built-in seven-layer policy with config as the
// shared layer.
func Default() *Policy {
	return New(map[Layer][]Layer{
		Core:       {},
		Memory:     {Core},
		Prompts:    {Core},
		Tools:      {Core},
		Nodes:      {Core, Prompts, Tools},
		Graphs:     {Core, Nodes, Memory, Config},
		Interfaces: {Core, Graphs},
	}, Config)
}

// Known reports whether name is a layer of this policy.
func (p *Policy) Known(name string) bool {
	_, ok := p.known[Layer(name)]
	return ok
}

// Shared returns the layer every other layer may import.
func (p *Policy) Shared() Layer {
	return p.shared
}

// Allows reports whether from may import to. Same-layer imports are not
// answered here; see Permits.
func (p *Policy) Allows(from, to Layer) bool {
	_, ok := p.allowed[from][to]
	return ok
}

// Permits reports whether an import edge from -> to is compliant, counting
// same-layer imports as always compliant.
func (p *Policy) Permits(from, to Layer) bool {
	return from == to || p.Allows(from, to)
}

// Allowed returns the sorted allowed targets of layer. Unknown layers get
// an empty set.
func (p *Policy) Allowed(layer Layer) []Layer {
	set := p.allowed[layer]
	out := make([]Layer, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sortLayers(out)
	return out
}

// Layers returns every known layer, sorted.
func (p *Policy) Layers() []Layer {
	out := make([]Layer, 0, len(p.known))
	for l := range p.known {
		out = append(out, l)
	}
	sortLayers(out)
	return out
}

// Table returns a copy of the closed allow-list, keyed by layer name.
func (p *Policy) Table() map[string][]string {
	out := make(map[string][]string, len(p.known))
	for _, l := range p.Layers() {
		targets := p.Allowed(l)
		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = string(t)
		}
		out[string(l)] = names
	}
	return out
}

func sortLayers(ls []Layer) {
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
}
