package dashboard

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	tea "github.com/charmbracelet/bubbletea"
)

// Component is one dashboard panel.
type Component interface {
	Update(msg tea.Msg, data Data) (Component, tea.Cmd)
	View(width, height int) string

	ID() string
	Title() string
	MinWidth() int
	MinHeight() int
}

// panel carries the identity of a Component and caches its last render,
// keyed by an xxhash of the content and the allotted size.
type panel struct {
	id    string
	title string
	minW  int
	minH  int

	lastKey uint64
	cached  string
}

func (p *panel) ID() string     { return p.id }
func (p *panel) Title() string  { return p.title }
func (p *panel) MinWidth() int  { return p.minW }
func (p *panel) MinHeight() int { return p.minH }

func renderKey(content string, w, h int) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%dx%d|%s", w, h, content))
}

// cachedRender returns the previous render when content and size are
// unchanged, otherwise calls render and remembers the result.
func (p *panel) cachedRender(content string, w, h int, render func() string) string {
	k := renderKey(content, w, h)
	if k == p.lastKey && p.cached != "" {
		return p.cached
	}
	p.lastKey = k
	p.cached = render()
	return p.cached
}

// Registry keeps components in registration order.
type Registry struct {
	order      []string
	components map[string]Component
}

func NewRegistry() *Registry {
	return &Registry{components: make(map[string]Component)}
}

// Register adds comp, replacing a component with the same ID in place.
func (r *Registry) Register(comp Component) {
	id := comp.ID()
	if _, exists := r.components[id]; !exists {
		r.order = append(r.order, id)
	}
	r.components[id] = comp
}

func (r *Registry) Get(id string) Component {
	return r.components[id]
}

func (r *Registry) All() []Component {
	comps := make([]Component, 0, len(r.order))
	for _, id := range r.order {
		comps = append(comps, r.components[id])
	}
	return comps
}

// UpdateAll forwards msg and data to every component in order.
func (r *Registry) UpdateAll(msg tea.Msg, data Data) []tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range r.order {
		updated, cmd := r.components[id].Update(msg, data)
		r.components[id] = updated
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}
