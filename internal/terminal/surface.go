package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/yegors/aeris/internal/lookup"
	"github.com/yegors/aeris/internal/view"
)

// Renderer prints visible region bodies as plain text. Hidden regions print
// nothing; a terminal cannot take back what it wrote.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewRenderer creates a renderer writing to out
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) Render(in view.Instruction) {
	if !in.Visible || in.Text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s\n\n", in.Text)
}

// Map prints the live position instead of drawing it
type Map struct {
	mu     sync.Mutex
	out    io.Writer
	msgs   view.Messages
	center lookup.Point
	popup  string
}

// NewMap creates a text map surface
func NewMap(out io.Writer, msgs view.Messages) *Map {
	return &Map{out: out, msgs: msgs}
}

func (m *Map) Create(center lookup.Point, _ int) { m.setCenter(center) }

func (m *Map) AddTileLayer(string, string) {}

func (m *Map) AddMarker(lookup.Point) {}

func (m *Map) SetView(center lookup.Point) { m.setCenter(center) }

func (m *Map) MoveMarker(lookup.Point) {}

func (m *Map) BindPopup(text string) {
	m.mu.Lock()
	m.popup = text
	m.mu.Unlock()
}

func (m *Map) OpenPopup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.out, "%s: %.5f, %.5f (%s)\n\n", m.msgs.LivePosition, m.center.Lat, m.center.Lon, m.popup)
}

func (m *Map) FitBounds([]lookup.Point) {}

func (m *Map) setCenter(p lookup.Point) {
	m.mu.Lock()
	m.center = p
	m.mu.Unlock()
}
