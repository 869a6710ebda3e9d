package session

import (
	"github.com/yegors/aeris/internal/lookup"
	"github.com/yegors/aeris/internal/view"
	"github.com/yegors/aeris/internal/websocket"
)

// Outgoing message types
const (
	MessageSession = "session"
	MessageRender  = "render"
	MessageMap     = "map"
)

// Sender delivers messages to one page; *websocket.Client implements it
type Sender interface {
	SendMessage(message *websocket.Message) bool
}

// pageRenderer turns region instructions into render messages
type pageRenderer struct {
	out Sender
}

func (p pageRenderer) Render(in view.Instruction) {
	p.out.SendMessage(&websocket.Message{Type: MessageRender, Data: in})
}

// MapOp is one map library call forwarded to the page
type MapOp struct {
	Op          string         `json:"op"`
	Center      *lookup.Point  `json:"center,omitempty"`
	Zoom        int            `json:"zoom,omitempty"`
	URL         string         `json:"url,omitempty"`
	Attribution string         `json:"attribution,omitempty"`
	Text        string         `json:"text,omitempty"`
	Points      []lookup.Point `json:"points,omitempty"`
}

// pageMap forwards map calls to the Leaflet instance on the page
type pageMap struct {
	out Sender
}

func (m pageMap) send(op MapOp) {
	m.out.SendMessage(&websocket.Message{Type: MessageMap, Data: op})
}

func (m pageMap) Create(center lookup.Point, zoom int) {
	m.send(MapOp{Op: "create", Center: &center, Zoom: zoom})
}

func (m pageMap) AddTileLayer(urlTemplate, attribution string) {
	m.send(MapOp{Op: "tile_layer", URL: urlTemplate, Attribution: attribution})
}

func (m pageMap) AddMarker(at lookup.Point) {
	m.send(MapOp{Op: "add_marker", Center: &at})
}

func (m pageMap) SetView(center lookup.Point) {
	m.send(MapOp{Op: "set_view", Center: &center})
}

func (m pageMap) MoveMarker(to lookup.Point) {
	m.send(MapOp{Op: "move_marker", Center: &to})
}

func (m pageMap) BindPopup(text string) {
	m.send(MapOp{Op: "bind_popup", Text: text})
}

func (m pageMap) OpenPopup() {
	m.send(MapOp{Op: "open_popup"})
}

func (m pageMap) FitBounds(points []lookup.Point) {
	m.send(MapOp{Op: "fit_bounds", Points: points})
}
