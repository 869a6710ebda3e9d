package lookup

// Point is a WGS84 position
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapSurface is the map library the controller drives. Implementations are
// opaque to the controller and report their own failures.
type MapSurface interface {
	Create(center Point, zoom int)
	AddTileLayer(urlTemplate, attribution string)
	AddMarker(at Point)
	SetView(center Point)
	MoveMarker(to Point)
	BindPopup(text string)
	OpenPopup()
	FitBounds(points []Point)
}

// MapOptions configures the lazily created map
type MapOptions struct {
	TileURL     string
	Attribution string
	Zoom        int
}

// mapState tracks the single map instance of a controller
type mapState struct {
	created bool
	marker  Point
}
