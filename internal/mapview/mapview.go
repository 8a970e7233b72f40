// Package mapview models the Leaflet map embedded in the page: a center, a
// zoom level, an OpenStreetMap tile layer and at most one marker.
package mapview

const (
	InitialLat  = -6.2
	InitialLon  = 106.8
	InitialZoom = 10
	CityZoom    = 11

	TileURL         = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	TileMaxZoom     = 19
	TileAttribution = "© OpenStreetMap"
)

type TileLayer struct {
	URL         string `json:"url"`
	MaxZoom     int    `json:"maxZoom"`
	Attribution string `json:"attribution"`
}

type Marker struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Label     string  `json:"label"`
	PopupOpen bool    `json:"popupOpen"`
}

// View is the serialisable map state handed to the page script.
type View struct {
	Lat    float64   `json:"lat"`
	Lon    float64   `json:"lon"`
	Zoom   int       `json:"zoom"`
	Tiles  TileLayer `json:"tiles"`
	Marker *Marker   `json:"marker,omitempty"`
}

// New returns the initial view over Jakarta with no marker.
func New() View {
	return View{
		Lat:  InitialLat,
		Lon:  InitialLon,
		Zoom: InitialZoom,
		Tiles: TileLayer{
			URL:         TileURL,
			MaxZoom:     TileMaxZoom,
			Attribution: TileAttribution,
		},
	}
}

// Center moves the view to (lat, lon) at CityZoom and replaces any existing
// marker with one labelled label, popup open.
func (v *View) Center(lat, lon float64, label string) {
	v.Lat = lat
	v.Lon = lon
	v.Zoom = CityZoom
	v.Marker = &Marker{Lat: lat, Lon: lon, Label: label, PopupOpen: true}
}

// Markers returns the markers on the map; never more than one.
func (v View) Markers() []Marker {
	if v.Marker == nil {
		return nil
	}
	return []Marker{*v.Marker}
}
