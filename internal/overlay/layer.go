package overlay

import (
	"encoding/json"

	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"

	"fleet_dashboard/internal/derive"
	"fleet_dashboard/internal/models"
)

// HeatOptions are the rendering options of the heat layer.
type HeatOptions struct {
	Radius  int `json:"radius"`
	Blur    int `json:"blur"`
	MaxZoom int `json:"maxZoom"`
}

var DefaultHeatOptions = HeatOptions{Radius: 25, Blur: 15, MaxZoom: 17}

// Layer is one heat overlay attached to the map widget.
type Layer struct {
	ID      string                `json:"id"`
	Points  []models.HeatmapPoint `json:"-"`
	Bounds  models.Bounds         `json:"bounds"`
	Options HeatOptions           `json:"options"`

	encoded json.RawMessage
}

func newLayer(points []models.HeatmapPoint, opts HeatOptions) *Layer {
	b, _ := derive.Bounds(points)
	return &Layer{
		ID:      uuid.NewString(),
		Points:  append([]models.HeatmapPoint(nil), points...),
		Bounds:  b,
		Options: opts,
	}
}

// Encoded returns the GeoJSON of the layer, reusing the encoding made by
// Prepare when there is one.
func (l *Layer) Encoded() (json.RawMessage, error) {
	if l.encoded != nil {
		return l.encoded, nil
	}
	return l.GeoJSON().MarshalJSON()
}

// GeoJSON renders the layer as a FeatureCollection of weighted points.
// Coordinates are [lon, lat].
func (l *Layer) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BoundingBox = []float64{l.Bounds.MinLon, l.Bounds.MinLat, l.Bounds.MaxLon, l.Bounds.MaxLat}
	for _, p := range l.Points {
		f := geojson.NewPointFeature([]float64{p.Lon, p.Lat})
		f.SetProperty("weight", p.Weight)
		fc.AddFeature(f)
	}
	return fc
}
