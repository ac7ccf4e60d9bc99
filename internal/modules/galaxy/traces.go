// Package galaxy renders point-in-time maps of the galactic graph:
// hyperlane line traces and system marker traces grouped by owner.
package galaxy

import (
	"encoding/json"
	"math"
	"strconv"
)

// Coords is a coordinate slice that may hold NaN gap markers. A gap is
// rendered as JSON null, which plotly reads as a break in the line, so one
// trace can draw many unconnected hyperlanes.
type Coords []float64

var _ json.Marshaler = Coords(nil)
var _ json.Unmarshaler = (*Coords)(nil)

func (c Coords) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(c)*8+2)
	buf = append(buf, '[')
	for i, v := range c {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) {
			buf = append(buf, "null"...)
		} else {
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
	}
	return append(buf, ']'), nil
}

func (c *Coords) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Coords, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	*c = out
	return nil
}

// EdgeTrace draws every hyperlane of one owner as a single line trace.
// Text holds one entry per edge, not per coordinate.
type EdgeTrace struct {
	X          Coords   `json:"x"`
	Y          Coords   `json:"y"`
	Text       []string `json:"text"`
	Mode       string   `json:"mode"`
	HoverInfo  string   `json:"hoverinfo"`
	ShowLegend bool     `json:"showlegend"`
	Line       EdgeLine `json:"line"`
}

// EdgeLine styles the hyperlanes of one owner.
type EdgeLine struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// NodeTrace draws every system of one owner as markers.
type NodeTrace struct {
	X         []float64  `json:"x"`
	Y         []float64  `json:"y"`
	Text      []string   `json:"text"`
	Name      string     `json:"name"`
	Mode      string     `json:"mode"`
	HoverInfo string     `json:"hoverinfo"`
	Marker    NodeMarker `json:"marker"`
}

// NodeMarker styles the system markers of one owner. Colors holds one
// entry per node.
type NodeMarker struct {
	Colors []string   `json:"color"`
	Size   float64    `json:"size"`
	Line   MarkerLine `json:"line"`
}

// MarkerLine is the outline around each system marker.
type MarkerLine struct {
	Width float64 `json:"width"`
}

// GalaxyTraces is one point-in-time rendering of the galactic map.
type GalaxyTraces struct {
	Edges []EdgeTrace `json:"edges"`
	Nodes []NodeTrace `json:"nodes"`
}
