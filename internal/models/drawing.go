package models

import "github.com/google/uuid"

// Point is a 2-D coordinate in the editor's projection of the panorama.
type Point struct {
	X float64 `json:"x" validate:"finite"`
	Y float64 `json:"y" validate:"finite"`
}

// Polygon is the wire shape of a polygon annotation.
type Polygon struct {
	ClientID     string         `json:"clientId" validate:"required,max=128"`
	Points       []Point        `json:"points" validate:"min=3,dive"`
	Color        string         `json:"color" validate:"max=64"`
	StrokeWidth  float64        `json:"strokeWidth" validate:"gte=0"`
	Fill         string         `json:"fill" validate:"max=64"`
	Opacity      float64        `json:"opacity" validate:"gte=0,lte=1"`
	IsLink       bool           `json:"isLink"`
	TargetNodeID *uuid.UUID     `json:"targetNodeId,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Text is the wire shape of a text label annotation.
type Text struct {
	ClientID              string         `json:"clientId" validate:"required,max=128"`
	Content               string         `json:"content" validate:"required"`
	Position              Point          `json:"position"`
	FontFamily            string         `json:"fontFamily" validate:"max=128"`
	FontSize              float64        `json:"fontSize" validate:"gte=0"`
	FontWeight            string         `json:"fontWeight" validate:"omitempty,oneof=normal bold bolder lighter 100 200 300 400 500 600 700 800 900"`
	TextColor             string         `json:"textColor" validate:"max=64"`
	BackgroundColor       string         `json:"backgroundColor" validate:"max=64"`
	TransparentBackground bool           `json:"transparentBackground"`
	Rotation              float64        `json:"rotation"`
	IsLink                bool           `json:"isLink"`
	TargetNodeID          *uuid.UUID     `json:"targetNodeId,omitempty"`
	Styles                map[string]any `json:"styles,omitempty"`
}

// DrawingSet is the full annotation state of one node, as loaded by the
// editor and submitted back on save.
type DrawingSet struct {
	Polygons []Polygon `json:"polygons"`
	Texts    []Text    `json:"texts"`
}

// SyncStats counts the effects of one reconciliation pass for one kind.
type SyncStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Changed reports whether the pass wrote anything.
func (s SyncStats) Changed() bool {
	return s.Inserted+s.Updated+s.Deleted > 0
}

// AppliedSet is the outcome of a reconciliation. Polygons or Texts is nil
// when that kind was not part of the call.
type AppliedSet struct {
	Success      bool       `json:"success"`
	Polygons     []Polygon  `json:"polygons"`
	Texts        []Text     `json:"texts"`
	PolygonStats *SyncStats `json:"polygonStats,omitempty"`
	TextStats    *SyncStats `json:"textStats,omitempty"`
}
