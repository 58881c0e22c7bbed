package models

import "github.com/google/uuid"

// TourDocument is the read-only projection consumed by the panorama viewer.
type TourDocument struct {
	TourID uuid.UUID    `json:"tourId"`
	Name   string       `json:"name"`
	Nodes  []ExportNode `json:"nodes"`
}

type ExportNode struct {
	ID               uuid.UUID         `json:"id"`
	PanoramaURL      string            `json:"panoramaUrl"`
	ThumbnailURL     string            `json:"thumbnailUrl"`
	Name             string            `json:"name"`
	Caption          string            `json:"caption"`
	GPS              *GPS              `json:"gps"`
	SphereCorrection *SphereCorrection `json:"sphereCorrection"`
	IsStartNode      bool              `json:"isStartNode"`
	Links            []ExportLink      `json:"links"`
	Markers          []ExportMarker    `json:"markers"`
}

type ExportLink struct {
	TargetNodeID uuid.UUID        `json:"targetNodeId"`
	Position     *HotspotPosition `json:"position,omitempty"`
}

// ExportMarker is an annotation rendered by the viewer. Markers with a
// TargetNodeID act as navigation hotspots.
type ExportMarker struct {
	ID           uuid.UUID      `json:"id"`
	Kind         AnnotationKind `json:"kind"`
	Position     Point          `json:"position"`
	TargetNodeID *uuid.UUID     `json:"targetNodeId,omitempty"`
	Polygon      *Polygon       `json:"polygon,omitempty"`
	Text         *Text          `json:"text,omitempty"`
}

// MissingReference records a dangling target dropped during export.
type MissingReference struct {
	NodeID       uuid.UUID `json:"nodeId"`
	Source       string    `json:"source"` // "link" or "marker"
	SourceID     string    `json:"sourceId"`
	TargetNodeID uuid.UUID `json:"targetNodeId"`
}

// ExportResult pairs an assembled document with the warnings raised while
// building it.
type ExportResult struct {
	Document *TourDocument      `json:"document"`
	Warnings []MissingReference `json:"warnings,omitempty"`
}
