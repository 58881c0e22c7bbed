package models

import "github.com/google/uuid"

// CreateTourRequest is the body of POST /tours.
type CreateTourRequest struct {
	Name  string   `json:"name" validate:"required,max=255"`
	Owner OwnerRef `json:"owner"`
}

// RenameTourRequest is the body of PUT /tours/:tourId.
type RenameTourRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// NodeAttributes carries the writable fields of a node.
type NodeAttributes struct {
	Name             string            `json:"name" validate:"max=255"`
	Caption          string            `json:"caption"`
	PanoramaRef      string            `json:"panoramaRef" validate:"max=512"`
	ThumbnailRef     string            `json:"thumbnailRef" validate:"max=512"`
	GPS              *GPS              `json:"gps"`
	SphereCorrection *SphereCorrection `json:"sphereCorrection"`
}

// LinkNodesRequest is the body of POST /tours/:tourId/links.
type LinkNodesRequest struct {
	FromNodeID uuid.UUID        `json:"fromNodeId" validate:"required"`
	ToNodeID   uuid.UUID        `json:"toNodeId" validate:"required"`
	Position   *HotspotPosition `json:"position"`
}

// SetStartNodeRequest is the body of PUT /tours/:tourId/start-node.
type SetStartNodeRequest struct {
	NodeID uuid.UUID `json:"nodeId" validate:"required"`
}
