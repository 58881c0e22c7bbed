package models

import "github.com/google/uuid"

// EntityKind names the kind of record media is attached to.
type EntityKind string

const (
	EntityNode EntityKind = "node"
	EntityTour EntityKind = "tour"
)

// EntityRef points at the record owning a media collection.
type EntityRef struct {
	Kind EntityKind
	ID   uuid.UUID
}

// Media collections.
const (
	CollectionPanorama  = "panorama"
	CollectionThumbnail = "thumbnail"
)
