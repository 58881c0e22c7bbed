package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GPS is the optional geographic position of a panorama.
type GPS struct {
	Latitude  float64 `json:"latitude" gorm:"type:decimal(10,6)" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" gorm:"type:decimal(10,6)" validate:"gte=-180,lte=180"`
	Altitude  float64 `json:"altitude" gorm:"type:decimal(10,3)"`
}

// SphereCorrection rotates a panorama so that its horizon and north line up.
// Values are radians.
type SphereCorrection struct {
	Pan  float64 `json:"pan" gorm:"type:decimal(10,6)"`
	Tilt float64 `json:"tilt" gorm:"type:decimal(10,6)"`
	Roll float64 `json:"roll" gorm:"type:decimal(10,6)"`
}

// TourNode is a single panoramic viewpoint.
type TourNode struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TourID   uuid.UUID `json:"tour_id" gorm:"type:uuid;not null;index:idx_node_tour_seq,priority:1"`
	Sequence int64     `json:"sequence" gorm:"not null;index:idx_node_tour_seq,priority:2"`

	Name         string `json:"name"`
	Caption      string `json:"caption"`
	PanoramaRef  string `json:"panorama_ref"`
	ThumbnailRef string `json:"thumbnail_ref"`

	GPS              *GPS              `json:"gps,omitempty" gorm:"embedded;embeddedPrefix:gps_"`
	SphereCorrection *SphereCorrection `json:"sphere_correction,omitempty" gorm:"embedded;embeddedPrefix:sphere_"`

	IsStartNode bool      `json:"is_start_node" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (n *TourNode) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// HotspotPosition is a yaw/pitch anchor in the source panorama, in radians.
type HotspotPosition struct {
	Yaw   float64 `json:"yaw" gorm:"type:decimal(10,6)"`
	Pitch float64 `json:"pitch" gorm:"type:decimal(10,6)"`
}

// TourLink is a directed navigational hotspot from one node to another.
type TourLink struct {
	ID         uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	TourID     uuid.UUID        `json:"tour_id" gorm:"type:uuid;not null;index"`
	FromNodeID uuid.UUID        `json:"from_node_id" gorm:"type:uuid;not null;index"`
	ToNodeID   uuid.UUID        `json:"to_node_id" gorm:"type:uuid;not null;index"`
	Position   *HotspotPosition `json:"position,omitempty" gorm:"embedded;embeddedPrefix:pos_"`
	CreatedAt  time.Time        `json:"created_at" gorm:"autoCreateTime"`

	FromNode *TourNode `json:"-" gorm:"foreignKey:FromNodeID;constraint:OnDelete:CASCADE"`
	ToNode   *TourNode `json:"-" gorm:"foreignKey:ToNodeID;constraint:OnDelete:CASCADE"`
}

func (l *TourLink) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// AfterFind drops embedded structs that came back all-zero so that absent
// GPS or correction data serializes as null.
func (n *TourNode) AfterFind(*gorm.DB) error {
	if n.GPS != nil && *n.GPS == (GPS{}) {
		n.GPS = nil
	}
	if n.SphereCorrection != nil && *n.SphereCorrection == (SphereCorrection{}) {
		n.SphereCorrection = nil
	}
	return nil
}
