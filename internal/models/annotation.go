package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnnotationKind discriminates the rows of the annotations table.
type AnnotationKind string

const (
	KindPolygon AnnotationKind = "polygon"
	KindText    AnnotationKind = "text"
)

// Annotation is the stored form of a polygon or text drawn on a node.
// ClientID is the editor-assigned join key; ID is assigned on first insert
// and never used for matching.
type Annotation struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	NodeID       uuid.UUID      `json:"node_id" gorm:"type:uuid;not null;uniqueIndex:idx_annotation_key,priority:1"`
	Kind         AnnotationKind `json:"kind" gorm:"type:varchar(16);not null;uniqueIndex:idx_annotation_key,priority:2"`
	ClientID     string         `json:"client_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_annotation_key,priority:3"`
	Ordinal      int            `json:"ordinal" gorm:"not null;default:0"`
	IsLink       bool           `json:"is_link" gorm:"not null;default:false"`
	TargetNodeID *uuid.UUID     `json:"target_node_id,omitempty" gorm:"type:uuid;index"`
	Body         datatypes.JSON `json:"body"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	Node *TourNode `json:"-" gorm:"foreignKey:NodeID;constraint:OnDelete:CASCADE"`
}

func (a *Annotation) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
