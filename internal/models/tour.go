package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OwnerKind names the kind of sales entity a tour belongs to.
type OwnerKind string

const (
	OwnerProperty OwnerKind = "property"
	OwnerProject  OwnerKind = "project"
	OwnerBlock    OwnerKind = "block"
)

// Valid reports whether k is one of the known owner kinds.
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerProperty, OwnerProject, OwnerBlock:
		return true
	}
	return false
}

// OwnerRef is a tagged reference to the entity that owns a tour.
type OwnerRef struct {
	Kind OwnerKind `json:"kind" gorm:"type:varchar(32);not null;index:idx_tour_owner,priority:1" validate:"required,oneof=property project block"`
	ID   uuid.UUID `json:"id" gorm:"type:uuid;not null;index:idx_tour_owner,priority:2" validate:"required"`
}

// VirtualTour is the root of a tour graph.
type VirtualTour struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Owner       OwnerRef  `json:"owner" gorm:"embedded;embeddedPrefix:owner_"`
	NodeCounter int64     `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Nodes []TourNode `json:"nodes,omitempty" gorm:"foreignKey:TourID;constraint:OnDelete:CASCADE"`
	Links []TourLink `json:"links,omitempty" gorm:"foreignKey:TourID;constraint:OnDelete:CASCADE"`
}

func (t *VirtualTour) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
