package services

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"tour-service/internal/models"
)

// polygonBody and textBody hold the kind-specific fields kept in the JSON
// body column. Link fields and the client id live in their own columns.
type polygonBody struct {
	Points      []models.Point `json:"points"`
	Color       string         `json:"color,omitempty"`
	StrokeWidth float64        `json:"strokeWidth,omitempty"`
	Fill        string         `json:"fill,omitempty"`
	Opacity     float64        `json:"opacity,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

type textBody struct {
	Content               string         `json:"content"`
	Position              models.Point   `json:"position"`
	FontFamily            string         `json:"fontFamily,omitempty"`
	FontSize              float64        `json:"fontSize,omitempty"`
	FontWeight            string         `json:"fontWeight,omitempty"`
	TextColor             string         `json:"textColor,omitempty"`
	BackgroundColor       string         `json:"backgroundColor,omitempty"`
	TransparentBackground bool           `json:"transparentBackground,omitempty"`
	Rotation              float64        `json:"rotation,omitempty"`
	Styles                map[string]any `json:"styles,omitempty"`
}

// syncItem is one submitted annotation in storage form. body is the decoded
// canonical body used for comparison with stored rows.
type syncItem struct {
	clientID string
	isLink   bool
	target   *uuid.UUID
	raw      datatypes.JSON
	body     any
}

var bodyEqual = cmp.Options{cmpopts.EquateEmpty()}

func polygonItems(polygons []models.Polygon) ([]syncItem, error) {
	items := make([]syncItem, 0, len(polygons))
	for _, p := range polygons {
		b := polygonBody{
			Points:      p.Points,
			Color:       p.Color,
			StrokeWidth: p.StrokeWidth,
			Fill:        p.Fill,
			Opacity:     p.Opacity,
			Data:        p.Data,
		}
		item, err := newSyncItem(models.KindPolygon, p.ClientID, p.IsLink, p.TargetNodeID, b)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func textItems(texts []models.Text) ([]syncItem, error) {
	items := make([]syncItem, 0, len(texts))
	for _, t := range texts {
		b := textBody{
			Content:               t.Content,
			Position:              t.Position,
			FontFamily:            t.FontFamily,
			FontSize:              t.FontSize,
			FontWeight:            t.FontWeight,
			TextColor:             t.TextColor,
			BackgroundColor:       t.BackgroundColor,
			TransparentBackground: t.TransparentBackground,
			Rotation:              t.Rotation,
			Styles:                t.Styles,
		}
		item, err := newSyncItem(models.KindText, t.ClientID, t.IsLink, t.TargetNodeID, b)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// newSyncItem encodes the body and decodes it again so that opaque maps
// compare the same way as bodies read back from storage.
func newSyncItem(kind models.AnnotationKind, clientID string, isLink bool, target *uuid.UUID, body any) (syncItem, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return syncItem{}, errors.Wrapf(err, "failed to encode %s %q", kind, clientID)
	}
	decoded, err := decodeBody(kind, raw)
	if err != nil {
		return syncItem{}, err
	}
	return syncItem{
		clientID: clientID,
		isLink:   isLink,
		target:   copyID(target),
		raw:      datatypes.JSON(raw),
		body:     decoded,
	}, nil
}

func decodeBody(kind models.AnnotationKind, raw []byte) (any, error) {
	switch kind {
	case models.KindPolygon:
		var b polygonBody
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, errors.Wrap(err, "failed to decode polygon body")
		}
		return b, nil
	case models.KindText:
		var b textBody
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, errors.Wrap(err, "failed to decode text body")
		}
		return b, nil
	}
	return nil, errors.Errorf("unknown annotation kind %q", kind)
}

// matches reports whether the stored row already holds item at ordinal.
func (item syncItem) matches(row *models.Annotation, ordinal int) (bool, error) {
	if row.Ordinal != ordinal || row.IsLink != item.isLink || !sameTarget(row.TargetNodeID, item.target) {
		return false, nil
	}
	stored, err := decodeBody(row.Kind, row.Body)
	if err != nil {
		return false, err
	}
	return cmp.Equal(stored, item.body, bodyEqual), nil
}

func sameTarget(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// polygonFromRow rebuilds the wire form of a stored polygon.
func polygonFromRow(row *models.Annotation) (models.Polygon, error) {
	var b polygonBody
	if err := json.Unmarshal(row.Body, &b); err != nil {
		return models.Polygon{}, errors.Wrapf(err, "failed to decode polygon %q", row.ClientID)
	}
	return models.Polygon{
		ClientID:     row.ClientID,
		Points:       b.Points,
		Color:        b.Color,
		StrokeWidth:  b.StrokeWidth,
		Fill:         b.Fill,
		Opacity:      b.Opacity,
		IsLink:       row.IsLink,
		TargetNodeID: copyID(row.TargetNodeID),
		Data:         b.Data,
	}, nil
}

func textFromRow(row *models.Annotation) (models.Text, error) {
	var b textBody
	if err := json.Unmarshal(row.Body, &b); err != nil {
		return models.Text{}, errors.Wrapf(err, "failed to decode text %q", row.ClientID)
	}
	return models.Text{
		ClientID:              row.ClientID,
		Content:               b.Content,
		Position:              b.Position,
		FontFamily:            b.FontFamily,
		FontSize:              b.FontSize,
		FontWeight:            b.FontWeight,
		TextColor:             b.TextColor,
		BackgroundColor:       b.BackgroundColor,
		TransparentBackground: b.TransparentBackground,
		Rotation:              b.Rotation,
		IsLink:                row.IsLink,
		TargetNodeID:          copyID(row.TargetNodeID),
		Styles:                b.Styles,
	}, nil
}
