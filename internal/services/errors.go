package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tour-service/internal/models"
)

var (
	// ErrNotFound is returned when a referenced tour, node or link is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when an operation crosses tour
	// boundaries or targets a node that does not exist.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrValidation is the sentinel wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError names the annotation that failed and the constraint it broke.
type ValidationError struct {
	Kind       models.AnnotationKind `json:"kind,omitempty"`
	ClientID   string                `json:"clientId,omitempty"`
	Field      string                `json:"field,omitempty"`
	Constraint string                `json:"constraint"`
}

func (e *ValidationError) Error() string {
	if e.ClientID == "" {
		if e.Field == "" {
			return fmt.Sprintf("validation failed: %s", e.Constraint)
		}
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Constraint)
	}
	if e.Field == "" {
		return fmt.Sprintf("validation failed for %s %q: %s", e.Kind, e.ClientID, e.Constraint)
	}
	return fmt.Sprintf("validation failed for %s %q: %s: %s", e.Kind, e.ClientID, e.Field, e.Constraint)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// notFound maps gorm's missing-row error to ErrNotFound and wraps everything
// else as a storage failure.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(ErrNotFound, what)
	}
	return errors.Wrapf(err, "failed to load %s", what)
}

func invalidRef(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidReference, format, args...)
}

// validationFailure turns a validator error into a *ValidationError for the
// first failing field. Non-validator errors pass through unchanged.
func validationFailure(err error, kind models.AnnotationKind, clientID string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	constraint := fe.Tag()
	if fe.Param() != "" {
		constraint += "=" + fe.Param()
	}
	return &ValidationError{
		Kind:       kind,
		ClientID:   clientID,
		Field:      fieldPath(fe.Namespace()),
		Constraint: constraint,
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
