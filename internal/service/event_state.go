package service

import (
	"time"

	"campus-events/internal/models"
)

// UpdateEventRequest carries the fields an organizer wants to change. A nil
// field is left untouched; presence alone counts as an edit attempt.
type UpdateEventRequest struct {
	Name                 *string                   `json:"name"`
	Description          *string                   `json:"description"`
	Type                 *models.EventType         `json:"type"`
	IIITOnly             *bool                     `json:"iiit_only"`
	RegistrationDeadline *time.Time                `json:"registration_deadline"`
	StartAt              *time.Time                `json:"start_at"`
	EndAt                *time.Time                `json:"end_at"`
	Capacity             *int                      `json:"capacity"`
	Fee                  *float64                  `json:"fee"`
	Tags                 *[]string                 `json:"tags"`
	FormFields           *models.FormFields        `json:"form_fields"`
	Merchandise          *[]models.MerchandiseItem `json:"merchandise"`
	Status               *models.EventStatus       `json:"status"`
}

// touchesSurface reports whether the request edits the registration surface
// frozen by the form lock
func (r UpdateEventRequest) touchesSurface() bool {
	return r.FormFields != nil || r.Merchandise != nil || r.Type != nil
}

// frozenOncePublished lists the fields present in r that a published event no
// longer accepts
func (r UpdateEventRequest) frozenOncePublished() []string {
	var out []string
	add := func(present bool, name string) {
		if present {
			out = append(out, name)
		}
	}
	add(r.Name != nil, "name")
	add(r.Type != nil, "type")
	add(r.IIITOnly != nil, "iiit_only")
	add(r.StartAt != nil, "start_at")
	add(r.EndAt != nil, "end_at")
	add(r.Fee != nil, "fee")
	add(r.Tags != nil, "tags")
	add(r.FormFields != nil, "form_fields")
	add(r.Merchandise != nil, "merchandise")
	return out
}

func (r UpdateEventRequest) hasFieldEdits() bool {
	return len(r.frozenOncePublished()) > 0 || r.Description != nil ||
		r.RegistrationDeadline != nil || r.Capacity != nil
}

// PlanEventUpdate decides whether req may be applied to current and returns
// the updated event. replaceSurface is true when form fields or merchandise
// must be rewritten. current is never modified.
func PlanEventUpdate(current *models.Event, req UpdateEventRequest) (next *models.Event, replaceSurface bool, err error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, false, models.Fail(models.ErrValidationFailed, "unknown event status %q", *req.Status)
	}
	if req.touchesSurface() && current.FormLocked {
		return nil, false, models.Fail(models.ErrLockedField, "form fields and merchandise are locked after the first registration")
	}

	e := *current
	e.Merchandise = append([]models.MerchandiseItem(nil), current.Merchandise...)

	switch current.Status {
	case models.EventStatusDraft:
		applyDraftEdits(&e, req)
		if req.Status != nil {
			switch *req.Status {
			case models.EventStatusDraft:
			case models.EventStatusPublished:
				if e.Type == models.EventTypeNormal && len(e.FormFields) == 0 {
					return nil, false, models.Fail(models.ErrInvalidTransition, "a normal event needs at least one form field before publishing")
				}
				if e.Type == models.EventTypeMerchandise && len(e.Merchandise) == 0 {
					return nil, false, models.Fail(models.ErrInvalidTransition, "a merchandise event needs at least one item before publishing")
				}
				e.Status = models.EventStatusPublished
			default:
				return nil, false, models.Fail(models.ErrInvalidTransition, "a draft can only be published")
			}
		}
		if err := e.ValidateDefinition(); err != nil {
			return nil, false, err
		}
		return &e, req.touchesSurface(), nil

	case models.EventStatusPublished:
		if frozen := req.frozenOncePublished(); len(frozen) > 0 {
			return nil, false, models.Fail(models.ErrLockedField, "%s cannot change once the event is published", frozen[0])
		}
		if req.Description != nil {
			e.Description = *req.Description
		}
		if req.RegistrationDeadline != nil {
			next := req.RegistrationDeadline.UTC()
			if next.Before(current.RegistrationDeadline) {
				return nil, false, models.Fail(models.ErrLockedField, "registration deadline can only be extended")
			}
			e.RegistrationDeadline = next
		}
		if req.Capacity != nil {
			if !capacityGrows(current.Capacity, *req.Capacity) {
				return nil, false, models.Fail(models.ErrLockedField, "capacity can only be increased")
			}
			e.Capacity = *req.Capacity
		}
		if req.Status != nil {
			switch *req.Status {
			case models.EventStatusPublished, models.EventStatusOngoing, models.EventStatusClosed, models.EventStatusCompleted:
				e.Status = *req.Status
			default:
				return nil, false, models.Fail(models.ErrInvalidTransition, "a published event cannot return to %s", *req.Status)
			}
		}
		return &e, false, nil

	case models.EventStatusOngoing, models.EventStatusCompleted, models.EventStatusClosed:
		if req.hasFieldEdits() {
			return nil, false, models.Fail(models.ErrLockedField, "event is locked")
		}
		if req.Status != nil {
			switch *req.Status {
			case models.EventStatusCompleted, models.EventStatusClosed:
				e.Status = *req.Status
			default:
				return nil, false, models.Fail(models.ErrInvalidTransition, "a %s event can only move to completed or closed", current.Status)
			}
		}
		return &e, false, nil
	}

	return nil, false, models.Fail(models.ErrInvalidTransition, "unknown event status %q", current.Status)
}

// capacityGrows reports whether next is at least as permissive as prev; 0 is unlimited
func capacityGrows(prev, next int) bool {
	if next < 0 {
		return false
	}
	if next == 0 {
		return true
	}
	if prev == 0 {
		return false
	}
	return next >= prev
}

func applyDraftEdits(e *models.Event, req UpdateEventRequest) {
	if req.Name != nil {
		e.Name = *req.Name
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Type != nil {
		e.Type = *req.Type
	}
	if req.IIITOnly != nil {
		e.IIITOnly = *req.IIITOnly
	}
	if req.RegistrationDeadline != nil {
		e.RegistrationDeadline = req.RegistrationDeadline.UTC()
	}
	if req.StartAt != nil {
		e.StartAt = req.StartAt.UTC()
	}
	if req.EndAt != nil {
		e.EndAt = req.EndAt.UTC()
	}
	if req.Capacity != nil {
		e.Capacity = *req.Capacity
	}
	if req.Fee != nil {
		e.Fee = *req.Fee
	}
	if req.Tags != nil {
		e.Tags = models.StringList(*req.Tags)
	}
	if req.FormFields != nil {
		e.FormFields = req.FormFields.Sorted()
	}
	if req.Merchandise != nil {
		e.Merchandise = *req.Merchandise
	}
}
