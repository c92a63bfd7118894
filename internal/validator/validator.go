package validator

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/paulmach/orb"
	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/errs"
)

// CityObjectInput is the client representation of a referenced object
type CityObjectInput struct {
	Type        string `json:"type"`
	ReferenceID string `json:"referenceId"`
	Name        string `json:"name"`
}

// SignalInput is a signal submission as received from clients
type SignalInput struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Category         string           `json:"category"`
	CityObject       *CityObjectInput `json:"cityObject"`
	ContainerState   []string         `json:"containerState"`
	Location         []float64        `json:"location"` // [longitude, latitude]
	Address          string           `json:"address"`
	Status           string           `json:"status"`
	AdminNotes       string           `json:"adminNotes"`
	ReporterUniqueID string           `json:"reporterUniqueId"`
}

// SignalUpdateInput is a partial signal update; nil fields are left untouched
type SignalUpdateInput struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Address        *string   `json:"address"`
	Status         *string   `json:"status"`
	AdminNotes     *string   `json:"adminNotes"`
	ContainerState *[]string `json:"containerState"`
	// ReporterUniqueID proves ownership for anonymous callers
	ReporterUniqueID string `json:"reporterUniqueId"`
}

// Validator checks client input and turns it into documents
type Validator struct {
	maxTitleLength int
}

// NewValidator creates a validator with the given title length limit
func NewValidator(maxTitleLength int) *Validator {
	if maxTitleLength <= 0 {
		maxTitleLength = 200
	}
	return &Validator{maxTitleLength: maxTitleLength}
}

// ValidateSignal validates a submission and builds the draft document.
// Non-admin drafts always start pending and carry no admin notes.
func (v *Validator) ValidateSignal(in SignalInput, actor auth.Actor) (*db.Signal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errs.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > v.maxTitleLength {
		return nil, errs.Validation("title must be at most %d characters", v.maxTitleLength)
	}

	category := db.CategoryOther
	if in.Category != "" {
		category = db.SignalCategory(in.Category)
		if !category.Valid() {
			return nil, errs.Validation("invalid category %q", in.Category)
		}
	}

	draft := &db.Signal{
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Category:         category,
		Address:          strings.TrimSpace(in.Address),
		Status:           db.SignalPending,
		ReporterUniqueID: strings.TrimSpace(in.ReporterUniqueID),
	}

	if in.CityObject != nil {
		obj := &db.CityObject{
			Type:        db.ObjectType(in.CityObject.Type),
			ReferenceID: strings.TrimSpace(in.CityObject.ReferenceID),
			Name:        strings.TrimSpace(in.CityObject.Name),
		}
		if obj.Type != "" && !obj.Type.Valid() {
			return nil, errs.Validation("invalid cityObject.type %q", in.CityObject.Type)
		}
		if *obj != (db.CityObject{}) {
			draft.CityObject = obj
		}
	}

	state, err := ValidateConditions(in.ContainerState)
	if err != nil {
		return nil, err
	}
	draft.ContainerState = state

	if in.Location != nil {
		loc, err := ValidateLocation(in.Location)
		if err != nil {
			return nil, err
		}
		draft.Location = &loc
	}

	if actor.IsAdmin() {
		if in.Status != "" {
			status := db.SignalStatus(in.Status)
			if !status.Valid() {
				return nil, errs.Validation("invalid status %q", in.Status)
			}
			draft.Status = status
		}
		draft.AdminNotes = strings.TrimSpace(in.AdminNotes)
	}

	return draft, nil
}

// ValidateSignalUpdate checks an update against the current document and
// the actor's rights and returns the patch to apply. Ownership of anonymous
// callers must be established before calling.
func (v *Validator) ValidateSignalUpdate(in SignalUpdateInput, current *db.Signal, actor auth.Actor) (db.SignalPatch, error) {
	var patch db.SignalPatch

	if current.Status.IsTerminal() && !actor.IsAdmin() {
		return patch, errs.Forbidden("signal is %s and can no longer be changed", current.Status)
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return patch, errs.Validation("title must not be empty")
		}
		if utf8.RuneCountInString(title) > v.maxTitleLength {
			return patch, errs.Validation("title must be at most %d characters", v.maxTitleLength)
		}
		patch.Title = &title
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		patch.Description = &d
	}
	if in.Address != nil {
		a := strings.TrimSpace(*in.Address)
		patch.Address = &a
	}
	if in.ContainerState != nil {
		state, err := ValidateConditions(*in.ContainerState)
		if err != nil {
			return patch, err
		}
		if state == nil {
			state = []db.ContainerCondition{}
		}
		patch.ContainerState = &state
	}

	if in.AdminNotes != nil {
		if !actor.IsAdmin() {
			return patch, errs.Forbidden("only administrators can set adminNotes")
		}
		n := strings.TrimSpace(*in.AdminNotes)
		patch.AdminNotes = &n
	}

	if in.Status != nil {
		next := db.SignalStatus(*in.Status)
		if !next.Valid() {
			return patch, errs.Validation("invalid status %q", *in.Status)
		}
		// reporters may only close their own report
		if !actor.IsAdmin() && next != db.SignalResolved {
			return patch, errs.Forbidden("only administrators can set status %q", next)
		}
		if next != current.Status {
			if !current.Status.CanTransitionTo(next) {
				return patch, errs.Validation("cannot change status from %s to %s", current.Status, next)
			}
			patch.Status = &next
		}
	}

	return patch, nil
}

// ValidateConditions checks container condition flags and drops repeats
func ValidateConditions(in []string) ([]db.ContainerCondition, error) {
	if len(in) == 0 {
		return nil, nil
	}
	seen := make(map[db.ContainerCondition]bool, len(in))
	out := make([]db.ContainerCondition, 0, len(in))
	for _, s := range in {
		c := db.ContainerCondition(s)
		if !c.Valid() {
			return nil, errs.Validation("invalid containerState value %q", s)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// ValidateLocation checks a [longitude, latitude] pair
func ValidateLocation(coords []float64) (orb.Point, error) {
	if len(coords) != 2 {
		return orb.Point{}, errs.Validation("location must be [longitude, latitude]")
	}
	lon, lat := coords[0], coords[1]
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return orb.Point{}, errs.Validation("location must contain valid numbers")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, errs.Validation("location out of range: longitude %g, latitude %g", lon, lat)
	}
	return orb.Point{lon, lat}, nil
}
