package model

import (
	"time"

	"github.com/samber/mo"
)

// DefaultViewType is used when a row has no view type stored.
const DefaultViewType = "year"

// Field names as they appear on the wire.
const (
	FieldSelectedCalendarIDs = "selectedCalendarIds"
	FieldHiddenEventIDs      = "hiddenEventIds"
	FieldShowDaysOfWeek      = "showDaysOfWeek"
	FieldAlignWeekends       = "alignWeekends"
	FieldShowHidden          = "showHidden"
	FieldCalendarColors      = "calendarColors"
	FieldViewType            = "viewType"
)

// Preferences is the normalized calendar-display state of one user.
//
// AlignWeekends and ViewType are optional-with-default: rows written before
// those columns existed hold NULL and read back as false and "year".
// Every other field is always present.
type Preferences struct {
	SelectedCalendarIDs []string          `json:"selectedCalendarIds"`
	HiddenEventIDs      []string          `json:"hiddenEventIds"`
	ShowDaysOfWeek      bool              `json:"showDaysOfWeek"`
	AlignWeekends       bool              `json:"alignWeekends"`
	ShowHidden          bool              `json:"showHidden"`
	CalendarColors      map[string]string `json:"calendarColors"`
	ViewType            string            `json:"viewType"`
}

// DefaultPreferences returns the state a new row is created with.
func DefaultPreferences() Preferences {
	return Preferences{
		SelectedCalendarIDs: []string{},
		HiddenEventIDs:      []string{},
		ShowDaysOfWeek:      true,
		AlignWeekends:       false,
		ShowHidden:          false,
		CalendarColors:      map[string]string{},
		ViewType:            DefaultViewType,
	}
}

// Normalize fills nil collections and the empty view type with their
// defaults and removes duplicate hidden event ids, keeping first occurrence.
func (p Preferences) Normalize() Preferences {
	if p.SelectedCalendarIDs == nil {
		p.SelectedCalendarIDs = []string{}
	}
	p.HiddenEventIDs = dedupe(p.HiddenEventIDs)
	if p.CalendarColors == nil {
		p.CalendarColors = map[string]string{}
	}
	if p.ViewType == "" {
		p.ViewType = DefaultViewType
	}
	return p
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// UserPreferences is a stored preferences row.
type UserPreferences struct {
	UserID string
	Preferences
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch is a partial update. Absent options leave the stored value alone
// on an existing row and take the default on a fresh one.
type Patch struct {
	SelectedCalendarIDs mo.Option[[]string]
	HiddenEventIDs      mo.Option[[]string]
	ShowDaysOfWeek      mo.Option[bool]
	AlignWeekends       mo.Option[bool]
	ShowHidden          mo.Option[bool]
	CalendarColors      mo.Option[map[string]string]
	ViewType            mo.Option[string]
}

// IsEmpty reports whether the patch carries no field at all.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the wire names of the fields present in the patch.
func (p Patch) Fields() []string {
	var out []string
	if p.SelectedCalendarIDs.IsPresent() {
		out = append(out, FieldSelectedCalendarIDs)
	}
	if p.HiddenEventIDs.IsPresent() {
		out = append(out, FieldHiddenEventIDs)
	}
	if p.ShowDaysOfWeek.IsPresent() {
		out = append(out, FieldShowDaysOfWeek)
	}
	if p.AlignWeekends.IsPresent() {
		out = append(out, FieldAlignWeekends)
	}
	if p.ShowHidden.IsPresent() {
		out = append(out, FieldShowHidden)
	}
	if p.CalendarColors.IsPresent() {
		out = append(out, FieldCalendarColors)
	}
	if p.ViewType.IsPresent() {
		out = append(out, FieldViewType)
	}
	return out
}

// Apply layers the present fields over base and normalizes the result.
func (p Patch) Apply(base Preferences) Preferences {
	if v, ok := p.SelectedCalendarIDs.Get(); ok {
		base.SelectedCalendarIDs = v
	}
	if v, ok := p.HiddenEventIDs.Get(); ok {
		base.HiddenEventIDs = v
	}
	if v, ok := p.ShowDaysOfWeek.Get(); ok {
		base.ShowDaysOfWeek = v
	}
	if v, ok := p.AlignWeekends.Get(); ok {
		base.AlignWeekends = v
	}
	if v, ok := p.ShowHidden.Get(); ok {
		base.ShowHidden = v
	}
	if v, ok := p.CalendarColors.Get(); ok {
		base.CalendarColors = v
	}
	if v, ok := p.ViewType.Get(); ok {
		base.ViewType = v
	}
	return base.Normalize()
}
