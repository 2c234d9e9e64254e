package service

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/samber/mo"

	"github.com/iliyamo/calendar-preferences/internal/model"
)

// DecodePatch validates a PUT body and turns it into a Patch. Fields are
// checked in a fixed order and the first failure is returned; nothing is
// written when an error comes back. Unknown fields are ignored.
//
//   - selectedCalendarIds, hiddenEventIds: array of strings, null resets
//   - calendarColors: object of string to string, null resets
//   - showDaysOfWeek, showHidden: strict boolean
//   - alignWeekends: any value, coerced by truthiness
//   - viewType: string
func DecodePatch(body []byte) (model.Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return model.Patch{}, InvalidInput("", "Invalid JSON in request body")
	}

	var (
		p   model.Patch
		err error
	)
	if v, ok := raw[model.FieldSelectedCalendarIDs]; ok {
		if p.SelectedCalendarIDs, err = decodeStrings(model.FieldSelectedCalendarIDs, v); err != nil {
			return model.Patch{}, err
		}
	}
	if v, ok := raw[model.FieldHiddenEventIDs]; ok {
		if p.HiddenEventIDs, err = decodeStrings(model.FieldHiddenEventIDs, v); err != nil {
			return model.Patch{}, err
		}
	}
	if v, ok := raw[model.FieldShowDaysOfWeek]; ok {
		if p.ShowDaysOfWeek, err = decodeBool(model.FieldShowDaysOfWeek, v); err != nil {
			return model.Patch{}, err
		}
	}
	if v, ok := raw[model.FieldAlignWeekends]; ok {
		p.AlignWeekends = mo.Some(truthy(v))
	}
	if v, ok := raw[model.FieldShowHidden]; ok {
		if p.ShowHidden, err = decodeBool(model.FieldShowHidden, v); err != nil {
			return model.Patch{}, err
		}
	}
	if v, ok := raw[model.FieldCalendarColors]; ok {
		if p.CalendarColors, err = decodeColors(v); err != nil {
			return model.Patch{}, err
		}
	}
	if v, ok := raw[model.FieldViewType]; ok {
		var s string
		if isNull(v) || json.Unmarshal(v, &s) != nil {
			return model.Patch{}, InvalidInput(model.FieldViewType, "viewType must be a string")
		}
		p.ViewType = mo.Some(s)
	}
	return p, nil
}

func decodeStrings(field string, v json.RawMessage) (mo.Option[[]string], error) {
	if isNull(v) {
		return mo.Some([]string{}), nil
	}
	var out []string
	if err := json.Unmarshal(v, &out); err != nil {
		return mo.None[[]string](), InvalidInput(field, "Invalid "+field+" format")
	}
	return mo.Some(out), nil
}

func decodeColors(v json.RawMessage) (mo.Option[map[string]string], error) {
	if isNull(v) {
		return mo.Some(map[string]string{}), nil
	}
	var out map[string]string
	if err := json.Unmarshal(v, &out); err != nil {
		return mo.None[map[string]string](), InvalidInput(model.FieldCalendarColors, "Invalid calendarColors format")
	}
	return mo.Some(out), nil
}

func decodeBool(field string, v json.RawMessage) (mo.Option[bool], error) {
	var b bool
	if isNull(v) || json.Unmarshal(v, &b) != nil {
		return mo.None[bool](), InvalidInput(field, field+" must be a boolean")
	}
	return mo.Some(b), nil
}

// truthy follows JavaScript's Boolean(): false, 0, NaN, "" and null are
// false, every other value (including "false", [] and {}) is true.
func truthy(v json.RawMessage) bool {
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return false
	}
	switch t := x.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	}
	return true
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
