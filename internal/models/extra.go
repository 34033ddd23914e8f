package models

import (
	"bytes"
	"encoding/json"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Extra holds the members of a stored JSON object that the entity type does
// not declare. They are written back unchanged so data written by other
// versions survives a load and save.
type Extra map[string]json.RawMessage

var fieldCache sync.Map // reflect.Type -> []string

// jsonFields returns the JSON member names of struct type t.
func jsonFields(t reflect.Type) []string {
	if v, ok := fieldCache.Load(t); ok {
		return v.([]string)
	}
	names := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	fieldCache.Store(t, names)
	return names
}

// declared reports whether key matches a field of names. encoding/json
// matches object keys case-insensitively, so this does too.
func declared(names []string, key string) bool {
	return slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, key) })
}

// decodeObject decodes data into fields, a pointer to a struct, and returns
// the members fields does not declare.
func decodeObject(data []byte, fields any) (Extra, error) {
	if err := json.Unmarshal(data, fields); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	names := jsonFields(reflect.TypeOf(fields).Elem())
	maps.DeleteFunc(all, func(k string, _ json.RawMessage) bool { return declared(names, k) })
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// encodeObject encodes fields, a struct, then appends the extra members it
// does not declare in key order.
func encodeObject(fields any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	names := jsonFields(reflect.TypeOf(fields))
	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	empty := len(data) == 2
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		if declared(names, k) {
			continue
		}
		if !empty {
			buf.WriteByte(',')
		}
		empty = false
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if v := extra[k]; len(v) != 0 {
			buf.Write(v)
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Stored field sets, without the JSON methods.
type (
	userFields    User
	projectFields Project
	jobFields     Job
	eventFields   Event
	memberFields  Member
	groupFields   Group
	listingFields Listing
)

// UnmarshalJSON keeps undeclared members in Extra.
func (u *User) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, (*userFields)(u))
	u.Extra = extra
	return err
}

// MarshalJSON writes the declared fields followed by Extra.
func (u User) MarshalJSON() ([]byte, error) {
	return encodeObject(userFields(u), u.Extra)
}

// UnmarshalJSON keeps undeclared members in Extra.
func (p *Project) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, (*projectFields)(p))
	p.Extra = extra
	return err
}

// MarshalJSON writes the declared fields followed by Extra.
func (p Project) MarshalJSON() ([]byte, error) {
	return encodeObject(projectFields(p), p.Extra)
}

// UnmarshalJSON keeps undeclared members in Extra.
func (j *Job) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, (*jobFields)(j))
	j.Extra = extra
	return err
}

// MarshalJSON writes the declared fields followed by Extra.
func (j Job) MarshalJSON() ([]byte, error) {
	return encodeObject(jobFields(j), j.Extra)
}

// UnmarshalJSON keeps undeclared members in Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, (*eventFields)(e))
	e.Extra = extra
	return err
}

// MarshalJSON writes the declared fields followed by Extra.
func (e Event) MarshalJSON() ([]byte, error) {
	return encodeObject(eventFields(e), e.Extra)
}

// UnmarshalJSON keeps undeclared members in Extra.
func (m *Member) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, (*memberFields)(m))
	m.Extra = extra
	return err
}

// MarshalJSON writes the declared fields followed by Extra.
func (m Member) MarshalJSON() ([]byte, error) {
	return encodeObject(memberFields(m), m.Extra)
}

// UnmarshalJSON keeps undeclared members in Extra.
func (g *Group) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, (*groupFields)(g))
	g.Extra = extra
	return err
}

// MarshalJSON writes the declared fields followed by Extra.
func (g Group) MarshalJSON() ([]byte, error) {
	return encodeObject(groupFields(g), g.Extra)
}

// UnmarshalJSON keeps undeclared members in Extra.
func (l *Listing) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, (*listingFields)(l))
	l.Extra = extra
	return err
}

// MarshalJSON writes the declared fields followed by Extra.
func (l Listing) MarshalJSON() ([]byte, error) {
	return encodeObject(listingFields(l), l.Extra)
}
