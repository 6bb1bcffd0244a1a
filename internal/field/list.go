package field

import "github.com/tidwall/gjson"

// List is an ordered collection of fields. The zero value is an empty list.
// All mutations are copy-on-write, so a List may be shared freely.
type List struct {
	entries []Field
}

func (fields List) bsearch(name string) (index int, found bool) {
	i, j := 0, len(fields.entries)
	for i < j {
		h := (i + j) / 2
		if name >= fields.entries[h].Name() {
			i = h + 1
		} else {
			j = h
		}
	}
	if i > 0 && fields.entries[i-1].Name() >= name {
		return i - 1, true
	}
	return i, false
}

// Set returns a copy of the list with the field set. Setting a field to its
// zero value removes it from the list.
func (fields List) Set(field Field) List {
	var updated List
	i, found := fields.bsearch(field.Name())
	if found {
		if field.Value().IsZero() {
			// delete
			updated.entries = make([]Field, len(fields.entries)-1)
			copy(updated.entries, fields.entries[:i])
			copy(updated.entries[i:], fields.entries[i+1:])
		} else {
			// replace
			updated.entries = make([]Field, len(fields.entries))
			copy(updated.entries, fields.entries)
			updated.entries[i] = field
		}
	} else {
		if field.Value().IsZero() {
			updated = fields
		} else {
			// insert
			updated.entries = make([]Field, len(fields.entries)+1)
			copy(updated.entries, fields.entries[:i])
			updated.entries[i] = field
			copy(updated.entries[i+1:], fields.entries[i:])
		}
	}
	return updated
}

// Get returns a field from the list. A missing field has a zero value.
func (fields List) Get(name string) Field {
	i, found := fields.bsearch(name)
	if !found {
		return ZeroField
	}
	return fields.entries[i]
}

// Scan iterates over each field in the list, in order by name.
func (fields List) Scan(iter func(field Field) bool) {
	for _, f := range fields.entries {
		if !iter(f) {
			return
		}
	}
}

// Len returns the number of fields in the list.
func (fields List) Len() int {
	return len(fields.entries)
}

// Weight is the estimated memory size of all fields in the list.
func (fields List) Weight() int {
	var weight int
	for _, f := range fields.entries {
		weight += f.Weight()
	}
	return weight
}

// JSON returns the list as a JSON object fragment.
func (fields List) JSON() string {
	data := make([]byte, 0, 16*len(fields.entries))
	data = append(data, '{')
	for i, f := range fields.entries {
		if i > 0 {
			data = append(data, ',')
		}
		data = gjson.AppendJSONString(data, f.Name())
		data = append(data, ':')
		data = append(data, f.Value().JSON()...)
	}
	data = append(data, '}')
	return string(data)
}
