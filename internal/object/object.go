package object

import (
	"github.com/landbridge/landbridge/internal/field"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
)

// An Object is a single stored shape. It binds an id to a polygonal
// geometry, an optional expiration, and a list of fields. Objects are
// immutable once created, a replace always constructs a new Object.
type Object struct {
	id      string
	geo     geojson.Object
	expires int64 // unix nano expiration, zero means never
	fields  field.List
}

func (o *Object) ID() string {
	if o == nil {
		return ""
	}
	return o.id
}

func (o *Object) Fields() field.List {
	if o == nil {
		return field.List{}
	}
	return o.fields
}

func (o *Object) Expires() int64 {
	if o == nil {
		return 0
	}
	return o.expires
}

// Expired reports whether the object has an expiration that has passed
// the provided unix nano timestamp.
func (o *Object) Expired(unixNano int64) bool {
	exp := o.Expires()
	return exp != 0 && exp <= unixNano
}

func (o *Object) Rect() geometry.Rect {
	if o == nil || o.geo == nil {
		return geometry.Rect{}
	}
	return o.geo.Rect()
}

func (o *Object) Geo() geojson.Object {
	if o == nil || o.geo == nil {
		return nil
	}
	return o.geo
}

func (o *Object) String() string {
	if o == nil || o.geo == nil {
		return ""
	}
	return o.geo.String()
}

// Weight is the estimated in-memory cost of the object in bytes.
func (o *Object) Weight() int {
	if o == nil {
		return 0
	}
	var weight int
	weight += len(o.ID())
	if o.geo != nil {
		weight += o.geo.NumPoints() * 16
	}
	weight += o.Fields().Weight()
	return weight
}

func New(id string, geo geojson.Object, expires int64, fields field.List,
) *Object {
	return &Object{
		id:      id,
		geo:     geo,
		expires: expires,
		fields:  fields,
	}
}
