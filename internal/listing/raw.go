// internal/listing/raw.go
package listing

import "strings"

// FieldState distinguishes a field nobody tried to extract from one that was
// tried and came back empty.
type FieldState int

const (
	Unextracted FieldState = iota
	Extracted
	Empty
)

func (s FieldState) String() string {
	switch s {
	case Extracted:
		return "extracted"
	case Empty:
		return "empty"
	default:
		return "unextracted"
	}
}

// Field is one raw extracted value.
type Field struct {
	Value string
	State FieldState
}

// Set records the outcome of an extraction attempt. Blank values become Empty.
func (f *Field) Set(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		f.Value = ""
		f.State = Empty
		return
	}
	f.Value = value
	f.State = Extracted
}

// Ok reports whether the field holds a usable value.
func (f Field) Ok() bool {
	return f.State == Extracted && f.Value != ""
}

// Raw field names. Site profiles refer to fields by these names.
const (
	FieldTitle        = "title"
	FieldURL          = "url"
	FieldPrice        = "price"
	FieldYear         = "year"
	FieldMileage      = "mileage"
	FieldFuel         = "fuel"
	FieldTransmission = "transmission"
	FieldMake         = "make"
	FieldModel        = "model"
	FieldDescription  = "description"
	FieldLocation     = "location"
	FieldColor        = "color"
	FieldDoors        = "doors"
	FieldSeats        = "seats"
	FieldPower        = "power"
	FieldBody         = "body"
	FieldSeller       = "seller"
	FieldImages       = "images"
	FieldFeatures     = "features"
)

// RawRecord is the loosely structured output of one site adapter for one ad.
type RawRecord struct {
	Source string

	Title        Field
	URL          Field
	Price        Field
	Year         Field
	Mileage      Field
	Fuel         Field
	Transmission Field
	Make         Field
	Model        Field
	Description  Field
	Location     Field
	Color        Field
	Doors        Field
	Seats        Field
	Power        Field
	Body         Field
	Seller       Field

	Images   []string
	Features []string
}

// Fields returns pointers to every scalar field keyed by name.
func (r *RawRecord) Fields() map[string]*Field {
	return map[string]*Field{
		FieldTitle:        &r.Title,
		FieldURL:          &r.URL,
		FieldPrice:        &r.Price,
		FieldYear:         &r.Year,
		FieldMileage:      &r.Mileage,
		FieldFuel:         &r.Fuel,
		FieldTransmission: &r.Transmission,
		FieldMake:         &r.Make,
		FieldModel:        &r.Model,
		FieldDescription:  &r.Description,
		FieldLocation:     &r.Location,
		FieldColor:        &r.Color,
		FieldDoors:        &r.Doors,
		FieldSeats:        &r.Seats,
		FieldPower:        &r.Power,
		FieldBody:         &r.Body,
		FieldSeller:       &r.Seller,
	}
}

// Field returns the named scalar field, or nil for list or unknown names.
func (r *RawRecord) Field(name string) *Field {
	return r.Fields()[name]
}

// IsBlank reports whether no scalar field or list holds any value.
func (r *RawRecord) IsBlank() bool {
	if len(r.Images) > 0 || len(r.Features) > 0 {
		return false
	}
	for _, f := range r.Fields() {
		if f.Ok() {
			return false
		}
	}
	return true
}
