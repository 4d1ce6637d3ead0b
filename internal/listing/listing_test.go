// internal/listing/listing_test.go
package listing

import (
	"reflect"
	"testing"
	"time"
)

func TestListingValidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		listing Listing
		wantErr bool
	}{
		{"minimal", Listing{Title: "Peugeot 308"}, false},
		{"missing title", Listing{Title: "   "}, true},
		{"negative price", Listing{Title: "x", Price: Int64(-1)}, true},
		{"zero price", Listing{Title: "x", Price: Int64(0)}, false},
		{"year too old", Listing{Title: "x", Year: Int(1949)}, true},
		{"next model year", Listing{Title: "x", Year: Int(2026)}, false},
		{"year too new", Listing{Title: "x", Year: Int(2027)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.listing.Validate(now)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Listing{Title: "  Peugeot 308 GT ", Price: Int64(15000), Source: "leboncoin"}
	b := Listing{Title: "peugeot 308 gt", Price: Int64(15000), Source: "lacentrale"}
	c := Listing{Title: "peugeot 308 gt", Price: Int64(15001)}
	d := Listing{Title: "peugeot 308 gt"}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected identical fingerprints across sources")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("expected price to be part of the fingerprint")
	}
	if c.Fingerprint() == d.Fingerprint() {
		t.Error("expected missing price to differ from any price")
	}
	if got := d.Fingerprint().String(); got != "peugeot 308 gt|-" {
		t.Errorf("unexpected fingerprint string %q", got)
	}
	if NewFingerprint("x", Int64(0)) == NewFingerprint("x", nil) {
		t.Error("zero price must not collide with missing price")
	}
}

func TestHasFeature(t *testing.T) {
	l := Listing{Features: []string{"Climatisation automatique", "GPS"}}

	if !l.HasFeature("climatisation") {
		t.Error("expected case-insensitive feature match")
	}
	if l.HasFeature("toit ouvrant") {
		t.Error("unexpected feature match")
	}
}

func TestRawRecordFieldStates(t *testing.T) {
	var r RawRecord

	if r.Title.State != Unextracted {
		t.Errorf("expected zero field to be unextracted, got %s", r.Title.State)
	}

	r.Title.Set("  Renault Clio ")
	r.Price.Set("   ")

	if !r.Title.Ok() || r.Title.Value != "Renault Clio" {
		t.Errorf("unexpected title field %+v", r.Title)
	}
	if r.Price.State != Empty {
		t.Errorf("expected blank value to be Empty, got %s", r.Price.State)
	}
	if r.Field(FieldTitle) != &r.Title {
		t.Error("Field(title) should address the Title field")
	}
	if r.Field(FieldImages) != nil {
		t.Error("list fields are not addressable as scalar fields")
	}
	if len(r.Fields()) != 17 {
		t.Errorf("expected 17 scalar fields, got %d", len(r.Fields()))
	}
}

func TestRawRecordIsBlank(t *testing.T) {
	var r RawRecord
	r.Title.Set("")
	if !r.IsBlank() {
		t.Error("expected record with only empty fields to be blank")
	}
	r.Features = []string{"GPS"}
	if r.IsBlank() {
		t.Error("record with features is not blank")
	}
}

func TestFiltersApplied(t *testing.T) {
	yes, no := true, false
	f := Filters{PriceMax: Int64(20000), Make: "Peugeot", GPS: &yes, Sunroof: &no}

	want := []string{"price_max", "make", "gps", "sunroof"}
	if got := f.Applied(); !reflect.DeepEqual(got, want) {
		t.Errorf("Applied() = %v, want %v", got, want)
	}
	if f.IsZero() {
		t.Error("expected non-zero filters")
	}
	if !(Filters{}).IsZero() {
		t.Error("expected empty filters to be zero")
	}
	eq := f.Equipment()
	if len(eq) != 2 || !eq["gps"] || eq["sunroof"] {
		t.Errorf("unexpected equipment map %v", eq)
	}
}

func TestFetchTaskTransitions(t *testing.T) {
	tests := []struct {
		name  string
		steps []TaskState
		ok    bool
	}{
		{"complete", []TaskState{TaskRunning, TaskCompleted}, true},
		{"fail", []TaskState{TaskRunning, TaskFailed}, true},
		{"timeout while running", []TaskState{TaskRunning, TaskTimedOut}, true},
		{"timeout before start", []TaskState{TaskTimedOut}, true},
		{"skip running", []TaskState{TaskCompleted}, false},
		{"restart finished", []TaskState{TaskRunning, TaskCompleted, TaskRunning}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &FetchTask{Source: "s"}
			var err error
			for _, s := range tt.steps {
				if err = task.Transition(s); err != nil {
					break
				}
			}
			if (err == nil) != tt.ok {
				t.Errorf("transitions %v: err = %v, want ok=%v", tt.steps, err, tt.ok)
			}
		})
	}
}
