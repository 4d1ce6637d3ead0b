// internal/listing/search.go
package listing

import "time"

// Filters is the typed optional filter set shared by the catalog query, the
// adapters and the post-processor. Nil or empty means "not constrained".
type Filters struct {
	PriceMin   *int64 `json:"price_min,omitempty" yaml:"price_min,omitempty"`
	PriceMax   *int64 `json:"price_max,omitempty" yaml:"price_max,omitempty"`
	YearMin    *int   `json:"year_min,omitempty" yaml:"year_min,omitempty"`
	YearMax    *int   `json:"year_max,omitempty" yaml:"year_max,omitempty"`
	MileageMin *int64 `json:"mileage_min,omitempty" yaml:"mileage_min,omitempty"`
	MileageMax *int64 `json:"mileage_max,omitempty" yaml:"mileage_max,omitempty"`
	PowerMin   *int   `json:"power_min,omitempty" yaml:"power_min,omitempty"`
	PowerMax   *int   `json:"power_max,omitempty" yaml:"power_max,omitempty"`
	DoorsMin   *int   `json:"doors_min,omitempty" yaml:"doors_min,omitempty"`
	DoorsMax   *int   `json:"doors_max,omitempty" yaml:"doors_max,omitempty"`
	SeatsMin   *int   `json:"seats_min,omitempty" yaml:"seats_min,omitempty"`
	SeatsMax   *int   `json:"seats_max,omitempty" yaml:"seats_max,omitempty"`

	Make         string `json:"make,omitempty" yaml:"make,omitempty"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	FuelType     string `json:"fuel_type,omitempty" yaml:"fuel_type,omitempty"`
	Transmission string `json:"transmission,omitempty" yaml:"transmission,omitempty"`
	Color        string `json:"color,omitempty" yaml:"color,omitempty"`
	BodyType     string `json:"body_type,omitempty" yaml:"body_type,omitempty"`
	Location     string `json:"location,omitempty" yaml:"location,omitempty"`
	SellerType   string `json:"seller_type,omitempty" yaml:"seller_type,omitempty"`

	AirConditioning *bool `json:"air_conditioning,omitempty" yaml:"air_conditioning,omitempty"`
	GPS             *bool `json:"gps,omitempty" yaml:"gps,omitempty"`
	LeatherSeats    *bool `json:"leather_seats,omitempty" yaml:"leather_seats,omitempty"`
	Sunroof         *bool `json:"sunroof,omitempty" yaml:"sunroof,omitempty"`
	ParkingSensors  *bool `json:"parking_sensors,omitempty" yaml:"parking_sensors,omitempty"`
	RearCamera      *bool `json:"rear_camera,omitempty" yaml:"rear_camera,omitempty"`
	CruiseControl   *bool `json:"cruise_control,omitempty" yaml:"cruise_control,omitempty"`
	Bluetooth       *bool `json:"bluetooth,omitempty" yaml:"bluetooth,omitempty"`
	HeatedSeats     *bool `json:"heated_seats,omitempty" yaml:"heated_seats,omitempty"`
	AlloyWheels     *bool `json:"alloy_wheels,omitempty" yaml:"alloy_wheels,omitempty"`
	FourWheelDrive  *bool `json:"four_wheel_drive,omitempty" yaml:"four_wheel_drive,omitempty"`
	TowHook         *bool `json:"tow_hook,omitempty" yaml:"tow_hook,omitempty"`
	FirstOwner      *bool `json:"first_owner,omitempty" yaml:"first_owner,omitempty"`
	ServiceHistory  *bool `json:"service_history,omitempty" yaml:"service_history,omitempty"`
	NonSmoker       *bool `json:"non_smoker,omitempty" yaml:"non_smoker,omitempty"`
}

// Equipment returns the boolean presence filters keyed by name. Unset flags
// are omitted.
func (f Filters) Equipment() map[string]bool {
	flags := map[string]*bool{
		"air_conditioning": f.AirConditioning,
		"gps":              f.GPS,
		"leather_seats":    f.LeatherSeats,
		"sunroof":          f.Sunroof,
		"parking_sensors":  f.ParkingSensors,
		"rear_camera":      f.RearCamera,
		"cruise_control":   f.CruiseControl,
		"bluetooth":        f.Bluetooth,
		"heated_seats":     f.HeatedSeats,
		"alloy_wheels":     f.AlloyWheels,
		"four_wheel_drive": f.FourWheelDrive,
		"tow_hook":         f.TowHook,
		"first_owner":      f.FirstOwner,
		"service_history":  f.ServiceHistory,
		"non_smoker":       f.NonSmoker,
	}
	out := make(map[string]bool)
	for name, v := range flags {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

// Applied returns the names of the filters that are set.
func (f Filters) Applied() []string {
	var names []string
	add := func(name string, set bool) {
		if set {
			names = append(names, name)
		}
	}
	add("price_min", f.PriceMin != nil)
	add("price_max", f.PriceMax != nil)
	add("year_min", f.YearMin != nil)
	add("year_max", f.YearMax != nil)
	add("mileage_min", f.MileageMin != nil)
	add("mileage_max", f.MileageMax != nil)
	add("power_min", f.PowerMin != nil)
	add("power_max", f.PowerMax != nil)
	add("doors_min", f.DoorsMin != nil)
	add("doors_max", f.DoorsMax != nil)
	add("seats_min", f.SeatsMin != nil)
	add("seats_max", f.SeatsMax != nil)
	add("make", f.Make != "")
	add("model", f.Model != "")
	add("fuel_type", f.FuelType != "")
	add("transmission", f.Transmission != "")
	add("color", f.Color != "")
	add("body_type", f.BodyType != "")
	add("location", f.Location != "")
	add("seller_type", f.SellerType != "")
	for _, name := range sortedKeys(f.Equipment()) {
		names = append(names, name)
	}
	return names
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return len(f.Applied()) == 0
}

// SearchRequest is one hybrid search.
type SearchRequest struct {
	Query          string   `json:"q"`
	Filters        Filters  `json:"filters"`
	Page           int      `json:"page"`
	Size           int      `json:"size"`
	Mode           string   `json:"scraping_mode"`
	EnableScraping bool     `json:"enable_scraping"`
	Sources        []string `json:"sources,omitempty"`
	MaxPages       int      `json:"max_pages,omitempty"`
	RequestID      string   `json:"-"`
}

// SourceStats is the outcome of one source in one aggregation.
type SourceStats struct {
	Count   int    `json:"count"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SearchResult is the merged, filtered, paginated response.
type SearchResult struct {
	Total    int                    `json:"total"`
	Results  []Listing              `json:"results"`
	Page     int                    `json:"page"`
	Size     int                    `json:"size"`
	FromDB   int                    `json:"from_db"`
	FromLive int                    `json:"from_scraping"`
	Sources  map[string]SourceStats `json:"sources"`
	Duration time.Duration          `json:"-"`
	// Applied names the filters in effect after query parsing.
	Applied []string `json:"-"`
}
