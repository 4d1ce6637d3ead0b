// internal/api/dto.go
package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

// SearchRequest is the body of POST /search. enable_scraping defaults to
// true when absent.
type SearchRequest struct {
	Q              string          `json:"q"`
	Filters        listing.Filters `json:"filters"`
	Page           int             `json:"page"`
	Size           int             `json:"size"`
	EnableScraping *bool           `json:"enable_scraping"`
	ScrapingMode   string          `json:"scraping_mode"`
}

func (r SearchRequest) toSearch() listing.SearchRequest {
	enabled := true
	if r.EnableScraping != nil {
		enabled = *r.EnableScraping
	}
	return listing.SearchRequest{
		Query:          strings.TrimSpace(r.Q),
		Filters:        r.Filters,
		Page:           r.Page,
		Size:           r.Size,
		Mode:           r.ScrapingMode,
		EnableScraping: enabled,
	}
}

// AdvancedSearchRequest is the body of POST /search-advanced. Filters are
// inlined at the top level.
type AdvancedSearchRequest struct {
	Query string `json:"query"`
	Q     string `json:"q"`
	listing.Filters
	Sources  []string `json:"sources"`
	MaxPages int      `json:"max_pages"`
}

func (r AdvancedSearchRequest) text() string {
	if q := strings.TrimSpace(r.Query); q != "" {
		return q
	}
	return strings.TrimSpace(r.Q)
}

// AdvancedSearchResponse is the reply of POST /search-advanced.
type AdvancedSearchResponse struct {
	Success        bool                           `json:"success"`
	TotalResults   int                            `json:"total_results"`
	Results        []listing.Listing              `json:"results"`
	SourcesStats   map[string]listing.SourceStats `json:"sources_stats"`
	FiltersApplied []string                       `json:"filters_applied"`
	Duration       float64                        `json:"duration"`
	Timestamp      time.Time                      `json:"timestamp"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// SourceInfo describes one configured source.
type SourceInfo struct {
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	Renderer string `json:"renderer"`
	MaxPages int    `json:"max_pages"`
}

// searchFromQuery reads GET /search parameters. Filter parameters use the
// same names as the JSON filter object.
func searchFromQuery(values url.Values) (listing.SearchRequest, error) {
	var req SearchRequest
	var err error

	req.Q = values.Get("q")
	req.ScrapingMode = values.Get("scraping_mode")
	if req.Page, err = intParam(values, "page"); err != nil {
		return listing.SearchRequest{}, err
	}
	if req.Size, err = intParam(values, "size"); err != nil {
		return listing.SearchRequest{}, err
	}
	if req.EnableScraping, err = boolParam(values, "enable_scraping"); err != nil {
		return listing.SearchRequest{}, err
	}

	f := &req.Filters
	int64s := map[string]**int64{
		"price_min":   &f.PriceMin,
		"price_max":   &f.PriceMax,
		"mileage_min": &f.MileageMin,
		"mileage_max": &f.MileageMax,
	}
	for name, dst := range int64s {
		if *dst, err = int64Param(values, name); err != nil {
			return listing.SearchRequest{}, err
		}
	}
	ints := map[string]**int{
		"year_min":  &f.YearMin,
		"year_max":  &f.YearMax,
		"power_min": &f.PowerMin,
		"power_max": &f.PowerMax,
		"doors_min": &f.DoorsMin,
		"doors_max": &f.DoorsMax,
		"seats_min": &f.SeatsMin,
		"seats_max": &f.SeatsMax,
	}
	for name, dst := range ints {
		v, err := int64Param(values, name)
		if err != nil {
			return listing.SearchRequest{}, err
		}
		if v != nil {
			*dst = listing.Int(int(*v))
		}
	}
	f.Make = values.Get("make")
	f.Model = values.Get("model")
	f.FuelType = values.Get("fuel_type")
	f.Transmission = values.Get("transmission")
	f.Color = values.Get("color")
	f.BodyType = values.Get("body_type")
	f.Location = values.Get("location")
	f.SellerType = values.Get("seller_type")

	flags := map[string]**bool{
		"air_conditioning": &f.AirConditioning,
		"gps":              &f.GPS,
		"leather_seats":    &f.LeatherSeats,
		"sunroof":          &f.Sunroof,
		"parking_sensors":  &f.ParkingSensors,
		"rear_camera":      &f.RearCamera,
		"cruise_control":   &f.CruiseControl,
		"bluetooth":        &f.Bluetooth,
		"heated_seats":     &f.HeatedSeats,
		"alloy_wheels":     &f.AlloyWheels,
		"four_wheel_drive": &f.FourWheelDrive,
		"tow_hook":         &f.TowHook,
		"first_owner":      &f.FirstOwner,
		"service_history":  &f.ServiceHistory,
		"non_smoker":       &f.NonSmoker,
	}
	for name, dst := range flags {
		if *dst, err = boolParam(values, name); err != nil {
			return listing.SearchRequest{}, err
		}
	}

	return req.toSearch(), nil
}

// badParam marks a malformed query parameter.
type badParam struct {
	name, value string
}

func (e *badParam) Error() string {
	return fmt.Sprintf("invalid value %q for parameter %s", e.value, e.name)
}

func intParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &badParam{name, raw}
	}
	return n, nil
}

func int64Param(values url.Values, name string) (*int64, error) {
	raw := values.Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &badParam{name, raw}
	}
	return &n, nil
}

func boolParam(values url.Values, name string) (*bool, error) {
	raw := values.Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &badParam{name, raw}
	}
	return &b, nil
}
