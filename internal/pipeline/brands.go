// internal/pipeline/brands.go
package pipeline

import (
	"sort"
	"strings"
	"unicode"
)

// brandAliases maps folded spellings found in ad titles to the canonical make.
var brandAliases = map[string]string{
	"abarth":        "Abarth",
	"alfa romeo":    "Alfa Romeo",
	"alfa-romeo":    "Alfa Romeo",
	"alpine":        "Alpine",
	"aston martin":  "Aston Martin",
	"audi":          "Audi",
	"bmw":           "BMW",
	"citroen":       "Citroën",
	"cupra":         "Cupra",
	"dacia":         "Dacia",
	"ds":            "DS",
	"fiat":          "Fiat",
	"ford":          "Ford",
	"honda":         "Honda",
	"hyundai":       "Hyundai",
	"jaguar":        "Jaguar",
	"jeep":          "Jeep",
	"kia":           "Kia",
	"land rover":    "Land Rover",
	"land-rover":    "Land Rover",
	"range rover":   "Land Rover",
	"lexus":         "Lexus",
	"mazda":         "Mazda",
	"mercedes":      "Mercedes-Benz",
	"mercedes-benz": "Mercedes-Benz",
	"mercedes benz": "Mercedes-Benz",
	"mini":          "Mini",
	"mitsubishi":    "Mitsubishi",
	"nissan":        "Nissan",
	"opel":          "Opel",
	"peugeot":       "Peugeot",
	"porsche":       "Porsche",
	"renault":       "Renault",
	"seat":          "Seat",
	"skoda":         "Skoda",
	"smart":         "Smart",
	"suzuki":        "Suzuki",
	"tesla":         "Tesla",
	"toyota":        "Toyota",
	"volkswagen":    "Volkswagen",
	"vw":            "Volkswagen",
	"volvo":         "Volvo",
}

// brandKeys holds alias keys longest first so "mercedes-benz" beats "mercedes".
var brandKeys = func() []string {
	keys := make([]string, 0, len(brandAliases))
	for k := range brandAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// InferMakeModel guesses make and model from a title. The model is the first
// token after the brand. Either result may be empty.
func InferMakeModel(title string) (brand, model string) {
	tokens := strings.Fields(FoldKey(title))
	if len(tokens) == 0 {
		return "", ""
	}

	for i := range tokens {
		for _, key := range brandKeys {
			width := len(strings.Fields(key))
			if i+width > len(tokens) {
				continue
			}
			if strings.Join(tokens[i:i+width], " ") != key {
				continue
			}
			brand = brandAliases[key]
			if i+width < len(tokens) {
				model = modelToken(tokens[i+width])
			}
			return brand, model
		}
	}
	return "", ""
}

// CanonicalMake returns the dictionary spelling of a make, or the trimmed input.
func CanonicalMake(raw string) string {
	if m, ok := brandAliases[FoldKey(raw)]; ok {
		return m
	}
	return strings.TrimSpace(raw)
}

func modelToken(tok string) string {
	tok = strings.Trim(tok, ",.;:()[]-/")
	if tok == "" {
		return ""
	}
	// Numeric models like 308 are unaffected.
	r := []rune(tok)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
