// internal/listing/vocabulary.go
package listing

// Fuel types.
const (
	FuelPetrol   = "petrol"
	FuelDiesel   = "diesel"
	FuelHybrid   = "hybrid"
	FuelElectric = "electric"
	FuelLPG      = "lpg"
)

// Transmission types.
const (
	TransmissionManual    = "manual"
	TransmissionAutomatic = "automatic"
)

// VocabularyEntry maps synonyms to a canonical value. Synonyms are lowercase
// and accent-free.
type VocabularyEntry struct {
	Value    string
	Synonyms []string
}

// FuelVocabulary is checked in order. Hybrid comes first so "hybride essence"
// maps to hybrid rather than petrol.
var FuelVocabulary = []VocabularyEntry{
	{FuelHybrid, []string{"hybrid", "hybride", "phev"}},
	{FuelElectric, []string{"electric", "electrique", "elektro"}},
	{FuelLPG, []string{"lpg", "gpl", "autogas"}},
	{FuelDiesel, []string{"diesel", "gazole", "gasoil", "tdi", "hdi", "dci"}},
	{FuelPetrol, []string{"petrol", "essence", "gasoline", "benzin", "benzine", "gas"}},
}

// TransmissionVocabulary is checked in order.
var TransmissionVocabulary = []VocabularyEntry{
	{TransmissionAutomatic, []string{"automatic", "automatique", "automatik", "auto", "boite auto", "dsg", "cvt"}},
	{TransmissionManual, []string{"manual", "manuelle", "manuell", "mecanique", "schaltgetriebe"}},
}

// IsKnownFuel reports whether v is a canonical fuel value.
func IsKnownFuel(v string) bool {
	return inVocabulary(FuelVocabulary, v)
}

// IsKnownTransmission reports whether v is a canonical transmission value.
func IsKnownTransmission(v string) bool {
	return inVocabulary(TransmissionVocabulary, v)
}

func inVocabulary(vocab []VocabularyEntry, v string) bool {
	for _, e := range vocab {
		if e.Value == v {
			return true
		}
	}
	return false
}
