package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func catalog() []Service {
	return []Service{
		{Name: "Radiografia caviglia", Code: "RX-CAV", Synonyms: []string{"rx caviglia"}},
		{Name: "Analisi del sangue", Code: "LAB-001", Synonyms: []string{"esame del sangue"}},
		{Name: "Peeling viso", Code: "EST-010", Synonyms: []string{}},
		{Name: "Cardiologia generale", Code: "CAR-001", Synonyms: []string{"visita cardiologica"}},
	}
}

func TestSearchTooShortQuery(t *testing.T) {
	e := NewEngine(catalog())
	r := e.Search("r", 5)
	assert.False(t, r.Found)
	assert.Contains(t, r.Message, "too short")
}

func TestSearchEmptyCatalog(t *testing.T) {
	e := NewEngine(nil)
	r := e.Search("caviglia", 5)
	assert.False(t, r.Found)
	assert.Contains(t, r.Message, "No services available")
}

func TestSearchExactMedicalKeywordMatches(t *testing.T) {
	e := NewEngine(catalog())
	r := e.Search("radiografia caviglia", 5)
	assert.True(t, r.Found)
	assert.Equal(t, "Radiografia caviglia", r.Services[0].Name)
}

func TestSearchNoResultsMessageListsSuggestions(t *testing.T) {
	e := NewEngine(catalog())
	r := e.Search("xyzxyz completely unrelated", 5)
	assert.False(t, r.Found)
	assert.Contains(t, r.Message, "cardiologia")
}

func TestSearchLimitTruncatesResults(t *testing.T) {
	e := NewEngine(catalog())
	r := e.Search("analisi sangue esame cardiologia caviglia radiografia", 1)
	assert.LessOrEqual(t, len(r.Services), 1)
}

func TestPartialRatioIdentical(t *testing.T) {
	assert.Equal(t, 100.0, partialRatio("caviglia", "caviglia"))
}

func TestTokenSortRatioIgnoresWordOrder(t *testing.T) {
	assert.Equal(t, 100.0, tokenSortRatio("sangue analisi", "analisi sangue"))
}
