package knowledgebase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAnswersFAQBySubstring(t *testing.T) {
	path := writeFixture(t, `{
		"faq": [{"query": "prepare blood test", "answer": "Fast for 8 hours before the draw."}]
	}`)
	s, err := Load(path)
	require.NoError(t, err)

	answer, found := s.Answer("how do I prepare blood test tomorrow")
	assert.True(t, found)
	assert.Equal(t, "Fast for 8 hours before the draw.", answer)

	_, found = s.Answer("unrelated question")
	assert.False(t, found)
}

func TestCompetitivePricingMatchesAgeRange(t *testing.T) {
	path := writeFixture(t, `{
		"competitive_pricing": [
			{"sport": "soccer", "gender": "M", "region": "Piemonte", "min_age": 12, "max_age": 17, "price": "45.00"}
		]
	}`)
	s, err := Load(path)
	require.NoError(t, err)

	price, found := s.CompetitivePricing(15, "M", "soccer", "Piemonte")
	assert.True(t, found)
	assert.Equal(t, "45.00", price)

	_, found = s.CompetitivePricing(25, "M", "soccer", "Piemonte")
	assert.False(t, found)
}

func TestNilStoreReportsNotFound(t *testing.T) {
	var s *Store
	_, found := s.Answer("anything")
	assert.False(t, found)
	_, found = s.ExamBySport("tennis")
	assert.False(t, found)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
