package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "all_services.json")
	content := `{"services": [
		{"uuid": "u1", "name": "Radiografia caviglia", "code": "RX-CAV", "synonyms": ["rx caviglia"]},
		{"uuid": "u2", "name": "Analisi del sangue", "code": "LAB-001", "synonyms": []}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadReturnsAllServices(t *testing.T) {
	services, err := Load(writeFixture(t))
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "u1", services[0].UUID)
	assert.Equal(t, "Radiografia caviglia", services[0].Name)
	assert.Equal(t, []string{"rx caviglia"}, services[0].Synonyms)
}

func TestUUIDIndexLooksUpByUUID(t *testing.T) {
	index, err := UUIDIndex(writeFixture(t))
	require.NoError(t, err)
	svc, ok := index["u2"]
	require.True(t, ok)
	assert.Equal(t, "u2", svc.UUID)
	assert.Equal(t, "Analisi del sangue", svc.Name)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/does/not/exist.json")
	assert.Error(t, err)
}
