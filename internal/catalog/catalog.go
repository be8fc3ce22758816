// Package catalog loads the static ambulatory service catalog the fuzzy
// search engine (C9) matches against, grounded on
// original_source/services/local_data_service.py's LocalDataService: a
// single JSON file with a top-level "services" array, read once and cached
// in memory rather than re-read per search.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/piemonte-health/callbridge/internal/search"
)

type fileFormat struct {
	Services []serviceEntry `json:"services"`
}

type serviceEntry struct {
	UUID     string   `json:"uuid"`
	Name     string   `json:"name"`
	Code     string   `json:"code"`
	Synonyms []string `json:"synonyms"`
}

// Load reads the catalog JSON file at path and returns it in the shape
// search.NewEngine consumes. Unlike the source's _resolve_data_file_path,
// this does not probe a list of Docker-convention fallback paths: the
// caller's config.Settings.DataFilePath is the one source of truth, set
// explicitly per environment.
func Load(path string) ([]search.Service, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	services := make([]search.Service, 0, len(parsed.Services))
	for _, s := range parsed.Services {
		services = append(services, search.Service{UUID: s.UUID, Name: s.Name, Code: s.Code, Synonyms: s.Synonyms})
	}
	return services, nil
}

// UUIDIndex builds a uuid -> search.Service lookup alongside the full
// catalog slice, for handlers.SelectService's Catalog dependency (resolving
// a selection's service UUID back to its display name).
func UUIDIndex(path string) (map[string]search.Service, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	index := make(map[string]search.Service, len(parsed.Services))
	for _, s := range parsed.Services {
		index[s.UUID] = search.Service{UUID: s.UUID, Name: s.Name, Code: s.Code, Synonyms: s.Synonyms}
	}
	return index, nil
}
