// Package capitals provides the static country and US-state capital
// lookup table.
package capitals

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"voice-agent-service/internal/models"
)

//go:embed data/countries.json
var countriesJSON []byte

//go:embed data/us-states.json
var statesJSON []byte

type entry struct {
	Name    string `json:"name"`
	Capital string `json:"capital"`
}

// Table holds the capitals dataset, indexed by lowercased name.
type Table struct {
	countries map[string]entry
	states    map[string]entry
	// Original ordering, for listings.
	countryNames []string
	stateNames   []string
}

// Load parses the embedded datasets.
func Load() (*Table, error) {
	var cd struct {
		Countries []entry `json:"countries"`
	}
	if err := json.Unmarshal(countriesJSON, &cd); err != nil {
		return nil, fmt.Errorf("parse countries data: %w", err)
	}

	var sd struct {
		States []entry `json:"states"`
	}
	if err := json.Unmarshal(statesJSON, &sd); err != nil {
		return nil, fmt.Errorf("parse states data: %w", err)
	}

	t := &Table{
		countries: make(map[string]entry, len(cd.Countries)),
		states:    make(map[string]entry, len(sd.States)),
	}
	for _, e := range cd.Countries {
		t.countries[strings.ToLower(e.Name)] = e
		t.countryNames = append(t.countryNames, e.Name)
	}
	for _, e := range sd.States {
		t.states[strings.ToLower(e.Name)] = e
		t.stateNames = append(t.stateNames, e.Name)
	}
	return t, nil
}

// Lookup resolves a capital for the given query type. Country queries
// consult the countries table first and fall through to states, so a
// slightly miscategorized entity still resolves; state queries do the
// reverse.
func (t *Table) Lookup(queryType models.QueryType, entity string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(entity))
	if key == "" {
		return "", false
	}

	switch queryType {
	case models.QueryCountry:
		if e, ok := t.countries[key]; ok {
			return e.Capital, true
		}
		if e, ok := t.states[key]; ok {
			return e.Capital, true
		}
	case models.QueryState:
		if e, ok := t.states[key]; ok {
			return e.Capital, true
		}
		if e, ok := t.countries[key]; ok {
			return e.Capital, true
		}
	}
	return "", false
}

// Countries returns all country names in dataset order.
func (t *Table) Countries() []string {
	return append([]string(nil), t.countryNames...)
}

// States returns all US state names in dataset order.
func (t *Table) States() []string {
	return append([]string(nil), t.stateNames...)
}

// Counts returns the dataset sizes.
func (t *Table) Counts() (countries, states int) {
	return len(t.countries), len(t.states)
}
