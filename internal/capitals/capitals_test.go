package capitals

import (
	"testing"

	"voice-agent-service/internal/models"
)

func TestLoad(t *testing.T) {
	tbl, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	countries, states := tbl.Counts()
	if countries == 0 || states != 50 {
		t.Errorf("unexpected dataset sizes: %d countries, %d states", countries, states)
	}
}

func TestLookup(t *testing.T) {
	tbl, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		queryType models.QueryType
		entity    string
		capital   string
		found     bool
	}{
		{models.QueryCountry, "France", "Paris", true},
		{models.QueryCountry, "france", "Paris", true},
		{models.QueryCountry, " Japan ", "Tokyo", true},
		{models.QueryState, "California", "Sacramento", true},
		{models.QueryState, "texas", "Austin", true},
		// Miscategorized entities still resolve via the other table.
		{models.QueryCountry, "Georgia", "Atlanta", true},
		{models.QueryState, "Germany", "Berlin", true},
		{models.QueryCountry, "Atlantis", "", false},
		{models.QueryCountry, "", "", false},
		{models.QueryOther, "France", "", false},
	}

	for _, tt := range tests {
		capital, found := tbl.Lookup(tt.queryType, tt.entity)
		if found != tt.found || capital != tt.capital {
			t.Errorf("Lookup(%s, %q) = (%q, %v), want (%q, %v)",
				tt.queryType, tt.entity, capital, found, tt.capital, tt.found)
		}
	}
}

func TestListings(t *testing.T) {
	tbl, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(tbl.Countries()) == 0 {
		t.Error("expected country names")
	}
	if got := len(tbl.States()); got != 50 {
		t.Errorf("expected 50 state names, got %d", got)
	}
}
