package city

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Dataset is the static city data: gazetteer records, the alias table and
// curated named locations.
type Dataset struct {
	Records   []Record
	Aliases   AliasTable
	Locations Directory
}

type yamlCity struct {
	Name       string   `yaml:"name"`
	State      string   `yaml:"state"`
	Country    string   `yaml:"country"`
	Lat        float64  `yaml:"lat"`
	Lng        float64  `yaml:"lng"`
	Aliases    []string `yaml:"aliases"`
	Population *int     `yaml:"population"`
}

type yamlLocation struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lng  float64 `yaml:"lng"`
}

type yamlGazetteer struct {
	Cities  []yamlCity        `yaml:"cities"`
	Aliases map[string]string `yaml:"aliases"`
}

type yamlLocations struct {
	Locations map[string][]yamlLocation `yaml:"locations"`
}

// LoadEmbedded parses the data set compiled into the binary.
func LoadEmbedded() (*Dataset, error) {
	gazetteer, err := dataFS.ReadFile("data/gazetteer.yaml")
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	locations, err := dataFS.ReadFile("data/locations.yaml")
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}
	return ParseDataset(gazetteer, locations)
}

// ParseDataset parses gazetteer and curated location YAML documents.
func ParseDataset(gazetteerYAML, locationsYAML []byte) (*Dataset, error) {
	var g yamlGazetteer
	if err := yaml.Unmarshal(gazetteerYAML, &g); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}

	var l yamlLocations
	if err := yaml.Unmarshal(locationsYAML, &l); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}

	ds := &Dataset{
		Records:   make([]Record, 0, len(g.Cities)),
		Aliases:   NewAliasTable(g.Aliases),
		Locations: make(Directory, len(l.Locations)),
	}

	for i, c := range g.Cities {
		r := Record{
			Name:       strings.TrimSpace(c.Name),
			State:      c.State,
			Country:    c.Country,
			Coordinate: geo.Coordinate{Lat: c.Lat, Lng: c.Lng},
			Aliases:    c.Aliases,
			Population: c.Population,
		}
		if r.Name == "" {
			return nil, fmt.Errorf("city %d: missing name", i)
		}
		if err := r.Coordinate.Validate(); err != nil {
			return nil, fmt.Errorf("city %q: %w", r.Name, err)
		}
		ds.Records = append(ds.Records, r)
	}

	for key, locs := range l.Locations {
		out := make([]airquality.Location, 0, len(locs))
		for _, loc := range locs {
			c := geo.Coordinate{Lat: loc.Lat, Lng: loc.Lng}
			if err := c.Validate(); err != nil {
				return nil, fmt.Errorf("location %q in %q: %w", loc.ID, key, err)
			}
			out = append(out, airquality.Location{ID: loc.ID, Name: loc.Name, Coordinate: c})
		}
		ds.Locations[normalizeKey(key)] = out
	}

	return ds, nil
}

// AliasTable maps informal or historic names to canonical city keys.
type AliasTable map[string]string

// NewAliasTable builds a table with normalized keys and values.
func NewAliasTable(aliases map[string]string) AliasTable {
	t := make(AliasTable, len(aliases))
	for from, to := range aliases {
		t[normalizeKey(from)] = normalizeKey(to)
	}
	return t
}

// Canonical returns the canonical key for name. Unknown names are returned
// normalized.
func (t AliasTable) Canonical(name string) string {
	key := normalizeKey(name)
	if canonical, ok := t[key]; ok {
		return canonical
	}
	return key
}

// Directory maps canonical city keys to curated named locations.
type Directory map[string][]airquality.Location

// Curated returns the curated locations for key.
func (d Directory) Curated(key string) ([]airquality.Location, bool) {
	locs, ok := d[normalizeKey(key)]
	return locs, ok && len(locs) > 0
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Load returns the embedded records. It lets a Dataset serve as a RecordSource.
func (d *Dataset) Load(_ context.Context) ([]Record, error) {
	if len(d.Records) == 0 {
		return nil, ErrNoRecords
	}
	out := make([]Record, len(d.Records))
	copy(out, d.Records)
	return out, nil
}
