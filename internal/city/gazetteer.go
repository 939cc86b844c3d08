package city

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Gazetteer holds city records bucketed by the upper-cased first letter of
// their name.
type Gazetteer struct {
	records []Record
	buckets map[rune][]int
}

// NewGazetteer indexes records. The slice is copied.
func NewGazetteer(records []Record) *Gazetteer {
	g := &Gazetteer{
		records: make([]Record, len(records)),
		buckets: make(map[rune][]int),
	}
	copy(g.records, records)

	for i, r := range g.records {
		key := bucketKey(r.Name)
		g.buckets[key] = append(g.buckets[key], i)
	}
	return g
}

// Len returns the number of records.
func (g *Gazetteer) Len() int {
	return len(g.records)
}

// Records returns a copy of every record.
func (g *Gazetteer) Records() []Record {
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}

// Bucket returns the records whose name starts with letter.
func (g *Gazetteer) Bucket(letter rune) []Record {
	idx := g.buckets[unicode.ToUpper(letter)]
	out := make([]Record, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.records[i])
	}
	return out
}

// Nearest returns the record closest to c within maxMeters.
func (g *Gazetteer) Nearest(c geo.Coordinate, maxMeters float64) (Record, bool) {
	best := -1
	bestDist := math.MaxFloat64
	for i, r := range g.records {
		d := geo.HaversineMeters(c, r.Coordinate)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > maxMeters {
		return Record{}, false
	}
	return g.records[best], true
}

func bucketKey(s string) rune {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	return unicode.ToUpper(r)
}
