package airquality

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Coordinates are quantized to 1e-5 degrees before hashing so that the same
// map position always hashes identically.
const syntheticQuantum = 1e5

var (
	areaPrefixes = []string{"North", "South", "East", "West", "Central", "Upper", "Lower", "New", "Old"}
	areaSuffixes = []string{"District", "Area", "Zone", "Sector", "Region", "Heights", "Valley", "Gardens", "Park"}
)

const (
	areaVowels     = "aeiou"
	areaConsonants = "bcdfghjklmnprstvw"
)

// CoordinateHash returns a fixed-seed 64-bit hash of c quantized to 5
// decimal places.
func CoordinateHash(c geo.Coordinate) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(int64(math.Round(c.Lat*syntheticQuantum))))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(math.Round(c.Lng*syntheticQuantum))))
	return xxhash.Sum64(buf[:])
}

// SyntheticPointID returns the stable id of a synthetic point at c.
func SyntheticPointID(c geo.Coordinate) string {
	return fmt.Sprintf("synthetic-%016x", CoordinateHash(c))
}

// SyntheticReading generates a plausible reading for c. The same coordinate
// always yields the same component values; only CapturedAt varies.
func SyntheticReading(c geo.Coordinate, capturedAt time.Time) *PollutantReading {
	seed := CoordinateHash(c)
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	base := 5 + r.Float64()*45
	latFactor := 1 - math.Abs(c.Lat)/90
	pm25 := base * (0.7 + latFactor*0.6)

	return &PollutantReading{
		PM25:       Float(geo.Round(pm25, 2)),
		PM10:       Float(geo.Round(pm25*(1.5+(r.Float64()-0.5)), 2)),
		O3:         Float(geo.Round(20+r.Float64()*80, 2)),
		NO2:        Float(geo.Round(10+r.Float64()*50, 2)),
		SO2:        Float(geo.Round(5+r.Float64()*20, 2)),
		CO:         Float(geo.Round(300+r.Float64()*1700, 2)),
		NO:         Float(geo.Round(5+r.Float64()*15, 2)),
		NH3:        Float(geo.Round(3+r.Float64()*12, 2)),
		CapturedAt: capturedAt,
	}
}

// AreaName builds a pronounceable place name for c, such as
// "Upper Kadelo Heights".
func AreaName(c geo.Coordinate) string {
	digits := fmt.Sprintf("%020d", CoordinateHash(c))
	d := func(i int) int { return int(digits[i] - '0') }

	prefix := areaPrefixes[(d(0)*10+d(1))%len(areaPrefixes)]
	suffix := areaSuffixes[(d(2)*10+d(3))%len(areaSuffixes)]

	var middle strings.Builder
	for i := 0; i < 3; i++ {
		middle.WriteByte(areaConsonants[d(4+i*2)%len(areaConsonants)])
		middle.WriteByte(areaVowels[d(5+i*2)%len(areaVowels)])
	}
	name := middle.String()

	return prefix + " " + strings.ToUpper(name[:1]) + name[1:] + " " + suffix
}

// NewSyntheticPoint creates a synthetic monitoring point at c.
func NewSyntheticPoint(c geo.Coordinate, now time.Time) *MonitoringPoint {
	c = c.Rounded(5)
	return &MonitoringPoint{
		ID:          SyntheticPointID(c),
		Name:        AreaName(c),
		Coordinate:  c,
		Reading:     SyntheticReading(c, now),
		IsSynthetic: true,
		CapturedAt:  now,
	}
}
