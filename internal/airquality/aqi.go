package airquality

import "math"

// Category is an AQI health category.
type Category string

const (
	CategoryGood               Category = "good"
	CategoryModerate           Category = "moderate"
	CategoryUnhealthySensitive Category = "unhealthy_sensitive"
	CategoryUnhealthy          Category = "unhealthy"
	CategoryVeryUnhealthy      Category = "very_unhealthy"
	CategoryHazardous          Category = "hazardous"
)

// AQIValue is derived from a reading and never stored on its own.
type AQIValue struct {
	Score    int      `json:"score"`
	Category Category `json:"category"`
}

// Info returns display metadata for the value's category.
func (v AQIValue) Info() CategoryInfo {
	return Info(v.Category)
}

// CategoryInfo describes one row of the thresholds table.
type CategoryInfo struct {
	Category    Category `json:"category"`
	Label       string   `json:"label"`
	Color       string   `json:"color"`
	Description string   `json:"description"`
	Precautions []string `json:"precautions"`
	MinScore    int      `json:"minScore"`
	// MaxScore is zero for the open-ended top category.
	MaxScore int `json:"maxScore,omitempty"`
}

type pm25Band struct {
	lowConc, highConc float64
	lowScore, span    float64
}

// PM2.5 breakpoints. The last band has no upper limit; its slope is applied
// to any concentration above 250.4.
var pm25Bands = []pm25Band{
	{lowConc: 0, highConc: 12.0, lowScore: 0, span: 50},
	{lowConc: 12.1, highConc: 35.4, lowScore: 51, span: 50},
	{lowConc: 35.5, highConc: 55.4, lowScore: 101, span: 50},
	{lowConc: 55.5, highConc: 150.4, lowScore: 151, span: 50},
	{lowConc: 150.5, highConc: 250.4, lowScore: 201, span: 100},
	{lowConc: 250.5, highConc: 400.4, lowScore: 301, span: 100},
}

// maxPM25 bounds extrapolation so absurd inputs still produce a finite score.
const maxPM25 = 10000

var categoryIndexMidpoints = map[int]int{1: 25, 2: 75, 3: 125, 4: 175, 5: 250}

var categoryTable = []CategoryInfo{
	{
		Category:    CategoryGood,
		Label:       "Good",
		Color:       "#00e400",
		Description: "Air quality is considered satisfactory, and air pollution poses little or no risk.",
		MinScore:    0,
		MaxScore:    50,
	},
	{
		Category:    CategoryModerate,
		Label:       "Moderate",
		Color:       "#ffff00",
		Description: "Air quality is acceptable; however, some pollutants may be a concern for a small number of people who are unusually sensitive to air pollution.",
		MinScore:    51,
		MaxScore:    100,
	},
	{
		Category:    CategoryUnhealthySensitive,
		Label:       "Unhealthy for Sensitive Groups",
		Color:       "#ff7e00",
		Description: "Members of sensitive groups may experience health effects. The general public is not likely to be affected.",
		MinScore:    101,
		MaxScore:    150,
	},
	{
		Category:    CategoryUnhealthy,
		Label:       "Unhealthy",
		Color:       "#ff0000",
		Description: "Everyone may begin to experience health effects; members of sensitive groups may experience more serious health effects.",
		MinScore:    151,
		MaxScore:    200,
	},
	{
		Category:    CategoryVeryUnhealthy,
		Label:       "Very Unhealthy",
		Color:       "#99004c",
		Description: "Health warnings of emergency conditions. The entire population is more likely to be affected.",
		MinScore:    201,
		MaxScore:    300,
	},
	{
		Category:    CategoryHazardous,
		Label:       "Hazardous",
		Color:       "#7e0023",
		Description: "Health alert: everyone may experience more serious health effects.",
		MinScore:    301,
	},
}

// AQIFromPM25 converts a PM2.5 concentration to an AQI score. Negative and
// NaN inputs count as zero.
func AQIFromPM25(pm25 float64) int {
	if math.IsNaN(pm25) || pm25 <= 0 {
		return 0
	}
	if pm25 > maxPM25 {
		pm25 = maxPM25
	}

	band := pm25Bands[len(pm25Bands)-1]
	for _, b := range pm25Bands {
		if pm25 <= b.highConc {
			band = b
			break
		}
	}

	score := (pm25-band.lowConc)/(band.highConc-band.lowConc)*band.span + band.lowScore
	return int(math.Round(score))
}

// AQIFromCategoryIndex maps a bare 1-5 provider index to the midpoint score
// of its band. Out-of-range indexes yield Good with score 0.
func AQIFromCategoryIndex(index int) AQIValue {
	score, ok := categoryIndexMidpoints[index]
	if !ok {
		return AQIValue{Score: 0, Category: CategoryGood}
	}
	return AQIValue{Score: score, Category: CategoryForScore(score)}
}

// ComputeAQI derives the AQI of a reading. PM2.5 wins over the category
// index; a nil or empty reading is Good with score 0.
func ComputeAQI(r *PollutantReading) AQIValue {
	if r == nil {
		return AQIValue{Score: 0, Category: CategoryGood}
	}
	if r.PM25 != nil {
		score := AQIFromPM25(*r.PM25)
		return AQIValue{Score: score, Category: CategoryForScore(score)}
	}
	return AQIFromCategoryIndex(r.CategoryIndex)
}

// CategoryForScore returns the category whose range contains score.
func CategoryForScore(score int) Category {
	switch {
	case score <= 50:
		return CategoryGood
	case score <= 100:
		return CategoryModerate
	case score <= 150:
		return CategoryUnhealthySensitive
	case score <= 200:
		return CategoryUnhealthy
	case score <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// Precautions returns the health advice shown for a score.
func Precautions(score int) []string {
	out := []string{}
	if score > 100 {
		out = append(out, "Consider wearing masks outdoors")
	}
	if score > 150 {
		out = append(out, "Limit outdoor activities")
	}
	if score > 200 {
		out = append(out, "Stay indoors if possible")
	}
	if score > 300 {
		out = append(out, "Keep windows and doors closed")
	}
	if score > 50 {
		out = append(out, "People with respiratory conditions should take extra precautions")
	}
	return out
}

// Info returns display metadata for a category. Unknown categories map to
// Good.
func Info(c Category) CategoryInfo {
	for _, info := range categoryTable {
		if info.Category == c {
			return withPrecautions(info)
		}
	}
	return withPrecautions(categoryTable[0])
}

// Categories returns the full thresholds table ordered by score.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryTable))
	for i, info := range categoryTable {
		out[i] = withPrecautions(info)
	}
	return out
}

func withPrecautions(info CategoryInfo) CategoryInfo {
	info.Precautions = Precautions(info.MinScore)
	return info
}
