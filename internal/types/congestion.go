package types

// Grade is the ordinal congestion level published for a sub-district and
// time-of-day bucket.
type Grade int

const (
	GradeUnknown Grade = iota
	GradeRelaxed
	GradeNormal
	GradeCrowded
	GradeVeryCrowded
)

var gradeNames = map[Grade]string{
	GradeRelaxed:     "relaxed",
	GradeNormal:      "normal",
	GradeCrowded:     "crowded",
	GradeVeryCrowded: "very_crowded",
}

func (g Grade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return "unknown"
}

// CongestionRecord is one row of the static congestion table: the grade for
// one sub-district at one hour bucket (e.g. "10시").
type CongestionRecord struct {
	Province    string  `json:"province"`
	District    string  `json:"district"`
	SubDistrict string  `json:"sub_district"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Bucket      string  `json:"bucket"`
	Level       Grade   `json:"level"`
}

// AreaKey identifies one sub-district in the congestion table.
type AreaKey struct {
	Province    string `json:"province"`
	District    string `json:"district"`
	SubDistrict string `json:"sub_district"`
}
