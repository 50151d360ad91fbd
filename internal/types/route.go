package types

// RouteStage is one leg of a transit-oriented route: an anchor place plus two
// rounds of companion places with placeholder transport metadata. Transient;
// lives only inside a conversation.
type RouteStage struct {
	StageName       string `json:"stage_name"`
	Mode1           string `json:"mode_1"`
	BoardingPoint1  string `json:"boarding_point_1"`
	AlightingPoint1 string `json:"alighting_point_1"`
	Companions1     string `json:"companions_1"` // comma-joined place titles
	Mode2           string `json:"mode_2"`
	BoardingPoint2  string `json:"boarding_point_2"`
	AlightingPoint2 string `json:"alighting_point_2"`
	Companions2     string `json:"companions_2"`
}

// TourStage is one entry of the popularity-first walking variant: a top
// place, two chained companion rounds and the mean walking distance of each.
type TourStage struct {
	Place       string  `json:"recommended_place"`
	WalkKm1     float64 `json:"walking_km_round1"`
	Companions1 string  `json:"companions_round1"`
	WalkKm2     float64 `json:"walking_km_round2"`
	Companions2 string  `json:"companions_round2"`
}
