package types

// Place is one row of the reference place table. Loaded once from Postgres
// and treated as immutable at request time.
type Place struct {
	Title          string  `json:"title"`
	Cat1           string  `json:"cat1"`
	Cat2           string  `json:"cat2,omitempty"`
	Cat3           string  `json:"cat3,omitempty"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Address        string  `json:"address"`
	ClosestStation string  `json:"closest_station,omitempty"`
}

// Sentiment is the categorical label attached to a review by the upstream
// sentiment model.
type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// Review is one row of the review table. Reviews are never mutated, only
// aggregated.
type Review struct {
	Address       string    `json:"address"` // administrative address key, joins to Place.Address
	District      string    `json:"district"`
	SubDistrict   string    `json:"sub_district"`
	Category      string    `json:"category"`
	Rating        float64   `json:"rating"`
	Sentiment     Sentiment `json:"sentiment"`
	SentimentProb *float64  `json:"sentiment_prob,omitempty"`
	Content       string    `json:"content,omitempty"`
}

// AreaScore is the output of one popularity-scoring run for a single grouping
// key. Recomputed fully on each run; never updated incrementally.
type AreaScore struct {
	District       string  `json:"district,omitempty"`
	SubDistrict    string  `json:"sub_district,omitempty"`
	Category       string  `json:"category,omitempty"`
	Place          string  `json:"place,omitempty"`
	ReviewCount    int     `json:"review_count"`
	MeanRating     float64 `json:"mean_rating"`
	MeanPositivity float64 `json:"mean_positivity"`
	LogReviewCount float64 `json:"log_review_count"`
	AdjRating      float64 `json:"adj_rating"`
	AdjPositivity  float64 `json:"adj_positivity"`
	Popularity     float64 `json:"popularity"`
}
