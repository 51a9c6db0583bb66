package model

// Executive is a candidate decision maker discovered at a company.
type Executive struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	ProfileURL string `json:"profile_url,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// RankedExecutive is an Executive annotated with an authority score and a
// stable rank position. The top-ranked entry carries TopDecisionMaker.
type RankedExecutive struct {
	Executive
	Score            float64 `json:"score"`
	Rank             int     `json:"rank"`
	TopDecisionMaker bool    `json:"top_decision_maker"`
}
