package domain

// Prediction is the regression output of the fusion network.
type Prediction struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}
