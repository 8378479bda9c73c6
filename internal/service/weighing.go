package service

// WeightInput carries the weighing readings supplied with a collection
type WeightInput struct {
	GrossKg *float64 `json:"gross_kg"`
	TareKg  *float64 `json:"tare_kg"`
	NetKg   *float64 `json:"net_kg"`
	Source  string   `json:"source"`
}

// ComputeNet derives the net collected weight. An explicit net wins;
// otherwise both gross and tare are required. The result is clamped to
// zero so a tare reading above gross never stores a negative weight.
// Pure function: no side effects, same inputs always yield the same net.
func ComputeNet(gross, tare, net *float64) (float64, error) {
	if net != nil {
		return clampNonNegative(*net), nil
	}
	if gross != nil && tare != nil {
		return clampNonNegative(*gross - *tare), nil
	}
	return 0, &ValidationError{Msg: "missing weight inputs"}
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
