package scoring

import "fmt"

// Weights configures the composite score formula. The five weights must
// sum to 1.0 within a ±0.01 tolerance.
type Weights struct {
	GPA          float64 `mapstructure:"gpa_weight"`
	Interest     float64 `mapstructure:"interest_weight"`
	Time         float64 `mapstructure:"time_weight"`
	YearFit      float64 `mapstructure:"year_fit_weight"`
	Prerequisite float64 `mapstructure:"prerequisite_weight"`
}

// DefaultWeights returns the standard scoring preset.
func DefaultWeights() Weights {
	return Weights{
		GPA:          0.35,
		Interest:     0.30,
		Time:         0.20,
		YearFit:      0.10,
		Prerequisite: 0.05,
	}
}

// CompetitiveWeights emphasizes academic standing.
func CompetitiveWeights() Weights {
	return Weights{
		GPA:          0.45,
		Interest:     0.25,
		Time:         0.15,
		YearFit:      0.10,
		Prerequisite: 0.05,
	}
}

// InterestFocusedWeights emphasizes interest overlap with course tags.
func InterestFocusedWeights() Weights {
	return Weights{
		GPA:          0.25,
		Interest:     0.45,
		Time:         0.15,
		YearFit:      0.10,
		Prerequisite: 0.05,
	}
}

// FCFSLeaningWeights emphasizes application time, approximating
// first-come-first-served while keeping the other factors in play.
func FCFSLeaningWeights() Weights {
	return Weights{
		GPA:          0.25,
		Interest:     0.20,
		Time:         0.40,
		YearFit:      0.10,
		Prerequisite: 0.05,
	}
}

// WeightsForProfile resolves a named preset. Unknown profiles fall back
// to the default preset.
func WeightsForProfile(profile string) Weights {
	switch profile {
	case "competitive":
		return CompetitiveWeights()
	case "interest_focused":
		return InterestFocusedWeights()
	case "fcfs_leaning":
		return FCFSLeaningWeights()
	default:
		return DefaultWeights()
	}
}

// Validate checks that the weights sum to 1.0 within tolerance.
func (w Weights) Validate() error {
	total := w.GPA + w.Interest + w.Time + w.YearFit + w.Prerequisite
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", total)
	}
	return nil
}
