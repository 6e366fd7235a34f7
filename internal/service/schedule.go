package service

import (
	"math/rand"

	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// DayPlanMapping maps the 7 days of one calendar week (index 0 = Sunday)
// to template labels. The mapping is a pure function of the week number:
// week 1 keeps label order A..F for Monday through Saturday, later weeks
// shuffle the six labels with the week number as seed. Sunday always draws
// from the same seeded source, so the full week is reproducible.
func DayPlanMapping(week int) [7]model.DayLabel {
	rng := rand.New(rand.NewSource(int64(week)))

	order := make([]model.DayLabel, len(model.DayLabels))
	copy(order, model.DayLabels)
	if week > 1 {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	var mapping [7]model.DayLabel
	mapping[0] = model.DayLabels[rng.Intn(len(model.DayLabels))]
	for i := 1; i < 7; i++ {
		mapping[i] = order[i-1]
	}
	return mapping
}
