// Package targets derives daily calorie and macro targets from a health
// profile using the Harris-Benedict equation.
package targets

import (
	"errors"
	"math"

	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// ErrIncompleteProfile is returned when the profile is missing the
// measurements the equation needs.
var ErrIncompleteProfile = errors.New("health profile is incomplete: age, weight and height are required")

var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary:  1.2,
	model.ActivityLight:      1.375,
	model.ActivityModerate:   1.55,
	model.ActivityActive:     1.725,
	model.ActivityVeryActive: 1.9,
}

// macroSplit is the fraction of daily energy assigned to each macro.
type macroSplit struct {
	protein float64
	carbs   float64
	fat     float64
}

var dietSplits = map[model.DietGoal]macroSplit{
	model.DietKeto:          {protein: 0.20, carbs: 0.05, fat: 0.75},
	model.DietAtkins:        {protein: 0.30, carbs: 0.10, fat: 0.60},
	model.DietMediterranean: {protein: 0.20, carbs: 0.45, fat: 0.35},
	model.DietPaleo:         {protein: 0.30, carbs: 0.30, fat: 0.40},
	model.DietVegetarian:    {protein: 0.15, carbs: 0.55, fat: 0.30},
	model.DietDASH:          {protein: 0.18, carbs: 0.55, fat: 0.27},
	model.DietMayo:          {protein: 0.20, carbs: 0.50, fat: 0.30},
}

// defaultSplit covers Intermittent Fasting and any goal without its own
// macro distribution. Fasting changes meal timing, not composition.
var defaultSplit = macroSplit{protein: 0.20, carbs: 0.50, fat: 0.30}

// BMR computes the basal metabolic rate in kcal/day via the revised
// Harris-Benedict equation. Any gender other than male uses the female
// coefficients.
func BMR(profile model.HealthProfile) float64 {
	w, h, a := profile.WeightKg, profile.HeightCm, float64(profile.Age)
	if profile.Gender == model.GenderMale {
		return 88.362 + 13.397*w + 4.799*h - 5.677*a
	}
	return 447.593 + 9.247*w + 3.098*h - 4.330*a
}

// TDEE scales BMR by the profile's activity multiplier. An unrecognized
// activity level falls back to sedentary.
func TDEE(profile model.HealthProfile) float64 {
	mult, ok := activityMultipliers[profile.ActivityLevel]
	if !ok {
		mult = activityMultipliers[model.ActivitySedentary]
	}
	return BMR(profile) * mult
}

// Compute derives daily targets for a profile and diet goal. Macro grams
// are computed from the unrounded energy figure, then rounded, so the four
// numbers stay mutually consistent.
func Compute(profile model.HealthProfile, goal model.DietGoal) (model.NutritionTargets, error) {
	if !profile.Complete() {
		return model.NutritionTargets{}, ErrIncompleteProfile
	}

	tdee := TDEE(profile)
	split, ok := dietSplits[goal]
	if !ok {
		split = defaultSplit
	}

	return model.NutritionTargets{
		DailyCalories: int(math.Round(tdee)),
		ProteinG:      int(math.Round(split.protein * tdee / 4)),
		CarbsG:        int(math.Round(split.carbs * tdee / 4)),
		FatG:          int(math.Round(split.fat * tdee / 9)),
	}, nil
}
