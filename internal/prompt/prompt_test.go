package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jusabaoth/NutriScan/pkg/model"
)

func ketoPrefs() model.Preferences {
	return model.Preferences{
		DietGoal: model.DietKeto,
		Profile: model.HealthProfile{
			Age: 30, Gender: model.GenderMale, WeightKg: 70, HeightCm: 170,
			ActivityLevel: model.ActivityModerate,
		},
		DurationWeeks: 4,
		DailyBudget:   75000,
	}
}

func TestScan_EmbedsProfileAndRegulations(t *testing.T) {
	profile := model.HealthProfile{
		Age: 45, Gender: model.GenderFemale, WeightKg: 62, HeightCm: 158,
		Conditions: []string{"Diabetes"},
		Allergies:  []string{"Kacang"},
	}

	text, cfg := Scan(profile)

	assert.Contains(t, text, "Diabetes")
	assert.Contains(t, text, "Kacang")
	assert.Contains(t, text, "REGULASI BPOM")
	assert.Contains(t, text, "REGULASI WHO")
	assert.Contains(t, text, "sodium <1500mg")
	assert.Contains(t, text, `"analysisText"`)
	assert.Contains(t, text, "HANYA JSON")
	assert.Positive(t, cfg.MaxOutputTokens)
}

func TestScan_MissingProfileRendersDefaults(t *testing.T) {
	text, _ := Scan(model.HealthProfile{})

	assert.Contains(t, text, "Profil tidak tersedia")
	assert.Contains(t, text, "Kondisi Kesehatan: Tidak ada")
	assert.Contains(t, text, "Alergi: Tidak ada")
}

func TestDay_ThemesDifferPerLabel(t *testing.T) {
	prefs := ketoPrefs()
	targets := model.NutritionTargets{DailyCalories: 2591, ProteinG: 130, CarbsG: 32, FatG: 216}

	seen := make(map[string]bool)
	for _, label := range model.DayLabels {
		text, cfg := Day(label, prefs, targets)
		assert.Contains(t, text, "Template "+string(label))
		assert.Contains(t, text, "2591 kcal")
		assert.Contains(t, text, "PRINSIP DIET Keto")
		assert.False(t, seen[text], "label %s repeats another label's prompt", label)
		seen[text] = true
		assert.Equal(t, 8000, cfg.MaxOutputTokens)
	}
}

func TestDay_FastingSkipsBreakfast(t *testing.T) {
	prefs := ketoPrefs()
	prefs.DietGoal = model.DietFasting

	text, _ := Day("A", prefs, model.NutritionTargets{DailyCalories: 2000})
	assert.Contains(t, text, "TANPA sarapan")
	assert.NotContains(t, text, "Sarapan (07:00)")
}

func TestDay_CardiovascularMandatesSmallerMeals(t *testing.T) {
	prefs := ketoPrefs()
	prefs.Conditions = []string{"Penyakit Jantung"}

	text, _ := Day("B", prefs, model.NutritionTargets{DailyCalories: 1800})
	assert.Contains(t, text, "5 porsi kecil")
}

func TestDay_AllergyProhibitionList(t *testing.T) {
	prefs := ketoPrefs()
	prefs.Allergies = []string{"Udang", "Susu"}
	prefs.Profile.Allergies = []string{"Udang"}

	text, _ := Day("C", prefs, model.NutritionTargets{DailyCalories: 2200})
	assert.Contains(t, text, "DILARANG KERAS")
	assert.Contains(t, text, "Udang, Susu")
}

func TestDay_IsPure(t *testing.T) {
	prefs := ketoPrefs()
	targets := model.NutritionTargets{DailyCalories: 2591, ProteinG: 130, CarbsG: 32, FatG: 216}

	first, cfg1 := Day("D", prefs, targets)
	second, cfg2 := Day("D", prefs, targets)
	require.Equal(t, first, second)
	require.Equal(t, cfg1, cfg2)
}
