package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jusabaoth/NutriScan/pkg/model"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &obj))
	return obj
}

func TestDay_CurrentShape(t *testing.T) {
	candidate := decode(t, `{
		"meals": [
			{
				"time": "07:00",
				"type": "Breakfast",
				"name": "Oatmeal Bowl",
				"items": [
					{"name": "Oatmeal", "portion_grams": 80, "calories": 300, "protein": 10, "carbs": 54, "fat": 5},
					{"name": "Banana", "portion_grams": 120, "calories": 105, "protein": 1, "carbs": 27, "fat": 0}
				]
			}
		],
		"diet_tips": ["Drink water before meals"]
	}`)

	tpl, err := Day(candidate, "A")
	require.NoError(t, err)

	assert.Equal(t, model.DayLabel("A"), tpl.Label)
	require.Len(t, tpl.Meals, 1)
	assert.Equal(t, "Oatmeal Bowl", tpl.Meals[0].Name)
	require.Len(t, tpl.Meals[0].Items, 2)
	assert.Equal(t, 80.0, tpl.Meals[0].Items[0].PortionGrams)
	assert.Equal(t, []string{"Drink water before meals"}, tpl.DietTips)
	assert.False(t, tpl.Fallback)
}

func TestDay_LegacyShape(t *testing.T) {
	candidate := decode(t, `{
		"breakfast": [{"name": "Nasi Uduk", "cal": 420, "g": 250, "p": 12, "c": 60, "f": 14}],
		"lunch":     [{"name": "Ayam Bakar", "cal": 380, "g": 200, "p": 35, "c": 8, "f": 22}],
		"dinner":    [{"name": "Sup Sayur", "cal": 180, "g": 300, "p": 6, "c": 24, "f": 5}],
		"tips": ["Limit fried food"]
	}`)

	tpl, err := Day(candidate, "B")
	require.NoError(t, err)
	require.Len(t, tpl.Meals, 3)

	assert.Equal(t, "07:00", tpl.Meals[0].Time)
	assert.Equal(t, "Breakfast", tpl.Meals[0].Type)
	assert.Equal(t, "12:00", tpl.Meals[1].Time)
	assert.Equal(t, "Lunch", tpl.Meals[1].Type)
	assert.Equal(t, "19:00", tpl.Meals[2].Time)
	assert.Equal(t, "Dinner", tpl.Meals[2].Type)

	// Short aliases map onto the canonical item fields.
	item := tpl.Meals[1].Items[0]
	assert.Equal(t, 380.0, item.Calories)
	assert.Equal(t, 200.0, item.PortionGrams)
	assert.Equal(t, 35.0, item.Protein)
	assert.Equal(t, 8.0, item.Carbs)
	assert.Equal(t, 22.0, item.Fat)

	// Meal name is synthesized from item names when absent.
	assert.Equal(t, "Nasi Uduk", tpl.Meals[0].Name)

	// Legacy "tips" maps onto diet_tips.
	assert.Equal(t, []string{"Limit fried food"}, tpl.DietTips)
}

func TestDay_CompositeNameFromTwoItems(t *testing.T) {
	candidate := decode(t, `{
		"meals": [{
			"time": "12:00",
			"type": "Lunch",
			"items": [
				{"name": "Gado-Gado", "calories": 350},
				{"name": "Es Teh", "calories": 90},
				{"name": "Kerupuk", "calories": 120}
			]
		}]
	}`)

	tpl, err := Day(candidate, "C")
	require.NoError(t, err)
	assert.Equal(t, "Gado-Gado + Es Teh", tpl.Meals[0].Name)
}

func TestDay_MissingNumericsDefaultToZero(t *testing.T) {
	candidate := decode(t, `{
		"meals": [{
			"time": "19:00",
			"type": "Dinner",
			"items": [{"name": "Pecel Lele", "calories": null}]
		}]
	}`)

	tpl, err := Day(candidate, "D")
	require.NoError(t, err)
	item := tpl.Meals[0].Items[0]
	assert.Zero(t, item.Calories)
	assert.Zero(t, item.PortionGrams)
	assert.Zero(t, item.Protein)
}

func TestDay_UnknownDialect(t *testing.T) {
	for name, raw := range map[string]string{
		"empty object":    `{}`,
		"meals not array": `{"meals": "soon"}`,
		"empty meals":     `{"meals": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Day(decode(t, raw), "A")
			var dialectErr *ErrUnknownDialect
			require.ErrorAs(t, err, &dialectErr)
			assert.Equal(t, "day", dialectErr.Kind)
		})
	}
}

func TestScan_FullShape(t *testing.T) {
	candidate := decode(t, `{
		"productName": "Keripik Singkong",
		"nutritionFacts": {
			"servingSize": "25 g",
			"calories": 130,
			"totalFat": 7,
			"saturatedFat": 3,
			"transFat": 0,
			"cholesterol": 0,
			"sodium": 190,
			"totalCarbohydrate": 16,
			"dietaryFiber": 1,
			"sugars": 2,
			"protein": 1
		},
		"ingredients": ["cassava", "palm oil", "salt"],
		"riskAssessment": {"level": "High", "factors": ["high sodium"], "score": 72},
		"recommendations": [
			{"category": "limit", "message": "Keep portions small", "reason": "Sodium density"}
		],
		"bpomCompliance": {"compliant": true, "violations": [], "warnings": ["near sodium limit"]},
		"whoCompliance": {"compliant": false, "violations": ["saturated fat"], "warnings": []},
		"analysisText": "Fried snack, moderate in everything except sodium."
	}`)

	result, err := Scan(candidate)
	require.NoError(t, err)

	assert.Equal(t, "Keripik Singkong", result.ProductName)
	assert.Equal(t, "25 g", result.NutritionFacts.ServingSize)
	assert.Equal(t, 190.0, result.NutritionFacts.Sodium)
	assert.Equal(t, model.RiskHigh, result.RiskAssessment.Level)
	assert.Equal(t, 72, result.RiskAssessment.Score)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, model.RecommendLimit, result.Recommendations[0].Category)
	assert.True(t, result.BPOMCompliance.Compliant)
	assert.False(t, result.WHOCompliance.Compliant)
	assert.NotEmpty(t, result.AnalysisText)
}

func TestScan_CoercesDirtyNumerics(t *testing.T) {
	candidate := decode(t, `{
		"productName": "Mystery Bar",
		"nutritionFacts": {
			"servingSize": "1 bar",
			"calories": "210",
			"totalFat": null,
			"sodium": "not listed"
		},
		"analysisText": "Label partially unreadable."
	}`)

	result, err := Scan(candidate)
	require.NoError(t, err)

	assert.Equal(t, 210.0, result.NutritionFacts.Calories)
	assert.Zero(t, result.NutritionFacts.TotalFat)
	assert.Zero(t, result.NutritionFacts.Sodium)
	assert.Zero(t, result.NutritionFacts.Protein)

	// Absent sections come back as safe defaults, never nil.
	assert.Equal(t, model.RiskMedium, result.RiskAssessment.Level)
	assert.NotNil(t, result.BPOMCompliance.Violations)
	assert.NotNil(t, result.WHOCompliance.Warnings)
}

func TestScan_UnknownDialect(t *testing.T) {
	_, err := Scan(decode(t, `{"productName": "No Facts"}`))
	var dialectErr *ErrUnknownDialect
	require.ErrorAs(t, err, &dialectErr)
	assert.Equal(t, "scan", dialectErr.Kind)
}

func TestScan_ScoreClamped(t *testing.T) {
	for raw, want := range map[string]int{
		`{"nutritionFacts": {}, "riskAssessment": {"level": "low", "score": -5}}`:  0,
		`{"nutritionFacts": {}, "riskAssessment": {"level": "low", "score": 140}}`: 100,
	} {
		result, err := Scan(decode(t, raw))
		require.NoError(t, err)
		assert.Equal(t, want, result.RiskAssessment.Score)
	}
}
