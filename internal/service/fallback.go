package service

import (
	"math"

	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// mealShare is the fraction of the daily target assigned to one meal slot
// in a fallback day.
type mealShare struct {
	time     string
	mealType string
	share    float64
}

var fallbackShares = []mealShare{
	{"07:00", "Sarapan", 0.25},
	{"12:00", "Makan Siang", 0.35},
	{"15:00", "Snack", 0.10},
	{"19:00", "Makan Malam", 0.30},
}

var fallbackPortions = map[string]float64{
	"Sarapan":     250,
	"Makan Siang": 350,
	"Snack":       100,
	"Makan Malam": 300,
}

// fallbackMenus keeps substituted days from all reading identically.
var fallbackMenus = map[model.DayLabel][4]string{
	"A": {"Bubur Ayam", "Nasi Ayam Bakar & Lalapan", "Buah Potong", "Sup Ayam Sayuran"},
	"B": {"Roti Gandum & Telur", "Ikan Bakar & Nasi Merah", "Kacang Rebus", "Pepes Ikan & Tumis Kangkung"},
	"C": {"Oatmeal Pisang", "Nasi Telur Dadar & Sayur Asem", "Yogurt", "Capcay Telur Puyuh"},
	"D": {"Telur Orak-Arik & Roti", "Steak Sapi & Kentang Rebus", "Buah Apel", "Sup Daging Sayuran"},
	"E": {"Nasi Pecel", "Tahu Tempe Bacem & Urap", "Edamame", "Sayur Lodeh & Tempe Goreng"},
	"F": {"Roti & Alpukat", "Ikan Panggang & Salad", "Kacang Almond", "Tumis Udang Brokoli"},
}

var fallbackTips = []string{
	"Minum air putih minimal 8 gelas per hari",
	"Kunyah makanan perlahan dan berhenti sebelum kenyang",
	"Utamakan bahan segar daripada makanan olahan",
}

// FallbackTemplate builds a deterministic DayTemplate for one label from
// the daily targets. It cannot fail: any positive calorie target yields a
// structurally complete day with every numeric field present.
func FallbackTemplate(label model.DayLabel, t model.NutritionTargets) model.DayTemplate {
	menu, ok := fallbackMenus[label]
	if !ok {
		menu = fallbackMenus["A"]
	}

	tpl := model.DayTemplate{Label: label, Fallback: true, DietTips: fallbackTips}
	for i, slot := range fallbackShares {
		item := model.MealItem{
			Name:         menu[i],
			PortionGrams: fallbackPortions[slot.mealType],
			Calories:     round1(slot.share * float64(t.DailyCalories)),
			Protein:      round1(slot.share * float64(t.ProteinG)),
			Carbs:        round1(slot.share * float64(t.CarbsG)),
			Fat:          round1(slot.share * float64(t.FatG)),
		}
		tpl.Meals = append(tpl.Meals, model.Meal{
			Time:  slot.time,
			Type:  slot.mealType,
			Name:  menu[i],
			Items: []model.MealItem{item},
		})
	}
	return tpl
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
