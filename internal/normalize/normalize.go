// Package normalize converts the model's loosely-typed response dialects
// into the one canonical schema the assemblers consume.
//
// The model has emitted several field-naming dialects over time: a legacy
// day shape with breakfast/lunch/dinner arrays instead of a meals array,
// and an item shape with short aliases (g, cal, p, c, f). Each known
// dialect gets its own conversion; an unknown dialect is a malformed
// response, never a silent pass-through.
package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// ErrUnknownDialect means the candidate object matches none of the known
// response shapes.
type ErrUnknownDialect struct {
	Kind string
}

func (e *ErrUnknownDialect) Error() string {
	return fmt.Sprintf("unknown %s response dialect", e.Kind)
}

// Canonical meal times for the legacy breakfast/lunch/dinner shape.
const (
	legacyBreakfastTime = "07:00"
	legacyLunchTime     = "12:00"
	legacyDinnerTime    = "19:00"
)

// Day converts a candidate day object into a DayTemplate. Both the current
// shape (a meals array) and the legacy shape (breakfast/lunch/dinner
// arrays) are accepted.
func Day(candidate map[string]any, label model.DayLabel) (*model.DayTemplate, error) {
	rawMeals, ok := candidate["meals"].([]any)
	if !ok {
		rawMeals = legacyMeals(candidate)
	}
	if rawMeals == nil {
		return nil, &ErrUnknownDialect{Kind: "day"}
	}

	tpl := &model.DayTemplate{Label: label}
	for _, rm := range rawMeals {
		mealObj, ok := rm.(map[string]any)
		if !ok {
			continue
		}
		tpl.Meals = append(tpl.Meals, normalizeMeal(mealObj))
	}
	if len(tpl.Meals) == 0 {
		return nil, &ErrUnknownDialect{Kind: "day"}
	}

	tpl.DietTips = stringSlice(firstPresent(candidate, "diet_tips", "tips"))
	return tpl, nil
}

// legacyMeals synthesizes a meals array from the breakfast/lunch/dinner
// shape, with fixed canonical times and type labels.
func legacyMeals(candidate map[string]any) []any {
	slots := []struct {
		key      string
		time     string
		mealType string
	}{
		{"breakfast", legacyBreakfastTime, "Breakfast"},
		{"lunch", legacyLunchTime, "Lunch"},
		{"dinner", legacyDinnerTime, "Dinner"},
	}

	var meals []any
	for _, slot := range slots {
		items, ok := candidate[slot.key].([]any)
		if !ok {
			continue
		}
		meals = append(meals, map[string]any{
			"time":  slot.time,
			"type":  slot.mealType,
			"items": items,
		})
	}
	return meals
}

func normalizeMeal(obj map[string]any) model.Meal {
	meal := model.Meal{
		Time: asString(obj["time"]),
		Type: asString(obj["type"]),
		Name: asString(obj["name"]),
	}

	if items, ok := obj["items"].([]any); ok {
		for _, ri := range items {
			itemObj, ok := ri.(map[string]any)
			if !ok {
				continue
			}
			meal.Items = append(meal.Items, normalizeItem(itemObj))
		}
	} else {
		// A meal without an item list is itself the single item.
		meal.Items = append(meal.Items, normalizeItem(obj))
	}

	if meal.Name == "" {
		meal.Name = compositeName(meal.Items)
	}
	return meal
}

// Item field aliases emitted by older prompt revisions.
var itemAliases = map[string][]string{
	"portion_grams": {"portion_grams", "g"},
	"calories":      {"calories", "cal"},
	"protein":       {"protein", "p"},
	"carbs":         {"carbs", "c"},
	"fat":           {"fat", "f"},
}

func normalizeItem(obj map[string]any) model.MealItem {
	return model.MealItem{
		Name:         asString(obj["name"]),
		PortionGrams: aliasedNumber(obj, "portion_grams"),
		Calories:     aliasedNumber(obj, "calories"),
		Protein:      aliasedNumber(obj, "protein"),
		Carbs:        aliasedNumber(obj, "carbs"),
		Fat:          aliasedNumber(obj, "fat"),
		Ingredients:  stringSlice(obj["ingredients"]),
	}
}

func aliasedNumber(obj map[string]any, canonical string) float64 {
	for _, alias := range itemAliases[canonical] {
		if v, ok := obj[alias]; ok {
			return asNumber(v)
		}
	}
	return 0
}

// compositeName joins the first two item names with " + ", mirroring how
// dish names were synthesized when the model omitted one.
func compositeName(items []model.MealItem) string {
	var names []string
	for _, item := range items {
		if item.Name != "" {
			names = append(names, item.Name)
		}
		if len(names) == 2 {
			break
		}
	}
	return strings.Join(names, " + ")
}

// Scan converts a candidate scan object into a ScanResult. Scan responses
// have a single dialect, but every numeric fact must be coerced to zero
// when null, absent, or NaN before rendering or aggregation sees it.
func Scan(candidate map[string]any) (*model.ScanResult, error) {
	factsObj, ok := candidate["nutritionFacts"].(map[string]any)
	if !ok {
		return nil, &ErrUnknownDialect{Kind: "scan"}
	}

	result := &model.ScanResult{
		ProductName: asString(candidate["productName"]),
		NutritionFacts: model.NutritionFacts{
			ServingSize:       asString(factsObj["servingSize"]),
			Calories:          asNumber(factsObj["calories"]),
			TotalFat:          asNumber(factsObj["totalFat"]),
			SaturatedFat:      asNumber(factsObj["saturatedFat"]),
			TransFat:          asNumber(factsObj["transFat"]),
			Cholesterol:       asNumber(factsObj["cholesterol"]),
			Sodium:            asNumber(factsObj["sodium"]),
			TotalCarbohydrate: asNumber(factsObj["totalCarbohydrate"]),
			DietaryFiber:      asNumber(factsObj["dietaryFiber"]),
			Sugars:            asNumber(factsObj["sugars"]),
			Protein:           asNumber(factsObj["protein"]),
		},
		Ingredients:  stringSlice(candidate["ingredients"]),
		AnalysisText: asString(candidate["analysisText"]),
	}

	if risk, ok := candidate["riskAssessment"].(map[string]any); ok {
		result.RiskAssessment = model.RiskAssessment{
			Level:   riskLevel(asString(risk["level"])),
			Factors: stringSlice(risk["factors"]),
			Score:   clampScore(asNumber(risk["score"])),
		}
	} else {
		result.RiskAssessment = model.RiskAssessment{Level: model.RiskMedium, Factors: []string{}}
	}

	if recs, ok := candidate["recommendations"].([]any); ok {
		for _, rr := range recs {
			recObj, ok := rr.(map[string]any)
			if !ok {
				continue
			}
			result.Recommendations = append(result.Recommendations, model.Recommendation{
				Category: recommendationCategory(asString(recObj["category"])),
				Message:  asString(recObj["message"]),
				Reason:   asString(recObj["reason"]),
			})
		}
	}

	result.BPOMCompliance = compliance(candidate["bpomCompliance"])
	result.WHOCompliance = compliance(candidate["whoCompliance"])
	return result, nil
}

func compliance(v any) model.ComplianceReport {
	obj, ok := v.(map[string]any)
	if !ok {
		return model.ComplianceReport{Violations: []string{}, Warnings: []string{}}
	}
	compliant, _ := obj["compliant"].(bool)
	report := model.ComplianceReport{
		Compliant:  compliant,
		Violations: stringSlice(obj["violations"]),
		Warnings:   stringSlice(obj["warnings"]),
	}
	if report.Violations == nil {
		report.Violations = []string{}
	}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	return report
}

func riskLevel(s string) model.RiskLevel {
	switch model.RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case model.RiskLow:
		return model.RiskLow
	case model.RiskHigh:
		return model.RiskHigh
	default:
		return model.RiskMedium
	}
}

func recommendationCategory(s string) model.RecommendationCategory {
	switch model.RecommendationCategory(strings.ToLower(strings.TrimSpace(s))) {
	case model.RecommendAvoid:
		return model.RecommendAvoid
	case model.RecommendSafe:
		return model.RecommendSafe
	case model.RecommendBeneficial:
		return model.RecommendBeneficial
	default:
		return model.RecommendLimit
	}
}

func clampScore(f float64) int {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(math.Round(f))
}

func firstPresent(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, rv := range raw {
		if s := asString(rv); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asNumber coerces any JSON value to a usable float64. Null, absent,
// non-numeric, NaN, and infinite values all become zero.
func asNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case int:
		return float64(n)
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
		return 0
	default:
		return 0
	}
}
