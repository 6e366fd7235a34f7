package model

import "time"

// ActivityLevel describes how physically active a user is. The values feed
// the TDEE multiplier table, so they must match the table keys exactly.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "Sedentary"
	ActivityLight      ActivityLevel = "Light"
	ActivityModerate   ActivityLevel = "Moderate"
	ActivityActive     ActivityLevel = "Active"
	ActivityVeryActive ActivityLevel = "Very Active"
)

// Gender selects the Harris-Benedict constant set.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// DietGoal selects macro split percentages and prompt principles.
type DietGoal string

const (
	DietKeto          DietGoal = "Keto"
	DietAtkins        DietGoal = "Atkins"
	DietMediterranean DietGoal = "Mediterranean"
	DietPaleo         DietGoal = "Paleo"
	DietVegetarian    DietGoal = "Vegetarian/Vegan"
	DietDASH          DietGoal = "DASH"
	DietFasting       DietGoal = "Intermittent Fasting"
	DietMayo          DietGoal = "Mayo Diet"
)

// HealthProfile is the user's physical profile plus condition and allergy
// tags. It is produced by an external profile editor and read-only here.
type HealthProfile struct {
	Age           int           `json:"age"`
	Gender        Gender        `json:"gender"`
	WeightKg      float64       `json:"weight_kg"`
	HeightCm      float64       `json:"height_cm"`
	ActivityLevel ActivityLevel `json:"activity_level"`
	Conditions    []string      `json:"conditions,omitempty"`
	Allergies     []string      `json:"allergies,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// Complete reports whether the profile carries the positive vitals every
// nutrition-target calculation requires. Absence of any of them is a hard
// precondition failure, never a silent default.
func (p *HealthProfile) Complete() bool {
	return p != nil && p.Age > 0 && p.WeightKg > 0 && p.HeightCm > 0
}

// Preferences is the snapshot of everything the user asked for in one
// meal-plan generation.
type Preferences struct {
	DietGoal      DietGoal      `json:"diet_goal"`
	Profile       HealthProfile `json:"profile"`
	DurationWeeks int           `json:"duration_weeks"`
	DailyBudget   int           `json:"daily_budget"`
	Conditions    []string      `json:"conditions,omitempty"`
	Allergies     []string      `json:"allergies,omitempty"`
	OtherNotes    string        `json:"other_notes,omitempty"`
}

// NutritionTargets is derived from a HealthProfile and DietGoal via
// Harris-Benedict; computed fresh on every generation and never mutated
// afterwards.
type NutritionTargets struct {
	DailyCalories int `json:"target_daily_calories"`
	ProteinG      int `json:"target_protein"`
	CarbsG        int `json:"target_carbs"`
	FatG          int `json:"target_fat"`
}

// MealItem is one food item inside a meal. All macro fields are always
// present after normalization; a missing upstream value becomes zero so
// aggregation can never produce NaN.
type MealItem struct {
	Name         string   `json:"name"`
	PortionGrams float64  `json:"portion_grams"`
	Calories     float64  `json:"calories"`
	Protein      float64  `json:"protein"`
	Carbs        float64  `json:"carbs"`
	Fat          float64  `json:"fat"`
	Ingredients  []string `json:"ingredients,omitempty"`
}

// Meal is one timed eating occasion in a day template.
type Meal struct {
	Time     string     `json:"time"`
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	Items    []MealItem `json:"items"`
	Calories float64    `json:"calories"`
	Protein  float64    `json:"protein"`
	Carbs    float64    `json:"carbs"`
	Fat      float64    `json:"fat"`
}

// DayLabel identifies one of the six generated template menus (A-F).
type DayLabel string

// DayLabels is the fixed generation order. Later labels never affect an
// earlier label's already-resolved template.
var DayLabels = []DayLabel{"A", "B", "C", "D", "E", "F"}

// DayTemplate is one daily menu, produced by a single model call or by the
// deterministic fallback generator.
type DayTemplate struct {
	Label    DayLabel `json:"label"`
	Meals    []Meal   `json:"meals"`
	DietTips []string `json:"diet_tips,omitempty"`
	Fallback bool     `json:"fallback"`
}

// Day is one calendar day of a meal plan, derived from exactly one
// DayTemplate. Totals are always recomputed by summation over meals.
type Day struct {
	Day           int      `json:"day"`
	Template      DayLabel `json:"template"`
	Meals         []Meal   `json:"meals"`
	TotalCalories float64  `json:"total_calories"`
	TotalProtein  float64  `json:"total_protein"`
	TotalCarbs    float64  `json:"total_carbs"`
	TotalFat      float64  `json:"total_fat"`
}

// Week is seven ordered days.
type Week struct {
	Week int   `json:"week"`
	Days []Day `json:"days"`
}

// MealPlan is the aggregate root. It is created once per generate action,
// replaced wholesale on regeneration, and persisted as a single blob.
type MealPlan struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Preferences Preferences      `json:"preferences"`
	Targets     NutritionTargets `json:"targets"`
	Templates   []DayTemplate    `json:"templates"`
	Weeks       []Week           `json:"weeks"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NutritionFacts are the per-serving values extracted from a label scan.
type NutritionFacts struct {
	ServingSize       string  `json:"servingSize"`
	Calories          float64 `json:"calories"`
	TotalFat          float64 `json:"totalFat"`
	SaturatedFat      float64 `json:"saturatedFat"`
	TransFat          float64 `json:"transFat"`
	Cholesterol       float64 `json:"cholesterol"`
	Sodium            float64 `json:"sodium"`
	TotalCarbohydrate float64 `json:"totalCarbohydrate"`
	DietaryFiber      float64 `json:"dietaryFiber"`
	Sugars            float64 `json:"sugars"`
	Protein           float64 `json:"protein"`
}

// RiskLevel classifies a scanned product for the current user.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAssessment scores a product 0-100 against the user's conditions.
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
	Score   int       `json:"score"`
}

// RecommendationCategory tags a recommendation's severity.
type RecommendationCategory string

const (
	RecommendAvoid      RecommendationCategory = "avoid"
	RecommendLimit      RecommendationCategory = "limit"
	RecommendSafe       RecommendationCategory = "safe"
	RecommendBeneficial RecommendationCategory = "beneficial"
)

// Recommendation is one personalized advice entry.
type Recommendation struct {
	Category RecommendationCategory `json:"category"`
	Message  string                 `json:"message"`
	Reason   string                 `json:"reason"`
}

// ComplianceReport is a pass/fail evaluation against one regulatory
// framework's numeric thresholds.
type ComplianceReport struct {
	Compliant  bool     `json:"compliant"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
}

// ScanResult is one completed nutrition-label analysis. Immutable after
// creation except for the saved-to-history flag owned by the store.
type ScanResult struct {
	ID              string           `json:"id"`
	ProductName     string           `json:"productName"`
	NutritionFacts  NutritionFacts   `json:"nutritionFacts"`
	Ingredients     []string         `json:"ingredients"`
	RiskAssessment  RiskAssessment   `json:"riskAssessment"`
	Recommendations []Recommendation `json:"recommendations"`
	BPOMCompliance  ComplianceReport `json:"bpomCompliance"`
	WHOCompliance   ComplianceReport `json:"whoCompliance"`
	AnalysisText    string           `json:"analysisText"`
	SavedToHistory  bool             `json:"savedToHistory"`
	Timestamp       time.Time        `json:"timestamp"`
}

// GenerationState is the controller-visible lifecycle of one meal-plan
// generation.
type GenerationState string

const (
	StateIdle       GenerationState = "idle"
	StateGenerating GenerationState = "generating"
	StateCompleted  GenerationState = "completed"
	StateCancelled  GenerationState = "cancelled"
	StateFailed     GenerationState = "failed"
)
