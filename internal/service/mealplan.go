package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jusabaoth/NutriScan/internal/extract"
	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/internal/normalize"
	"github.com/Jusabaoth/NutriScan/internal/prompt"
	"github.com/Jusabaoth/NutriScan/internal/store"
	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// Gateway is the one model call the assemblers need.
type Gateway interface {
	Send(ctx context.Context, req gemini.Request) (string, error)
}

// Session is the assembler's read-only view of the running generation.
type Session interface {
	IsCancelled() bool
	NextCall() int
}

// Assembler orchestrates the six single-day generation calls and builds
// the multi-week plan. Days are generated strictly sequentially to respect
// upstream per-key rate limits.
type Assembler struct {
	gateway Gateway
	store   store.Store
	retry   RetryPolicy
	logger  *zap.Logger

	interDayDelay time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// AssemblerOption customizes an Assembler.
type AssemblerOption func(*Assembler)

// WithInterDayDelay sets the pause between successive day-label calls.
func WithInterDayDelay(d time.Duration) AssemblerOption {
	return func(a *Assembler) { a.interDayDelay = d }
}

// WithRetryDelay sets the pause before the single per-day retry.
func WithRetryDelay(d time.Duration) AssemblerOption {
	return func(a *Assembler) { a.retry.Delay = d }
}

func NewAssembler(gateway Gateway, st store.Store, logger *zap.Logger, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		gateway:       gateway,
		store:         st,
		retry:         DefaultRetryPolicy(),
		logger:        logger,
		interDayDelay: 1500 * time.Millisecond,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func planKey(userID string) string { return "mealplan:" + userID }

// Generate resolves all six day templates (real or fallback), assembles
// the calendar, and persists the finished plan as one unit. A cancelled
// session terminates the whole generation; no fallback is substituted
// after cancellation and nothing partial is ever persisted.
func (a *Assembler) Generate(ctx context.Context, session Session, userID string, prefs model.Preferences, targets model.NutritionTargets) (*model.MealPlan, error) {
	templates := make([]model.DayTemplate, 0, len(model.DayLabels))

	for i, label := range model.DayLabels {
		if session.IsCancelled() {
			return nil, ErrCancelled
		}
		if i > 0 {
			if err := a.sleep(ctx, a.interDayDelay); err != nil {
				return nil, a.mapCtxErr(session, err)
			}
		}

		tpl, err := a.generateDay(ctx, session, label, prefs, targets)
		if err != nil {
			if session.IsCancelled() {
				return nil, ErrCancelled
			}
			a.logger.Warn("day generation failed twice, using fallback template",
				zap.String("label", string(label)), zap.Error(err))
			tpl = FallbackTemplate(label, targets)
			recomputeMeals(tpl.Meals)
		}
		templates = append(templates, tpl)
	}

	if session.IsCancelled() {
		return nil, ErrCancelled
	}

	plan := a.buildPlan(userID, prefs, targets, templates)
	if err := store.SaveJSON(ctx, a.store, planKey(userID), plan); err != nil {
		return nil, fmt.Errorf("failed to persist meal plan: %w", err)
	}
	return plan, nil
}

func (a *Assembler) generateDay(ctx context.Context, session Session, label model.DayLabel, prefs model.Preferences, targets model.NutritionTargets) (model.DayTemplate, error) {
	var tpl model.DayTemplate

	err := a.retry.Do(ctx, func(ctx context.Context) error {
		call := session.NextCall()
		a.logger.Info("generating day template",
			zap.String("label", string(label)), zap.Int("call", call))

		text, cfg := prompt.Day(label, prefs, targets)
		raw, err := a.gateway.Send(ctx, gemini.NewTextRequest(text, cfg))
		if err != nil {
			return err
		}

		candidate, err := extract.Object(raw)
		if err != nil {
			return err
		}

		normalized, err := normalize.Day(candidate, label)
		if err != nil {
			return err
		}
		tpl = *normalized
		return nil
	})
	if err != nil {
		return model.DayTemplate{}, err
	}

	recomputeMeals(tpl.Meals)
	return tpl, nil
}

func (a *Assembler) buildPlan(userID string, prefs model.Preferences, targets model.NutritionTargets, templates []model.DayTemplate) *model.MealPlan {
	byLabel := make(map[model.DayLabel]model.DayTemplate, len(templates))
	for _, tpl := range templates {
		byLabel[tpl.Label] = tpl
	}

	weeks := prefs.DurationWeeks
	if weeks < 1 {
		weeks = 1
	}

	plan := &model.MealPlan{
		ID:          uuid.NewString(),
		UserID:      userID,
		Preferences: prefs,
		Targets:     targets,
		Templates:   templates,
		CreatedAt:   time.Now(),
	}

	for w := 1; w <= weeks; w++ {
		mapping := DayPlanMapping(w)
		week := model.Week{Week: w}
		for d := 0; d < 7; d++ {
			tpl := byLabel[mapping[d]]
			day := model.Day{
				Day:      (w-1)*7 + d + 1,
				Template: tpl.Label,
				Meals:    cloneMeals(tpl.Meals),
			}
			recomputeDay(&day)
			week.Days = append(week.Days, day)
		}
		plan.Weeks = append(plan.Weeks, week)
	}
	return plan
}

// mapCtxErr distinguishes a user cancellation from other context failures
// at a suspension point.
func (a *Assembler) mapCtxErr(session Session, err error) error {
	if session.IsCancelled() {
		return ErrCancelled
	}
	return err
}

func cloneMeals(meals []model.Meal) []model.Meal {
	out := make([]model.Meal, len(meals))
	copy(out, meals)
	for i := range out {
		items := make([]model.MealItem, len(meals[i].Items))
		copy(items, meals[i].Items)
		out[i].Items = items
	}
	return out
}

// recomputeMeals rolls item macros up into each meal. Upstream-declared
// totals are never trusted.
func recomputeMeals(meals []model.Meal) {
	for i := range meals {
		meals[i].Calories, meals[i].Protein, meals[i].Carbs, meals[i].Fat = 0, 0, 0, 0
		for _, item := range meals[i].Items {
			meals[i].Calories += item.Calories
			meals[i].Protein += item.Protein
			meals[i].Carbs += item.Carbs
			meals[i].Fat += item.Fat
		}
	}
}

func recomputeDay(day *model.Day) {
	recomputeMeals(day.Meals)
	day.TotalCalories, day.TotalProtein, day.TotalCarbs, day.TotalFat = 0, 0, 0, 0
	for _, meal := range day.Meals {
		day.TotalCalories += meal.Calories
		day.TotalProtein += meal.Protein
		day.TotalCarbs += meal.Carbs
		day.TotalFat += meal.Fat
	}
}

// Load returns the persisted plan for a user, if one exists.
func (a *Assembler) Load(ctx context.Context, userID string) (*model.MealPlan, bool, error) {
	var plan model.MealPlan
	found, err := store.LoadJSON(ctx, a.store, planKey(userID), &plan)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &plan, true, nil
}
