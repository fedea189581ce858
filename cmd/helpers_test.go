package main

import (
	"context"
	"sync"
	"time"

	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/pipeline"
)

func sampleRecipe(title string) *model.Recipe {
	mins := 5
	return &model.Recipe{
		Title:       title,
		Description: "Fluffy and quick.",
		CuisineType: "American",
		Difficulty:  "easy",
		Servings:    4,
		PrepTime:    10,
		CookTime:    15,
		TotalTime:   25,
		Ingredients: []model.Ingredient{
			{Name: "flour", Amount: 1.5, Unit: "cup", Category: "baking"},
			{Name: "milk", Amount: 1.25, Unit: "cup", Category: "dairy"},
		},
		Steps: []model.CookingStep{
			{Order: 1, Instruction: "Whisk everything together.", EquipmentNeeded: []string{}},
			{Order: 2, Instruction: "Cook on a hot griddle.", DurationMinutes: &mins, EquipmentNeeded: []string{"griddle"}},
		},
		Macros:        model.MacroNutrients{Calories: 220, ProteinG: 7, CarbsG: 30, FatG: 8},
		TipsAndTricks: []string{"Rest the batter."},
		ShoppingList: []model.ShoppingItem{
			{Name: "flour", Amount: 1.5, Unit: "cup", StoreSection: "Baking"},
			{Name: "milk", Amount: 1.25, Unit: "cup", StoreSection: "Dairy"},
		},
		SourceURL: "https://www.instagram.com/p/abc/",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// fakeExtractor returns canned results keyed by URL.
type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]*pipeline.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeExtractor) Extract(_ context.Context, u string) (*pipeline.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, u)
	f.mu.Unlock()
	if err, ok := f.errs[u]; ok {
		return nil, err
	}
	if res, ok := f.results[u]; ok {
		return res, nil
	}
	return nil, &pipeline.Error{Code: pipeline.CodeExtraction, Message: pipeline.MsgNoContent}
}
