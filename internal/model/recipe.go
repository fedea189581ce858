package model

import (
	"sort"
	"strings"
	"time"
)

// MacroNutrients holds per-serving nutrition. The three percentage fields are
// expected to sum to roughly 100 but are not enforced here.
type MacroNutrients struct {
	Calories          float64 `json:"calories" validate:"gte=0"`
	ProteinG          float64 `json:"protein_g" validate:"gte=0"`
	CarbsG            float64 `json:"carbs_g" validate:"gte=0"`
	FatG              float64 `json:"fat_g" validate:"gte=0"`
	FiberG            float64 `json:"fiber_g" validate:"gte=0"`
	SugarG            float64 `json:"sugar_g" validate:"gte=0"`
	SaturatedFatG     float64 `json:"saturated_fat_g" validate:"gte=0"`
	ProteinPercentage float64 `json:"protein_percentage" validate:"gte=0,lte=100"`
	CarbsPercentage   float64 `json:"carbs_percentage" validate:"gte=0,lte=100"`
	FatPercentage     float64 `json:"fat_percentage" validate:"gte=0,lte=100"`
}

// ShoppingItem is a single line on a shopping list.
type ShoppingItem struct {
	Name         string  `json:"name" validate:"required"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	Unit         string  `json:"unit"`
	Category     string  `json:"category"`
	StoreSection string  `json:"store_section"`
}

// Ingredient is one ingredient line of a recipe.
type Ingredient struct {
	Name              string             `json:"name" validate:"required"`
	Amount            float64            `json:"amount" validate:"gte=0"`
	Unit              string             `json:"unit"`
	Notes             *string            `json:"notes,omitempty"`
	Category          string             `json:"category"`
	MacroContribution map[string]float64 `json:"macro_contribution,omitempty"`
	ShoppingInfo      *ShoppingItem      `json:"shopping_info,omitempty" validate:"omitempty"`
}

// CookingStep is one instruction. Order is 1-based and unique within a recipe.
type CookingStep struct {
	Order           int      `json:"order" validate:"gte=1"`
	Instruction     string   `json:"instruction" validate:"required"`
	DurationMinutes *int     `json:"duration_minutes,omitempty" validate:"omitempty,gte=0"`
	Temperature     *string  `json:"temperature,omitempty"`
	Tips            *string  `json:"tips,omitempty"`
	EquipmentNeeded []string `json:"equipment_needed"`
}

// Recipe is the durable output of the extraction pipeline. Its JSON shape is
// the contract shared by the cache, the HTTP API and the PDF renderer.
type Recipe struct {
	Title                 string         `json:"title" validate:"required"`
	Description           string         `json:"description"`
	CuisineType           string         `json:"cuisine_type"`
	Difficulty            string         `json:"difficulty"`
	Servings              int            `json:"servings" validate:"gte=0"`
	PrepTime              int            `json:"prep_time" validate:"gte=0"`
	CookTime              int            `json:"cook_time" validate:"gte=0"`
	TotalTime             int            `json:"total_time" validate:"gte=0"`
	Ingredients           []Ingredient   `json:"ingredients" validate:"required,min=1,dive"`
	Steps                 []CookingStep  `json:"steps" validate:"required,min=1,dive"`
	Macros                MacroNutrients `json:"macros"`
	EquipmentNeeded       []string       `json:"equipment_needed"`
	Tags                  []string       `json:"tags"`
	TipsAndTricks         []string       `json:"tips_and_tricks"`
	Variations            []string       `json:"variations"`
	StorageInstructions   string         `json:"storage_instructions"`
	ReheatingInstructions string         `json:"reheating_instructions"`
	CaloriesPerServing    float64        `json:"calories_per_serving" validate:"gte=0"`
	CostEstimate          float64        `json:"cost_estimate" validate:"gte=0"`
	ShoppingList          []ShoppingItem `json:"shopping_list" validate:"dive"`
	SourceURL             string         `json:"source_url"`
	VideoTranscription    *string        `json:"video_transcription,omitempty"`
	ThumbnailURL          *string        `json:"thumbnail_url,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
}

// NormalizeSteps stable-sorts steps by Order and renumbers them 1..n so the
// sequence has no gaps or duplicates.
func (r *Recipe) NormalizeSteps() {
	sort.SliceStable(r.Steps, func(i, j int) bool {
		return r.Steps[i].Order < r.Steps[j].Order
	})
	for i := range r.Steps {
		r.Steps[i].Order = i + 1
		if r.Steps[i].EquipmentNeeded == nil {
			r.Steps[i].EquipmentNeeded = []string{}
		}
	}
}

// FillEmptySlices replaces nil slices with empty ones so the JSON contract
// always carries arrays rather than nulls.
func (r *Recipe) FillEmptySlices() {
	if r.EquipmentNeeded == nil {
		r.EquipmentNeeded = []string{}
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.TipsAndTricks == nil {
		r.TipsAndTricks = []string{}
	}
	if r.Variations == nil {
		r.Variations = []string{}
	}
	if r.ShoppingList == nil {
		r.ShoppingList = []ShoppingItem{}
	}
}

// storeSections maps ingredient categories to grocery store sections.
var storeSections = map[string]string{
	"produce":    "Produce",
	"vegetable":  "Produce",
	"vegetables": "Produce",
	"fruit":      "Produce",
	"fruits":     "Produce",
	"herb":       "Produce",
	"herbs":      "Produce",
	"dairy":      "Dairy & Eggs",
	"egg":        "Dairy & Eggs",
	"eggs":       "Dairy & Eggs",
	"cheese":     "Dairy & Eggs",
	"meat":       "Meat & Seafood",
	"poultry":    "Meat & Seafood",
	"protein":    "Meat & Seafood",
	"seafood":    "Meat & Seafood",
	"fish":       "Meat & Seafood",
	"bakery":     "Bakery",
	"bread":      "Bakery",
	"grain":      "Pantry",
	"grains":     "Pantry",
	"pantry":     "Pantry",
	"baking":     "Pantry",
	"pasta":      "Pantry",
	"canned":     "Pantry",
	"condiment":  "Pantry",
	"condiments": "Pantry",
	"sauce":      "Pantry",
	"oil":        "Pantry",
	"spice":      "Spices & Seasonings",
	"spices":     "Spices & Seasonings",
	"seasoning":  "Spices & Seasonings",
	"frozen":     "Frozen",
	"beverage":   "Beverages",
	"beverages":  "Beverages",
}

// StoreSectionFor returns the store section for an ingredient category.
// Unknown categories map to "Other".
func StoreSectionFor(category string) string {
	if s, ok := storeSections[strings.ToLower(strings.TrimSpace(category))]; ok {
		return s
	}
	return "Other"
}

// DeriveShoppingList builds a shopping list from the recipe's ingredients.
// Entries with the same name and unit are merged by summing amounts.
func (r *Recipe) DeriveShoppingList() []ShoppingItem {
	type key struct{ name, unit string }
	idx := make(map[key]int)
	var list []ShoppingItem

	for _, ing := range r.Ingredients {
		item := ShoppingItem{
			Name:     ing.Name,
			Amount:   ing.Amount,
			Unit:     ing.Unit,
			Category: ing.Category,
		}
		if ing.ShoppingInfo != nil {
			item = *ing.ShoppingInfo
		}
		if item.StoreSection == "" {
			item.StoreSection = StoreSectionFor(item.Category)
		}

		k := key{strings.ToLower(strings.TrimSpace(item.Name)), strings.ToLower(strings.TrimSpace(item.Unit))}
		if i, ok := idx[k]; ok {
			list[i].Amount += item.Amount
			continue
		}
		idx[k] = len(list)
		list = append(list, item)
	}
	return list
}

// ShoppingSections groups the shopping list by store section. Sections are
// returned sorted by name; items keep their list order.
func (r *Recipe) ShoppingSections() ([]string, map[string][]ShoppingItem) {
	groups := make(map[string][]ShoppingItem)
	for _, item := range r.ShoppingList {
		section := item.StoreSection
		if section == "" {
			section = "Other"
		}
		groups[section] = append(groups[section], item)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, groups
}
