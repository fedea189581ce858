package parser

import (
	"strings"

	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/pkg/anthropic"
)

const systemPrompt = "Extract detailed recipe information including ingredients, steps, and nutritional information. " +
	"If any information is missing, make reasonable estimates based on similar recipes."

// toolName is the single tool the model is forced to call.
const toolName = "record_recipe"

// buildUserContent renders the caption and, when present, the transcription.
func buildUserContent(c model.AugmentedContent) string {
	var b strings.Builder
	b.WriteString("Extract recipe information from the following content:\nText: ")
	b.WriteString(c.TextContent)
	if c.HasTranscription() {
		b.WriteString("\nVideo Transcription: ")
		b.WriteString(*c.Transcription)
	}
	return b.String()
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func num(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "minimum": 0, "description": desc}
}

func strList(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

func object(props map[string]any, required ...string) map[string]any {
	o := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}

func shoppingItemSchema() map[string]any {
	return object(map[string]any{
		"name":          str("Item name as bought"),
		"amount":        num("Quantity to buy"),
		"unit":          str("Unit of purchase"),
		"category":      str("Ingredient category"),
		"store_section": str("Grocery store section, e.g. Produce, Dairy & Eggs"),
	}, "name", "amount", "unit")
}

// recipeTool describes the Recipe JSON shape. Fields the pipeline fills in
// itself (source_url, video_transcription, thumbnail_url, created_at) are
// left out.
func recipeTool() anthropic.Tool {
	ingredient := object(map[string]any{
		"name":     str("Ingredient name"),
		"amount":   num("Numeric quantity; convert fractions to decimals"),
		"unit":     str("Unit such as cup, tbsp, g; empty for countable items"),
		"notes":    str("Preparation notes, e.g. finely chopped"),
		"category": str("Category: produce, dairy, meat, seafood, pantry, spices, bakery, frozen, beverages"),
		"macro_contribution": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "number"},
			"description":          "Approximate calories, protein_g, carbs_g, fat_g this ingredient contributes",
		},
		"shopping_info": shoppingItemSchema(),
	}, "name", "amount", "unit", "category")

	step := object(map[string]any{
		"order":            map[string]any{"type": "integer", "minimum": 1, "description": "1-based position"},
		"instruction":      str("What to do"),
		"duration_minutes": integer("Minutes this step takes"),
		"temperature":      str("Temperature with unit, e.g. 350°F"),
		"tips":             str("Helpful tip for this step"),
		"equipment_needed": strList("Equipment used in this step"),
	}, "order", "instruction")

	macros := object(map[string]any{
		"calories":           num("Calories per serving"),
		"protein_g":          num("Protein grams per serving"),
		"carbs_g":            num("Carbohydrate grams per serving"),
		"fat_g":              num("Fat grams per serving"),
		"fiber_g":            num("Fiber grams per serving"),
		"sugar_g":            num("Sugar grams per serving"),
		"saturated_fat_g":    num("Saturated fat grams per serving"),
		"protein_percentage": num("Share of calories from protein, 0-100"),
		"carbs_percentage":   num("Share of calories from carbohydrates, 0-100"),
		"fat_percentage":     num("Share of calories from fat, 0-100"),
	}, "calories", "protein_g", "carbs_g", "fat_g")

	props := map[string]any{
		"title":                  str("Recipe title"),
		"description":            str("One or two sentence description"),
		"cuisine_type":           str("Cuisine, e.g. Italian"),
		"difficulty":             map[string]any{"type": "string", "enum": []string{"easy", "medium", "hard"}},
		"servings":               integer("Number of servings"),
		"prep_time":              integer("Preparation minutes"),
		"cook_time":              integer("Cooking minutes"),
		"total_time":             integer("Total minutes"),
		"ingredients":            map[string]any{"type": "array", "items": ingredient, "minItems": 1},
		"steps":                  map[string]any{"type": "array", "items": step, "minItems": 1},
		"macros":                 macros,
		"equipment_needed":       strList("All equipment needed"),
		"tags":                   strList("Short tags such as vegetarian, breakfast"),
		"tips_and_tricks":        strList("General tips"),
		"variations":             strList("Suggested variations"),
		"storage_instructions":   str("How to store leftovers"),
		"reheating_instructions": str("How to reheat"),
		"calories_per_serving":   num("Calories per serving"),
		"cost_estimate":          num("Estimated total cost in USD"),
		"shopping_list":          map[string]any{"type": "array", "items": shoppingItemSchema()},
	}

	return anthropic.Tool{
		Name:        toolName,
		Description: "Record the structured recipe extracted from the post.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required": []string{
				"title", "description", "servings", "prep_time", "cook_time", "total_time",
				"ingredients", "steps", "macros",
			},
		},
	}
}
