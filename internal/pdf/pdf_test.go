package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquizAI/recipies01/internal/model"
)

func ptr[T any](v T) *T { return &v }

func fullRecipe() *model.Recipe {
	return &model.Recipe{
		Title:       "Crème Brûlée “Classic”",
		Description: "Silky custard… with a crackly top",
		CuisineType: "french",
		Difficulty:  "medium",
		Servings:    4,
		PrepTime:    15,
		CookTime:    40,
		TotalTime:   55,
		Ingredients: []model.Ingredient{
			{Name: "egg yolks", Amount: 6, Category: "dairy"},
			{Name: "heavy cream", Amount: 2, Unit: "cup", Notes: ptr("cold")},
			{Name: "sugar", Amount: 0.5, Unit: "cup"},
		},
		Steps: []model.CookingStep{
			{Order: 1, Instruction: "Whisk yolks and sugar", EquipmentNeeded: []string{"bowl", "whisk"}},
			{Order: 2, Instruction: "Bake in a water bath", DurationMinutes: ptr(40), Temperature: ptr("325°F"), Tips: ptr("Centers should jiggle")},
		},
		Macros:                model.MacroNutrients{Calories: 420, ProteinG: 5, CarbsG: 30, FatG: 32, FiberG: 0, SugarG: 28},
		EquipmentNeeded:       []string{"ramekins", "torch"},
		TipsAndTricks:         []string{"Use a blowtorch 🔥"},
		StorageInstructions:   "Refrigerate up to 3 days",
		ReheatingInstructions: "Serve chilled",
		ShoppingList: []model.ShoppingItem{
			{Name: "eggs", Amount: 6, StoreSection: "Dairy & Eggs"},
			{Name: "sugar", Amount: 1, Unit: "bag", StoreSection: "Pantry"},
			{Name: "cream", Amount: 1, Unit: "pint", StoreSection: "Dairy & Eggs"},
		},
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, fullRecipe()))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "%%EOF")
	assert.Greater(t, len(out), 1000)
}

func TestRender_MinimalRecipe(t *testing.T) {
	var buf bytes.Buffer
	r := &model.Recipe{
		Title:       "Toast",
		Ingredients: []model.Ingredient{{Name: "bread", Amount: 1}},
		Steps:       []model.CookingStep{{Order: 1, Instruction: "Toast it"}},
	}
	require.NoError(t, Render(&buf, r))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRender_NilRecipe(t *testing.T) {
	err := Render(&bytes.Buffer{}, nil)
	require.Error(t, err)
}

func TestLatin1(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"• item…", "- item..."},
		{"“quoted” ‘single’", `"quoted" 'single'`},
		{"crème", "cr\xe8me"},
		{"325°F", "325\xb0F"},
		{"fire 🔥", "fire ?"},
		{"日本", "??"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, latin1(tt.in))
		})
	}
}

func TestQuantity(t *testing.T) {
	assert.Equal(t, "2 cup flour", quantity(2, "cup", "flour"))
	assert.Equal(t, "0.5 tsp salt", quantity(0.5, " tsp ", "salt"))
	assert.Equal(t, "6 eggs", quantity(6, "", "eggs"))
	assert.Equal(t, "salt to taste", quantity(0, "", "salt to taste"))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Fluffy Pancakes", "recipe_fluffy_pancakes.pdf"},
		{"  Mom's   Best! Chili ", "recipe_mom_s_best_chili.pdf"},
		{"日本", "recipe_untitled.pdf"},
		{"", "recipe_untitled.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(&model.Recipe{Title: tt.title}))
		})
	}
}
