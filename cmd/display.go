package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/SquizAI/recipies01/internal/model"
)

// writeRecipeText prints a human-readable summary of r.
func writeRecipeText(w io.Writer, r *model.Recipe) {
	fmt.Fprintln(w, r.Title)
	fmt.Fprintln(w, strings.Repeat("=", len([]rune(r.Title))))
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n", r.Description)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTable(
		[]string{"Cuisine", "Difficulty", "Servings", "Prep", "Cook", "Total"},
		[][]string{{
			orDash(r.CuisineType),
			orDash(r.Difficulty),
			strconv.Itoa(r.Servings),
			minutes(r.PrepTime),
			minutes(r.CookTime),
			minutes(r.TotalTime),
		}},
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))

	fmt.Fprintln(w, "\nIngredients")
	rows := make([][]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		notes := ""
		if ing.Notes != nil {
			notes = *ing.Notes
		}
		rows = append(rows, []string{formatAmount(ing.Amount), ing.Unit, ing.Name, notes})
	}
	fmt.Fprintln(w, renderTable([]string{"Amount", "Unit", "Ingredient", "Notes"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))

	fmt.Fprintln(w, "\nInstructions")
	for _, s := range r.Steps {
		fmt.Fprintf(w, "%d. %s\n", s.Order, s.Instruction)
		var extra []string
		if s.DurationMinutes != nil {
			extra = append(extra, minutes(*s.DurationMinutes))
		}
		if s.Temperature != nil && *s.Temperature != "" {
			extra = append(extra, *s.Temperature)
		}
		if len(extra) > 0 {
			fmt.Fprintf(w, "   (%s)\n", strings.Join(extra, ", "))
		}
		if s.Tips != nil && *s.Tips != "" {
			fmt.Fprintf(w, "   Tip: %s\n", *s.Tips)
		}
	}

	m := r.Macros
	fmt.Fprintln(w, "\nNutrition (per serving)")
	fmt.Fprintln(w, renderTable(
		[]string{"Calories", "Protein", "Carbs", "Fat"},
		[][]string{{
			strconv.FormatFloat(math.Round(m.Calories), 'f', -1, 64),
			fmt.Sprintf("%sg", formatAmount(m.ProteinG)),
			fmt.Sprintf("%sg", formatAmount(m.CarbsG)),
			fmt.Sprintf("%sg", formatAmount(m.FatG)),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))

	if len(r.TipsAndTricks) > 0 {
		fmt.Fprintln(w, "\nTips")
		for _, t := range r.TipsAndTricks {
			fmt.Fprintf(w, "- %s\n", t)
		}
	}

	if len(r.ShoppingList) > 0 {
		fmt.Fprintln(w, "\nShopping list")
		sections, groups := r.ShoppingSections()
		var rows [][]string
		for _, sec := range sections {
			for _, item := range groups[sec] {
				rows = append(rows, []string{sec, item.Name, strings.TrimSpace(formatAmount(item.Amount) + " " + item.Unit)})
			}
		}
		fmt.Fprintln(w, renderTable([]string{"Section", "Item", "Quantity"}, rows, nil))
	}

	if r.SourceURL != "" {
		fmt.Fprintf(w, "\nSource: %s\n", r.SourceURL)
	}
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func minutes(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d min", n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
