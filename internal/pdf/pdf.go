// Package pdf renders a recipe as a printable PDF document.
package pdf

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"

	"github.com/SquizAI/recipies01/internal/model"
)

const (
	font       = "Helvetica"
	lineHeight = 7.0
)

var titleCase = cases.Title(language.English)

// Render writes r as a PDF to w.
func Render(w io.Writer, r *model.Recipe) error {
	if r == nil {
		return eris.New("pdf: nil recipe")
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(true, 15)
	doc.SetTitle(latin1(r.Title), false)
	doc.AddPage()

	// Title and description.
	doc.SetFont(font, "B", 24)
	doc.MultiCell(0, 10, latin1(r.Title), "", "C", false)
	doc.Ln(5)
	if r.Description != "" {
		doc.SetFont(font, "", 12)
		doc.MultiCell(0, lineHeight, latin1(r.Description), "", "L", false)
		doc.Ln(5)
	}

	heading(doc, "Recipe Information")
	line(doc, "Cuisine: "+titleCase.String(r.CuisineType))
	line(doc, "Difficulty: "+titleCase.String(r.Difficulty))
	line(doc, fmt.Sprintf("Prep Time: %d minutes", r.PrepTime))
	line(doc, fmt.Sprintf("Cook Time: %d minutes", r.CookTime))
	line(doc, fmt.Sprintf("Total Time: %d minutes", r.TotalTime))
	line(doc, fmt.Sprintf("Servings: %d", r.Servings))
	doc.Ln(5)

	m := r.Macros
	heading(doc, "Nutrition (per serving)")
	line(doc, fmt.Sprintf("Calories: %.0f", m.Calories))
	line(doc, fmt.Sprintf("Protein: %.1fg (%.0f%%)", m.ProteinG, m.ProteinPercentage))
	line(doc, fmt.Sprintf("Carbs: %.1fg (%.0f%%)", m.CarbsG, m.CarbsPercentage))
	line(doc, fmt.Sprintf("Fat: %.1fg (%.0f%%)", m.FatG, m.FatPercentage))
	if m.FiberG > 0 {
		line(doc, fmt.Sprintf("Fiber: %.1fg", m.FiberG))
	}
	if m.SugarG > 0 {
		line(doc, fmt.Sprintf("Sugar: %.1fg", m.SugarG))
	}

	doc.AddPage()
	heading(doc, "Ingredients")
	for _, ing := range r.Ingredients {
		text := "- " + quantity(ing.Amount, ing.Unit, ing.Name)
		if ing.Notes != nil && *ing.Notes != "" {
			text += " (" + *ing.Notes + ")"
		}
		para(doc, text)
	}
	doc.Ln(5)

	if len(r.EquipmentNeeded) > 0 {
		heading(doc, "Equipment Needed")
		for _, item := range r.EquipmentNeeded {
			line(doc, "- "+item)
		}
		doc.Ln(5)
	}

	doc.AddPage()
	heading(doc, "Instructions")
	for _, step := range r.Steps {
		text := fmt.Sprintf("%d. %s", step.Order, step.Instruction)
		if step.DurationMinutes != nil && *step.DurationMinutes > 0 {
			text += fmt.Sprintf(" (%d min)", *step.DurationMinutes)
		}
		if step.Temperature != nil && *step.Temperature != "" {
			text += " at " + *step.Temperature
		}
		para(doc, text)
		if step.Tips != nil && *step.Tips != "" {
			note(doc, "Tip: "+*step.Tips)
		}
		if len(step.EquipmentNeeded) > 0 {
			note(doc, "Equipment: "+strings.Join(step.EquipmentNeeded, ", "))
		}
		doc.Ln(2)
	}

	if len(r.TipsAndTricks) > 0 {
		doc.AddPage()
		heading(doc, "Tips & Tricks")
		for _, tip := range r.TipsAndTricks {
			para(doc, "- "+tip)
		}
		doc.Ln(5)
	}

	if r.StorageInstructions != "" || r.ReheatingInstructions != "" {
		heading(doc, "Storage & Reheating")
		para(doc, "Storage: "+r.StorageInstructions)
		para(doc, "Reheating: "+r.ReheatingInstructions)
		doc.Ln(5)
	}

	if len(r.ShoppingList) > 0 {
		doc.AddPage()
		heading(doc, "Shopping List")
		sections, groups := r.ShoppingSections()
		for _, section := range sections {
			doc.SetFont(font, "B", 12)
			doc.CellFormat(0, lineHeight, latin1(section), "", 1, "L", false, 0, "")
			doc.SetFont(font, "", 12)
			for _, item := range groups[section] {
				line(doc, "- "+quantity(item.Amount, item.Unit, item.Name))
			}
			doc.Ln(2)
		}
	}

	if err := doc.Output(w); err != nil {
		return eris.Wrap(err, "pdf: output")
	}
	return nil
}

func heading(doc *gofpdf.Fpdf, text string) {
	doc.SetFont(font, "B", 14)
	doc.CellFormat(0, 10, latin1(text), "", 1, "L", false, 0, "")
	doc.SetFont(font, "", 12)
}

func line(doc *gofpdf.Fpdf, text string) {
	doc.CellFormat(0, lineHeight, latin1(text), "", 1, "L", false, 0, "")
}

func para(doc *gofpdf.Fpdf, text string) {
	doc.MultiCell(0, lineHeight, latin1(text), "", "L", false)
}

func note(doc *gofpdf.Fpdf, text string) {
	doc.SetFont(font, "I", 10)
	doc.MultiCell(0, 6, latin1(text), "", "L", false)
	doc.SetFont(font, "", 12)
}

// quantity renders "2 cup flour", dropping empty parts.
func quantity(amount float64, unit, name string) string {
	parts := make([]string, 0, 3)
	if amount > 0 {
		parts = append(parts, strconv.FormatFloat(amount, 'f', -1, 64))
	}
	if unit = strings.TrimSpace(unit); unit != "" {
		parts = append(parts, unit)
	}
	parts = append(parts, strings.TrimSpace(name))
	return strings.Join(parts, " ")
}

var typographic = strings.NewReplacer(
	"•", "-",
	"…", "...",
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
	"–", "-", "—", "-",
	" ", " ",
)

// latin1 maps text to the single-byte encoding the core PDF fonts use.
// Runes outside Latin-1 become '?'.
func latin1(s string) string {
	s = typographic.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Filename returns "recipe_<slug>.pdf" for r.
func Filename(r *model.Recipe) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(r.Title), "_"), "_")
	if slug == "" {
		slug = "untitled"
	}
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "_")
	}
	return "recipe_" + slug + ".pdf"
}
