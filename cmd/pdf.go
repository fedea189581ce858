package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/pdf"
)

var pdfOutput string

var pdfCmd = &cobra.Command{
	Use:   "pdf <recipe.json>",
	Short: "Render a recipe JSON file as a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := readRecipeFile(args[0])
		if err != nil {
			return err
		}

		out := pdfOutput
		if out == "" {
			out = pdf.Filename(rec)
		}
		if err := writePDFFile(out, rec); err != nil {
			return err
		}
		zap.L().Info("pdf written", zap.String("path", out), zap.String("title", rec.Title))
		return nil
	},
}

func init() {
	pdfCmd.Flags().StringVarP(&pdfOutput, "output", "o", "", "output path (default recipe_<title>.pdf)")
	rootCmd.AddCommand(pdfCmd)
}

// readRecipeFile loads and validates a recipe JSON file.
func readRecipeFile(path string) (*model.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read recipe file")
	}
	var rec model.Recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "decode recipe file")
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}
