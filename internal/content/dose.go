package content

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
)

// doseFuncs are available inside dose texts. Amounts are rounded to two decimals.
//
//	{{perKg 0.01}}        weight × 0.01
//	{{perKgMax 0.01 0.5}} weight × 0.01, at most 0.5
func doseFuncs(weightKg float64) template.FuncMap {
	return template.FuncMap{
		"perKg": func(perKg float64) string {
			return formatAmount(weightKg * perKg)
		},
		"perKgMax": func(perKg, maxAmount float64) string {
			return formatAmount(math.Min(weightKg*perKg, maxAmount))
		},
	}
}

// RenderDose expands the weight dependent parts of a dose text for weightKg.
// Texts without template actions are returned unchanged.
func RenderDose(text string, weightKg float64) (string, error) {
	tmpl, err := parseDose(text, weightKg)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	data := struct{ Weight string }{Weight: formatAmount(weightKg)}
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to render dose text: %w", err)
	}
	return out.String(), nil
}

func parseDose(text string, weightKg float64) (*template.Template, error) {
	tmpl, err := template.New("dose").Funcs(doseFuncs(weightKg)).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid dose text: %w", err)
	}
	return tmpl, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
