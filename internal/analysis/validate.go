package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/pkg/models"
)

var responseSchema = AnalysisSchema()

// dateLayouts are the ISO-8601 forms accepted for candle and projection dates.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// Decode turns the engine's raw answer into an AnalysisResult. Every
// required field of AnalysisSchema must be present with the right type,
// enums must match and bounded numbers must be in range. There is no
// partial recovery: any violation yields a validation error.
func Decode(text string) (*models.AnalysisResult, error) {
	body := llm.StripFences(text)
	if body == "" {
		return nil, invalidResponse(fmt.Errorf("empty response"))
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, invalidResponse(fmt.Errorf("parse: %w", err))
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, invalidResponse(fmt.Errorf("response is %T, want object", doc))
	}

	normalize(obj)
	if err := check("", responseSchema, obj); err != nil {
		return nil, invalidResponse(err)
	}
	if err := checkDates(obj); err != nil {
		return nil, invalidResponse(err)
	}

	clean, err := json.Marshal(obj)
	if err != nil {
		return nil, invalidResponse(err)
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(clean, &res); err != nil {
		return nil, invalidResponse(fmt.Errorf("decode: %w", err))
	}
	return &res, nil
}

// normalize folds harmless spelling variants of the enum fields the engine
// tends to get wrong ("Strong Buy", "MEDIUM").
func normalize(obj map[string]any) {
	for _, key := range []string{"signal", "riskLevel"} {
		if s, ok := obj[key].(string); ok {
			s = strings.ToLower(strings.TrimSpace(s))
			s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
			obj[key] = s
		}
	}
	if s, ok := obj["timeframe"].(string); ok {
		obj["timeframe"] = strings.ToLower(strings.TrimSpace(s))
	}
	if points, ok := obj["priceChartData"].([]any); ok {
		for _, p := range points {
			if m, ok := p.(map[string]any); ok {
				if t, ok := m["type"].(string); ok {
					m["type"] = strings.ToLower(strings.TrimSpace(t))
				}
			}
		}
	}
}

// check validates v against s. Optional properties are only checked when
// present and non-null.
func check(path string, s *llm.JSONSchema, v any) error {
	switch s.Type {
	case "object":
		m, ok := v.(map[string]any)
		if !ok {
			return typeErr(path, s.Type, v)
		}
		for _, name := range s.Required {
			if val, ok := m[name]; !ok || val == nil {
				return fmt.Errorf("%s: missing required field", join(path, name))
			}
		}
		for name, prop := range s.Properties {
			val, ok := m[name]
			if !ok || val == nil {
				continue
			}
			if err := check(join(path, name), prop, val); err != nil {
				return err
			}
		}
	case "array":
		items, ok := v.([]any)
		if !ok {
			return typeErr(path, s.Type, v)
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range items {
			if err := check(fmt.Sprintf("%s[%d]", path, i), s.Items, item); err != nil {
				return err
			}
		}
	case "string":
		str, ok := v.(string)
		if !ok {
			return typeErr(path, s.Type, v)
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			return fmt.Errorf("%s: %q is not one of %v", path, str, s.Enum)
		}
	case "number", "integer":
		n, ok := v.(float64)
		if !ok {
			return typeErr(path, s.Type, v)
		}
		if s.Type == "integer" && n != math.Trunc(n) {
			return fmt.Errorf("%s: %v is not an integer", path, n)
		}
		if s.Minimum != nil && n < *s.Minimum {
			return fmt.Errorf("%s: %v below minimum %v", path, n, *s.Minimum)
		}
		if s.Maximum != nil && n > *s.Maximum {
			return fmt.Errorf("%s: %v above maximum %v", path, n, *s.Maximum)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return typeErr(path, s.Type, v)
		}
	}
	return nil
}

func checkDates(obj map[string]any) error {
	for _, key := range []string{"candlestickData", "priceChartData"} {
		items, _ := obj[key].([]any)
		for i, it := range items {
			m, _ := it.(map[string]any)
			d, _ := m["date"].(string)
			if !isISODate(d) {
				return fmt.Errorf("%s[%d].date: %q is not an ISO-8601 date", key, i, d)
			}
		}
	}
	return nil
}

func isISODate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func typeErr(path, want string, v any) error {
	return fmt.Errorf("%s: got %T, want %s", path, v, want)
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
