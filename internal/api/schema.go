package api

// suggestionSchema constrains the reconciliation suggestion body.
func suggestionSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"adjustments"},
		"properties": map[string]any{
			"adjustments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"item_id"},
					"properties": map[string]any{
						"item_id": map[string]any{"type": "string", "format": "uuid"},
						"reason":  map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// exchangeRatesSchema constrains the exchange-rate body. Rates may arrive as
// JSON numbers or decimal strings.
func exchangeRatesSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"base", "rates"},
		"properties": map[string]any{
			"base": map[string]any{"type": "string", "pattern": `^[A-Za-z]{3}$`},
			"rates": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"oneOf": []any{
						map[string]any{"type": "number", "exclusiveMinimum": 0},
						map[string]any{"type": "string", "pattern": `^\d+(\.\d+)?$`},
					},
				},
			},
			"timestamp": map[string]any{},
		},
	}
}
