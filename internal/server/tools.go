package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func csvProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Dataset as CSV text with a Name,Diameter,Circumference header row",
	}
}

func renderProperties(props map[string]interface{}) map[string]interface{} {
	props["format"] = map[string]interface{}{
		"type":        "string",
		"description": "Output kind: raster or vector. An encoding name (png, jpeg, gif, svg, svgz) is also accepted.",
		"default":     "raster",
	}
	props["encoding"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"png", "jpeg", "gif", "svg", "svgz"},
		"description": "Byte encoding. Defaults to png for raster and svg for vector.",
	}
	props["width"] = map[string]interface{}{
		"type":        "integer",
		"description": "Image width in pixels",
		"default":     800,
	}
	props["height"] = map[string]interface{}{
		"type":        "integer",
		"description": "Image height in pixels",
		"default":     600,
	}
	return props
}

func fitProperties(props map[string]interface{}) map[string]interface{} {
	props["tier"] = map[string]interface{}{
		"type":        "integer",
		"enum":        []int{1, 2, 3},
		"description": "Model tier: 1 fixed effects only, 2 random intercept per specimen, 3 random intercept and slope per specimen",
		"default":     1,
	}
	props["allow_mixed_effects"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Attempt the mixed-effects model for tiers 2 and 3. The least-squares line is returned either way.",
		"default":     false,
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        ToolCapabilities,
			Description: "Report whether mixed-effects models can be fitted in this environment and which engine is used.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        ToolFit,
			Description: "Fit Circumference against Diameter and return the result as one pipe-delimited line: OK|message|slope|intercept. The slope is the estimate of pi.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": fitProperties(map[string]interface{}{"csv": csvProperty()}),
				"required":   []string{"csv"},
			},
		},
		{
			Name:        ToolRender,
			Description: "Draw the measurements as a scatter plot coloured by specimen name, optionally with a regression line, and return the image as base64.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": renderProperties(map[string]interface{}{
					"csv": csvProperty(),
					"slope": map[string]interface{}{
						"type":        "number",
						"description": "Slope of the line to draw. Requires intercept.",
					},
					"intercept": map[string]interface{}{
						"type":        "number",
						"description": "Intercept of the line to draw. Requires slope.",
					},
				}),
				"required": []string{"csv"},
			},
		},
		{
			Name:        ToolFitAndRender,
			Description: "Fit the dataset and plot it with the fitted line in one call. A failed fit still returns a points-only plot.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": renderProperties(fitProperties(map[string]interface{}{"csv": csvProperty()})),
				"required":   []string{"csv"},
			},
		},
	}
}
