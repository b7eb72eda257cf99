package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func chipSizeProperties(props map[string]interface{}) map[string]interface{} {
	props["chip_height"] = map[string]interface{}{
		"type":        "integer",
		"description": "Chip height in pixels. Defaults to the configured chip height",
	}
	props["chip_width"] = map[string]interface{}{
		"type":        "integer",
		"description": "Chip width in pixels. Defaults to the configured chip width",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and how it would be chipped at the configured chip size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Chipping
		{
			Name:        "image_chip",
			Description: "Return one chip of the image as base64-encoded PNG, padded exactly as it would be sent to the model. Chips are numbered row-major from the top-left.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": chipSizeProperties(map[string]interface{}{
					"path": pathProperty(),
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Chip index (0-based, row-major)",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor for the preview. Default 1.0",
						"default":     1.0,
					},
				}),
				"required": []string{"path", "index"},
			},
		},
		{
			Name:        "image_chip_grid",
			Description: "Draw the chip boundaries over the image and return it as base64-encoded PNG, with the chip layout and padding.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": chipSizeProperties(map[string]interface{}{
					"path": pathProperty(),
					"show_indices": map[string]interface{}{
						"type":        "boolean",
						"description": "Label each chip with its index",
						"default":     true,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Line color as hex (e.g. #FF0000)",
						"default":     "#FF0000",
					},
				}),
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "image_detect",
			Description: "Run object detection on an image: chip it, send the chips to the model server and return the detections in image pixel coordinates with class counts.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Job History
		{
			Name:        "job_list",
			Description: "List recent detection jobs, or the per-image results of one job when job_id is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"job_id": map[string]interface{}{
						"type":        "string",
						"description": "Optional job id to show per-image results for",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of jobs to list. Default 20",
						"default":     20,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
