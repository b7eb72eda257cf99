package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ironsheep/geochip/internal/chip"
	"github.com/ironsheep/geochip/internal/imaging"
	"github.com/ironsheep/geochip/internal/pipeline"
	"github.com/ironsheep/geochip/internal/report"
	"github.com/ironsheep/geochip/internal/store"
)

var (
	errNoPipeline = errors.New("detection is not configured on this server")
	errNoStore    = errors.New("job history is not configured on this server")
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("Tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)

	case "image_chip":
		return s.handleImageChip(args)
	case "image_chip_grid":
		return s.handleImageChipGrid(args)

	case "image_detect":
		return s.handleImageDetect(ctx, args)

	case "job_list":
		return s.handleJobList(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// chipSize picks the requested chip size. A zero dimension means the field
// was omitted and falls back to the configured one; a negative one is
// rejected with chip.ErrInvalidSize.
func (s *Server) chipSize(height, width int) (chip.Size, error) {
	size := chip.Size{Height: s.cfg.Chip.Height, Width: s.cfg.Chip.Width}
	if height != 0 {
		size.Height = height
	}
	if width != 0 {
		size.Width = width
	}
	if err := size.Validate(); err != nil {
		return chip.Size{}, err
	}
	return size, nil
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

type chipLayout struct {
	ChipHeight int `json:"chip_height"`
	ChipWidth  int `json:"chip_width"`
	NumHeight  int `json:"num_height_chips"`
	NumWidth   int `json:"num_width_chips"`
	NumChips   int `json:"num_chips"`
}

type imageLoadResult struct {
	*imaging.ImageInfo
	Chips chipLayout `json:"chips"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := imaging.CheckApproved(a.Path, s.cfg.ApprovedTypes); err != nil {
		return nil, err
	}
	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	size, err := s.chipSize(0, 0)
	if err != nil {
		return nil, err
	}
	g, err := chip.Layout(info.Height, info.Width, 3, size)
	if err != nil {
		return nil, err
	}
	return &imageLoadResult{
		ImageInfo: info,
		Chips: chipLayout{
			ChipHeight: g.Tile.Height,
			ChipWidth:  g.Tile.Width,
			NumHeight:  g.NumHeight,
			NumWidth:   g.NumWidth,
			NumChips:   g.Len(),
		},
	}, nil
}

// === Chipping ===

type imageChipArgs struct {
	Path       string  `json:"path"`
	Index      int     `json:"index"`
	ChipHeight int     `json:"chip_height"`
	ChipWidth  int     `json:"chip_width"`
	Scale      float64 `json:"scale"`
}

func (s *Server) handleImageChip(args json.RawMessage) (interface{}, error) {
	var a imageChipArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	size, err := s.chipSize(a.ChipHeight, a.ChipWidth)
	if err != nil {
		return nil, err
	}
	r, err := s.cache.LoadRaster(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.ChipPreview(r, size, a.Index, s.cfg.Chip.NoData, a.Scale)
}

type imageChipGridArgs struct {
	Path        string `json:"path"`
	ChipHeight  int    `json:"chip_height"`
	ChipWidth   int    `json:"chip_width"`
	ShowIndices *bool  `json:"show_indices"`
	GridColor   string `json:"grid_color"`
}

func (s *Server) handleImageChipGrid(args json.RawMessage) (interface{}, error) {
	var a imageChipGridArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	showIndices := true
	if a.ShowIndices != nil {
		showIndices = *a.ShowIndices
	}
	if a.GridColor == "" {
		a.GridColor = "#FF0000"
	}
	size, err := s.chipSize(a.ChipHeight, a.ChipWidth)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.ChipGridOverlay(img, size, showIndices, a.GridColor)
}

// === Detection ===

type imageDetectArgs struct {
	Path string `json:"path"`
}

type imageDetectResult struct {
	*pipeline.ImageSummary
	Counts     []report.ClassCount `json:"counts"`
	Detections []report.Row        `json:"detections"`
}

func (s *Server) handleImageDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.pipeline == nil {
		return nil, errNoPipeline
	}
	var a imageDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp("", "geochip-detect-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	merged, summary, err := s.pipeline.Detect(ctx, tmp, a.Path)
	if err != nil {
		return nil, err
	}
	rows := report.Rows(merged, s.pipeline.Scheme())
	return &imageDetectResult{
		ImageSummary: summary,
		Counts:       report.CountClasses(rows),
		Detections:   rows,
	}, nil
}

// === Job History ===

type jobListArgs struct {
	JobID string `json:"job_id"`
	Limit int    `json:"limit"`
}

type jobDetail struct {
	Job    store.Job           `json:"job"`
	Images []store.ImageResult `json:"images"`
}

func (s *Server) handleJobList(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	a := jobListArgs{Limit: 20}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}

	if a.JobID != "" {
		job, err := s.store.GetJob(ctx, a.JobID)
		if err != nil {
			return nil, err
		}
		images, err := s.store.ImageResults(ctx, a.JobID)
		if err != nil {
			return nil, err
		}
		return &jobDetail{Job: job, Images: images}, nil
	}

	jobs, err := s.store.ListJobs(ctx, a.Limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	return map[string]interface{}{"jobs": jobs}, nil
}
