// Package server implements the MCP (Model Context Protocol) server for the
// chip and detect pipeline.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Information:
//   - image_load: Load image, get metadata and its chip layout
//
// Chipping:
//   - image_chip: One padded chip as PNG, exactly as the model sees it
//   - image_chip_grid: Chip boundaries drawn over the image
//
// Detection:
//   - image_detect: Chip, infer and untile one image
//
// Job History:
//   - job_list: Recent jobs, or the per-image results of one job
//
// Chip size defaults to the configured one; image_chip and image_chip_grid
// accept chip_height and chip_width to preview other sizes.
//
// # Image Caching
//
// Images loaded by the inspection tools are cached by path for the lifetime
// of the server process. image_detect goes through the pipeline, which
// evicts each image once it is done with it.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// Logging goes to the configured logger, never to stdout.
//
// # Usage
//
//	srv := server.New(cfg, pl, st, log)
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
