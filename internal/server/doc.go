// Package server implements the pi-estimation engine as an MCP (Model
// Context Protocol) server.
//
// The engine is the sandboxed half of the system: it fits datasets and
// renders plots on request, and holds nothing between calls.
//
// # Protocol
//
// The server speaks JSON-RPC 2.0, one message per line:
//   - Input: requests read from the supplied reader
//   - Output: responses written to the supplied writer, in request order
//
// Supported MCP methods:
//   - initialize: Protocol handshake, also reports mixed-effects capability
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - piday_capabilities: mixed-effects availability and engine name
//   - piday_fit: fit a CSV dataset, returning one wire line
//   - piday_render: plot a CSV dataset with an optional line
//   - piday_fit_and_render: both, the plot carrying the fitted line
//
// A fit that fails is a successful tool call whose wire line starts with
// FALSE. Tool errors are reserved for arguments that cannot be read at all.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(fit.New(fit.NewLMM()), plot.New())
//	if err := srv.Run(os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
