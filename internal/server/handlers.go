package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/benshaw2/PiDay/internal/codec"
	"github.com/benshaw2/PiDay/internal/dataset"
	"github.com/benshaw2/PiDay/internal/fit"
	"github.com/benshaw2/PiDay/internal/plot"
)

// Tool names.
const (
	ToolCapabilities = "piday_capabilities"
	ToolFit          = "piday_fit"
	ToolRender       = "piday_render"
	ToolFitAndRender = "piday_fit_and_render"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke, e.g. "piday_fit".
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
// A fit that fails is not a tool error: its FALSE wire line is the result.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Info("server.tool_failed", "tool", params.Name, "error", err.Error())
		return s.errorResponse(req.ID, CodeToolFailed, "Tool execution failed", err.Error())
	}

	text, err := json.Marshal(result)
	if err != nil {
		return s.errorResponse(req.ID, CodeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": string(text),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case ToolCapabilities:
		return s.handleCapabilities()
	case ToolFit:
		return s.handleFit(args)
	case ToolRender:
		return s.handleRender(args)
	case ToolFitAndRender:
		return s.handleFitAndRender(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// unmarshalArgs decodes tool arguments; absent arguments mean defaults.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 || string(bytes.TrimSpace(args)) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Capabilities ===

// CapabilitiesResult is returned by piday_capabilities.
type CapabilitiesResult struct {
	MixedEffectsAvailable bool   `json:"mixed_effects_available"`
	Engine                string `json:"engine"`
}

func (s *Server) handleCapabilities() (interface{}, error) {
	caps := s.fitter.Capabilities()
	return &CapabilitiesResult{
		MixedEffectsAvailable: caps.MixedEffectsAvailable,
		Engine:                caps.Engine,
	}, nil
}

// === Fit ===

// FitArgs are the arguments of piday_fit.
type FitArgs struct {
	CSV               string `json:"csv"`
	Tier              int    `json:"tier"`
	AllowMixedEffects bool   `json:"allow_mixed_effects"`
}

func (a FitArgs) request() (fit.Request, error) {
	if a.Tier == 0 {
		a.Tier = int(fit.FixedOnly)
	}
	tier, err := fit.ParseTier(a.Tier)
	if err != nil {
		return fit.Request{}, err
	}
	return fit.Request{Tier: tier, AllowMixedEffects: a.AllowMixedEffects}, nil
}

// FitResult is returned by piday_fit. Result holds exactly one wire line.
type FitResult struct {
	Result       []string          `json:"result"`
	Fingerprint  string            `json:"fingerprint"`
	Observations int               `json:"observations"`
	Mixed        *fit.MixedOutcome `json:"mixed,omitempty"`
}

func (s *Server) handleFit(args json.RawMessage) (interface{}, error) {
	var a FitArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	res, _, _, err := s.fit(a)
	return res, err
}

// fit runs a fit and also returns the parsed dataset, which is nil when
// the rows did not coerce.
func (s *Server) fit(a FitArgs) (*FitResult, dataset.Dataset, fit.Result, error) {
	req, err := a.request()
	if err != nil {
		return nil, nil, fit.Result{}, err
	}
	rows, err := dataset.ReadCSV(strings.NewReader(a.CSV))
	if err != nil {
		return nil, nil, fit.Result{}, err
	}

	rep := s.fitter.FitRaw(rows, req)
	line, err := codec.Encode(rep.Result)
	if err != nil {
		return nil, nil, fit.Result{}, err
	}

	ds, perr := dataset.Parse(rows)
	if perr != nil {
		ds = nil
	}
	fingerprint := rep.Fingerprint
	if fingerprint == 0 && ds != nil {
		fingerprint = ds.Fingerprint()
	}

	return &FitResult{
		Result:       []string{line},
		Fingerprint:  fmt.Sprintf("%016x", fingerprint),
		Observations: len(rows),
		Mixed:        rep.Mixed,
	}, ds, rep.Result, nil
}

// === Render ===

// RenderArgs are the arguments of piday_render.
type RenderArgs struct {
	CSV       string   `json:"csv"`
	Slope     *float64 `json:"slope,omitempty"`
	Intercept *float64 `json:"intercept,omitempty"`
	Format    string   `json:"format"`
	Encoding  string   `json:"encoding"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
}

func (a RenderArgs) spec(ds dataset.Dataset) (plot.Spec, error) {
	format, err := plot.ParseFormat(a.Format)
	if err != nil {
		return plot.Spec{}, err
	}
	encoding := a.Encoding
	if encoding == "" {
		switch f := strings.ToLower(a.Format); f {
		case plot.EncodingPNG, plot.EncodingJPEG, "jpg", plot.EncodingGIF, plot.EncodingSVG, plot.EncodingSVGZ:
			encoding = f
		}
	}
	return plot.Spec{
		Dataset:   ds,
		Slope:     a.Slope,
		Intercept: a.Intercept,
		Format:    format,
		Encoding:  encoding,
		Width:     a.Width,
		Height:    a.Height,
	}, nil
}

// RenderResult is returned by piday_render.
type RenderResult struct {
	ImageBase64 string `json:"image_base64"`
	*plot.Result
}

func (s *Server) handleRender(args json.RawMessage) (interface{}, error) {
	var a RenderArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	ds, err := dataset.ReadDataset(strings.NewReader(a.CSV))
	if err != nil {
		return nil, err
	}
	return s.render(a, ds)
}

func (s *Server) render(a RenderArgs, ds dataset.Dataset) (*RenderResult, error) {
	spec, err := a.spec(ds)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	res, err := s.renderer.Render(spec, &buf)
	if err != nil {
		return nil, err
	}
	return &RenderResult{
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Result:      res,
	}, nil
}

// === Fit and render ===

// FitAndRenderArgs combine piday_fit and piday_render arguments. The line
// comes from the fit, so slope and intercept are not accepted.
type FitAndRenderArgs struct {
	CSV               string `json:"csv"`
	Tier              int    `json:"tier"`
	AllowMixedEffects bool   `json:"allow_mixed_effects"`
	Format            string `json:"format"`
	Encoding          string `json:"encoding"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
}

// FitAndRenderResult carries the fit and, when the data could be drawn,
// the plot. PlotError explains a missing plot.
type FitAndRenderResult struct {
	FitResult
	Plot      *RenderResult `json:"plot,omitempty"`
	PlotError string        `json:"plot_error,omitempty"`
}

func (s *Server) handleFitAndRender(args json.RawMessage) (interface{}, error) {
	var a FitAndRenderArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	fr, ds, result, err := s.fit(FitArgs{CSV: a.CSV, Tier: a.Tier, AllowMixedEffects: a.AllowMixedEffects})
	if err != nil {
		return nil, err
	}
	out := &FitAndRenderResult{FitResult: *fr}

	if ds == nil {
		out.PlotError = "dataset has values that are not finite numbers"
		return out, nil
	}

	ra := RenderArgs{Format: a.Format, Encoding: a.Encoding, Width: a.Width, Height: a.Height}
	if result.OK {
		ra.Slope, ra.Intercept = result.Slope, result.Intercept
	}

	rr, err := s.render(ra, ds)
	if err != nil {
		out.PlotError = err.Error()
		return out, nil
	}
	out.Plot = rr
	return out, nil
}
