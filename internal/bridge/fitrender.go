package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/benshaw2/PiDay/internal/codec"
	"github.com/benshaw2/PiDay/internal/dataset"
	"github.com/benshaw2/PiDay/internal/fit"
	"github.com/benshaw2/PiDay/internal/plot"
	"github.com/benshaw2/PiDay/internal/server"
)

// RenderOptions asks the engine for a plot alongside the fit. Zero values
// take the engine's defaults.
type RenderOptions struct {
	Format   plot.Format
	Encoding string
	Width    int
	Height   int
}

// Outcome is everything one FitAndRender call brought back.
type Outcome struct {
	// Result is the decoded wire line.
	Result fit.Result
	// Line is the wire line as received.
	Line         string
	Fingerprint  string
	Observations int
	Mixed        *fit.MixedOutcome

	// Plot, Image and ImagePath are set when a plot was requested and
	// drawn. PlotError explains why a requested plot is missing.
	Plot      *plot.Result
	Image     []byte
	ImagePath string
	PlotError string
}

// Capabilities reports what the engine can fit.
func (s *Session) Capabilities(ctx context.Context) (fit.Capabilities, error) {
	var caps server.CapabilitiesResult
	if err := s.callTool(ctx, server.ToolCapabilities, struct{}{}, &caps); err != nil {
		return fit.Capabilities{}, err
	}
	return fit.Capabilities{MixedEffectsAvailable: caps.MixedEffectsAvailable, Engine: caps.Engine}, nil
}

// FitAndRender sends ds to the engine and fits it under req. With a nil
// render only the fit is requested. A fit that fails is returned as an
// Outcome with Result.OK false, not as an error.
func (s *Session) FitAndRender(ctx context.Context, ds dataset.Dataset, req fit.Request, render *RenderOptions) (Outcome, error) {
	var csv bytes.Buffer
	if err := dataset.WriteCSV(&csv, ds); err != nil {
		return Outcome{}, fmt.Errorf("failed to encode dataset: %w", err)
	}

	if render == nil {
		var fr server.FitResult
		args := server.FitArgs{CSV: csv.String(), Tier: int(req.Tier), AllowMixedEffects: req.AllowMixedEffects}
		if err := s.callTool(ctx, server.ToolFit, args, &fr); err != nil {
			return Outcome{}, err
		}
		return s.outcome(fr)
	}

	format := ""
	if render.Format != plot.Unset {
		format = render.Format.String()
	}
	args := server.FitAndRenderArgs{
		CSV:               csv.String(),
		Tier:              int(req.Tier),
		AllowMixedEffects: req.AllowMixedEffects,
		Format:            format,
		Encoding:          render.Encoding,
		Width:             render.Width,
		Height:            render.Height,
	}
	var fr server.FitAndRenderResult
	if err := s.callTool(ctx, server.ToolFitAndRender, args, &fr); err != nil {
		return Outcome{}, err
	}

	out, err := s.outcome(fr.FitResult)
	if err != nil {
		return out, err
	}
	out.PlotError = fr.PlotError
	if fr.Plot == nil || fr.Plot.Result == nil {
		if out.PlotError == "" {
			out.PlotError = "engine returned no plot"
		}
		return out, nil
	}

	img, err := base64.StdEncoding.DecodeString(fr.Plot.ImageBase64)
	if err != nil {
		return out, transportErr("call", fmt.Errorf("malformed image: %w", err))
	}
	path, err := s.store.Stage("plot."+fr.Plot.Encoding, img)
	if err != nil {
		return out, err
	}
	out.Plot = fr.Plot.Result
	out.Image = img
	out.ImagePath = path

	s.log.Debug("bridge.plot_staged", "session", s.id, "path", path, "bytes", len(img))
	return out, nil
}

func (s *Session) outcome(fr server.FitResult) (Outcome, error) {
	line, err := codec.Unwrap(fr.Result)
	if err != nil {
		return Outcome{}, err
	}
	result, err := codec.Decode(line)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Result:       result,
		Line:         line,
		Fingerprint:  fr.Fingerprint,
		Observations: fr.Observations,
		Mixed:        fr.Mixed,
	}
	s.log.Info("bridge.fit", "session", s.id, "fingerprint", fr.Fingerprint, "ok", result.OK, "message", result.Message)
	return out, nil
}
