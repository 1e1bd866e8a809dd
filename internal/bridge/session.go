package bridge

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benshaw2/PiDay/internal/codec"
	"github.com/benshaw2/PiDay/internal/fit"
	"github.com/benshaw2/PiDay/internal/imaging"
	"github.com/benshaw2/PiDay/internal/server"
)

var (
	// ErrRequestOutstanding is returned when a call is made while another
	// is still waiting for its response.
	ErrRequestOutstanding = errors.New("a request is already outstanding on this session")
	// ErrSessionBroken is returned by every call after a transport failure
	// or an expired context.
	ErrSessionBroken = errors.New("engine session is broken")
	// ErrClosed is returned by calls on a closed session.
	ErrClosed = errors.New("engine session is closed")
)

const (
	maxResponseBytes = 64 * 1024 * 1024

	// closeGrace is how long Close waits for a child to exit on its own
	// after its stdin is closed.
	closeGrace = 5 * time.Second
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithScratchDir sets the parent of the session's scratch directory.
func WithScratchDir(dir string) Option {
	return func(s *Session) {
		if dir != "" {
			s.scratchDir = dir
		}
	}
}

// WithStderr sets where a child engine's stderr goes. Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(s *Session) {
		s.stderr = w
	}
}

// WithID fixes the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// EngineInfo is what the engine reported during the handshake.
type EngineInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
	Capabilities    fit.Capabilities
}

// Session is a connection to one engine.
type Session struct {
	id         string
	scratchDir string
	store      *imaging.Store
	log        *slog.Logger
	stderr     io.Writer
	info       EngineInfo

	w      io.Writer
	closer io.Closer
	cmd    *exec.Cmd

	lines    chan []byte
	readErr  error
	readDone chan struct{}
	done     chan struct{}

	busy   atomic.Bool
	nextID int64

	mu     sync.Mutex
	broken error
	closed bool
}

func newSession(opts []Option) (*Session, error) {
	s := &Session{
		scratchDir: filepath.Join(os.TempDir(), "piday"),
		log:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		stderr:     os.Stderr,
		lines:      make(chan []byte),
		readDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		s.id = id
	}
	return s, nil
}

// NewSession connects to an engine that reads requests from w and writes
// responses to r. If w is also an io.Closer it is closed by Close.
func NewSession(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (*Session, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}
	s.w = w
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s.open(ctx, r)
}

// Start launches command as a child engine and connects to it.
func Start(ctx context.Context, command []string, opts ...Option) (*Session, error) {
	if len(command) == 0 {
		return nil, errors.New("empty engine command")
	}
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stderr = s.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to connect engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to connect engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	s.log.Info("bridge.engine_started", "session", s.id, "command", command, "pid", cmd.Process.Pid)

	s.cmd = cmd
	s.w = stdin
	s.closer = stdin
	return s.open(ctx, stdout)
}

func (s *Session) open(ctx context.Context, r io.Reader) (*Session, error) {
	go s.readLoop(r)

	store, err := imaging.NewStore(filepath.Join(s.scratchDir, s.id))
	if err != nil {
		s.shutdown(true)
		return nil, err
	}
	s.store = store

	if err := s.handshake(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ID identifies the session in logs and scratch paths.
func (s *Session) ID() string {
	return s.id
}

// Info returns what the engine reported during the handshake.
func (s *Session) Info() EngineInfo {
	return s.info
}

// ScratchDir is the directory holding this session's staged images.
func (s *Session) ScratchDir() string {
	return s.store.Dir()
}

// Err returns the reason the session is unusable, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.broken
}

// Close ends the session, stops a child engine and removes the scratch
// directory. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	broken := s.broken != nil
	s.mu.Unlock()

	err := s.shutdown(broken)
	if s.store != nil {
		err = errors.Join(err, s.store.Remove())
	}
	s.log.Info("bridge.closed", "session", s.id)
	return err
}

// shutdown closes the request stream and reaps a child engine. A child that
// does not exit within closeGrace, or has already been given up on, is
// killed.
func (s *Session) shutdown(broken bool) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}

	var errs []error
	if s.closer != nil {
		if err := s.closer.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.cmd == nil {
		return errors.Join(errs...)
	}

	if broken {
		s.kill()
	} else {
		select {
		case <-s.readDone:
		case <-time.After(closeGrace):
			s.log.Warn("bridge.engine_kill", "session", s.id, "reason", "did not exit after stdin closed")
			s.kill()
		}
	}
	// Wait closes our end of stdout, which ends readLoop if it is still
	// blocked.
	if err := s.cmd.Wait(); err != nil && !broken {
		errs = append(errs, fmt.Errorf("engine exited: %w", err))
	}
	<-s.readDone
	return errors.Join(errs...)
}

func (s *Session) kill() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// fail marks the session broken, stops the engine and returns cause.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	if s.broken == nil {
		s.broken = fmt.Errorf("%w: %w", ErrSessionBroken, cause)
	}
	s.mu.Unlock()

	s.log.Warn("bridge.session_broken", "session", s.id, "reason", cause.Error())
	s.kill()
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

func (s *Session) readLoop(r io.Reader) {
	defer close(s.readDone)
	defer close(s.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseBytes)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case s.lines <- line:
		case <-s.done:
			return
		}
	}
	s.readErr = scanner.Err()
}

// transportErr classifies a failure on the connection itself.
func transportErr(op string, err error) error {
	return &fit.Error{
		Op:   "bridge." + op,
		Kind: fit.KindDecoding,
		Err:  fmt.Errorf("%w: %w", codec.ErrDecoding, err),
	}
}

// ToolError is a JSON-RPC error returned by the engine.
type ToolError struct {
	Method  string
	Code    int
	Message string
	Data    string
}

func (e *ToolError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("engine %s: %s (%d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("engine %s: %s (%d): %s", e.Method, e.Message, e.Code, e.Data)
}

type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      interface{}      `json:"id"`
	Result  json.RawMessage  `json:"result"`
	Error   *server.MCPError `json:"error"`
}

// roundTrip sends one request and waits for its response. Requests without
// an id are notifications and return immediately.
func (s *Session) roundTrip(ctx context.Context, method string, params interface{}, notify bool) (json.RawMessage, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrRequestOutstanding
	}
	defer s.busy.Store(false)

	if err := s.Err(); err != nil {
		return nil, err
	}

	req := server.MCPRequest{JSONRPC: "2.0", Method: method}
	var id int64
	if !notify {
		s.nextID++
		id = s.nextID
		req.ID = id
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	payload = append(payload, '\n')

	start := time.Now()
	written := make(chan error, 1)
	go func() {
		_, err := s.w.Write(payload)
		written <- err
	}()

	select {
	case err := <-written:
		if err != nil {
			s.fail(err)
			return nil, transportErr("write", err)
		}
	case <-ctx.Done():
		s.fail(ctx.Err())
		return nil, s.Err()
	}
	if notify {
		return nil, nil
	}

	var line []byte
	select {
	case l, ok := <-s.lines:
		if !ok {
			err := s.readErr
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			s.fail(err)
			return nil, transportErr("read", fmt.Errorf("engine closed the connection: %w", err))
		}
		line = l
	case <-ctx.Done():
		s.fail(ctx.Err())
		return nil, s.Err()
	}

	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		s.fail(err)
		return nil, transportErr("read", fmt.Errorf("malformed response: %w", err))
	}
	if got, ok := resp.ID.(float64); !ok || int64(got) != id {
		err := fmt.Errorf("response id %v does not match request id %d", resp.ID, id)
		s.fail(err)
		return nil, transportErr("read", err)
	}

	s.log.Debug("bridge.call", "session", s.id, "method", method, "id", id, "duration_ms", time.Since(start).Milliseconds())

	if resp.Error != nil {
		te := &ToolError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
		if resp.Error.Data != nil {
			te.Data = fmt.Sprint(resp.Error.Data)
		}
		return nil, te
	}
	return resp.Result, nil
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
	Engine fit.Capabilities `json:"engine"`
}

func (s *Session) handshake(ctx context.Context) error {
	raw, err := s.roundTrip(ctx, "initialize", map[string]interface{}{
		"protocolVersion": server.ProtocolVersion,
		"clientInfo":      map[string]string{"name": "piday-bridge"},
	}, false)
	if err != nil {
		return err
	}
	var hello initializeResult
	if err := json.Unmarshal(raw, &hello); err != nil {
		s.fail(err)
		return transportErr("initialize", err)
	}
	s.info = EngineInfo{
		Name:            hello.ServerInfo.Name,
		Version:         hello.ServerInfo.Version,
		ProtocolVersion: hello.ProtocolVersion,
		Capabilities:    hello.Engine,
	}
	if _, err := s.roundTrip(ctx, "notifications/initialized", nil, true); err != nil {
		return err
	}
	s.log.Info("bridge.connected", "session", s.id, "engine", s.info.Name, "version", s.info.Version,
		"mixed_effects_available", s.info.Capabilities.MixedEffectsAvailable)
	return nil
}

// callTool invokes name and decodes the tool's text content into out.
func (s *Session) callTool(ctx context.Context, name string, args, out interface{}) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode %s arguments: %w", name, err)
	}
	raw, err := s.roundTrip(ctx, "tools/call", server.ToolCallParams{Name: name, Arguments: argsJSON}, false)
	if err != nil {
		return err
	}
	var content struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return transportErr("call", fmt.Errorf("malformed %s result: %w", name, err))
	}
	if len(content.Content) != 1 || content.Content[0].Type != "text" {
		return transportErr("call", fmt.Errorf("%s returned %d content items, want one text item", name, len(content.Content)))
	}
	if err := json.Unmarshal([]byte(content.Content[0].Text), out); err != nil {
		return transportErr("call", fmt.Errorf("malformed %s payload: %w", name, err))
	}
	return nil
}

func newID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
