package server

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/benshaw2/PiDay/internal/buildinfo"
	"github.com/benshaw2/PiDay/internal/fit"
	"github.com/benshaw2/PiDay/internal/plot"
)

func newTestServer() *Server {
	return New(fit.New(fit.NewLMM()), plot.New())
}

// run feeds lines to a fresh server and returns the decoded responses.
func run(t *testing.T, s *Server, lines ...string) []MCPResponse {
	t.Helper()

	var out bytes.Buffer
	if err := s.Run(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var responses []MCPResponse
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp MCPResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestMCPResponse_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(MCPResponse{JSONRPC: "2.0", ID: 1, Result: map[string]interface{}{}})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("successful response carries an error key: %s", data)
	}
}

func TestRun_Initialize(t *testing.T) {
	responses := run(t, newTestServer(), `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}

	result, ok := responses[0].Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result is %T, want map", responses[0].Result)
	}
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocolVersion: got %v, want %s", result["protocolVersion"], ProtocolVersion)
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != ServerName {
		t.Errorf("serverInfo.name: got %v, want %s", info["name"], ServerName)
	}
	if info["version"] != buildinfo.Version {
		t.Errorf("serverInfo.version: got %v, want %s", info["version"], buildinfo.Version)
	}
	engine := result["engine"].(map[string]interface{})
	if engine["mixed_effects_available"] != true {
		t.Errorf("mixed_effects_available: got %v, want true", engine["mixed_effects_available"])
	}
}

func TestRun_ResponsesInRequestOrder(t *testing.T) {
	responses := run(t, newTestServer(),
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	)
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3 (notifications and blank lines get none)", len(responses))
	}
	for i, want := range []float64{1, 2, 3} {
		if responses[i].ID != want {
			t.Errorf("response %d: ID %v, want %v", i, responses[i].ID, want)
		}
	}
}

func TestRun_ParseError(t *testing.T) {
	responses := run(t, newTestServer(),
		`{not json`,
		`{"jsonrpc":"2.0","id":7,"method":"ping"}`,
	)
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if responses[0].Error == nil || responses[0].Error.Code != CodeParseError {
		t.Errorf("first response: got %+v, want parse error", responses[0].Error)
	}
	if responses[1].Error != nil {
		t.Errorf("server did not recover after a parse error: %+v", responses[1].Error)
	}
}

func TestRun_UnknownMethod(t *testing.T) {
	responses := run(t, newTestServer(), `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	if len(responses) != 1 || responses[0].Error == nil {
		t.Fatalf("expected one error response, got %+v", responses)
	}
	if responses[0].Error.Code != CodeMethodNotFound {
		t.Errorf("code: got %d, want %d", responses[0].Error.Code, CodeMethodNotFound)
	}
	if !strings.Contains(responses[0].Error.Message, "resources/list") {
		t.Errorf("message does not name the method: %q", responses[0].Error.Message)
	}
}

func TestRun_ToolsList(t *testing.T) {
	responses := run(t, newTestServer(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result := responses[0].Result.(map[string]interface{})
	tools, ok := result["tools"].([]interface{})
	if !ok {
		t.Fatalf("tools is %T", result["tools"])
	}
	if len(tools) != len(GetToolDefinitions()) {
		t.Errorf("got %d tools, want %d", len(tools), len(GetToolDefinitions()))
	}
}

func TestRun_LargeRequest(t *testing.T) {
	var csv strings.Builder
	csv.WriteString("Name,Diameter,Circumference\n")
	for i := 1; i <= 20000; i++ {
		csv.WriteString(`"Plate",12.5,39.27` + "\n")
	}
	req, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      ToolFit,
			"arguments": map[string]interface{}{"csv": csv.String()},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(req) < 64*1024 {
		t.Fatalf("request is only %d bytes", len(req))
	}

	responses := run(t, newTestServer(), string(req))
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].Error != nil {
		t.Fatalf("unexpected error: %+v", responses[0].Error)
	}
}
