// Package mcp serves the annotator as Model Context Protocol tools over
// newline-delimited JSON-RPC.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"markexpr/internal/config"
	"markexpr/internal/marker"
	"markexpr/internal/models"
	"markexpr/internal/runner"
	"markexpr/internal/utils"
)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603

	cacheSize = 256
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AnnotateResult is the payload of the annotate_source tool.
type AnnotateResult struct {
	Records   []marker.Record `json:"records"`
	Annotated bool            `json:"annotated"`
	Output    string          `json:"output"`
}

type Server struct {
	cfg     config.Config
	version string
	logger  *zap.Logger
	cache   *lru.Cache[string, AnnotateResult]
}

// NewServer returns a server applying cfg unless a tool call carries its own
// configuration.
func NewServer(cfg config.Config, version string, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, AnnotateResult](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, version: version, logger: logger, cache: cache}, nil
}

// Run serves stdin and stdout until stdin is closed.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one request per line from r and writes one response per line
// to w. Notifications get no response.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)

	for {
		line, err := reader.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			var req JSONRPCRequest
			if uerr := json.Unmarshal(line, &req); uerr != nil {
				s.writeError(writer, nil, codeParseError, "Parse error")
			} else {
				s.handleRequest(ctx, writer, &req)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	s.logger.Debug("request", zap.String("method", req.Method))

	switch req.Method {
	case "initialize":
		s.handleInitialize(writer, req)
	case "tools/list":
		s.handleToolsList(writer, req)
	case "tools/call":
		s.handleToolsCall(ctx, writer, req)
	case "ping":
		s.writeResponse(writer, req.ID, map[string]interface{}{})
	default:
		if strings.HasPrefix(req.Method, "notifications/") {
			return
		}
		s.writeError(writer, req.ID, codeMethodNotFound, "Method not found")
	}
}

func (s *Server) handleInitialize(writer *bufio.Writer, req *JSONRPCRequest) {
	result := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"serverInfo": map[string]string{
			"name":    "markexpr-mcp",
			"version": s.version,
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]bool{},
		},
	}
	s.writeResponse(writer, req.ID, result)
}

func (s *Server) handleToolsList(writer *bufio.Writer, req *JSONRPCRequest) {
	configSchema := map[string]interface{}{
		"type":        "object",
		"description": "Overrides the server configuration (title, functions, methods, dynamicImports, pretty, format)",
	}
	tools := []map[string]interface{}{
		{
			"name":        "annotate_source",
			"description": "Annotate JavaScript or TypeScript source with the calls matching the configured patterns",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   map[string]string{"type": "string"},
					"source": map[string]string{"type": "string"},
					"config": configSchema,
				},
				"required": []string{"path", "source"},
			},
		},
		{
			"name":        "scan_paths",
			"description": "Annotate every supported file under the given paths and report the matches",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":  "array",
						"items": map[string]string{"type": "string"},
					},
					"write":  map[string]string{"type": "boolean"},
					"config": configSchema,
				},
				"required": []string{"paths"},
			},
		},
		{
			"name":        "extract_annotations",
			"description": "Decode the records of annotations found in text or in a file",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text":  map[string]string{"type": "string"},
					"path":  map[string]string{"type": "string"},
					"title": map[string]string{"type": "string"},
				},
			},
		},
	}
	s.writeResponse(writer, req.ID, map[string]interface{}{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(writer, req.ID, codeInvalidParams, "Invalid params")
		return
	}

	var result interface{}
	var err error

	switch params.Name {
	case "annotate_source":
		result, err = s.handleAnnotateSource(ctx, params.Arguments)
	case "scan_paths":
		result, err = s.handleScanPaths(ctx, params.Arguments)
	case "extract_annotations":
		result, err = s.handleExtractAnnotations(params.Arguments)
	default:
		s.writeError(writer, req.ID, codeInvalidParams, "Unknown tool")
		return
	}

	if err != nil {
		s.logger.Warn("tool call failed", zap.String("tool", params.Name), zap.Error(err))
		s.writeError(writer, req.ID, codeInternalError, err.Error())
		return
	}

	s.writeResponse(writer, req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": formatResult(result),
			},
		},
	})
}

func (s *Server) handleAnnotateSource(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Path   string          `json:"path"`
		Source string          `json:"source"`
		Config json.RawMessage `json:"config"`
	}
	if err := decodeArguments(args, &input); err != nil {
		return nil, err
	}
	if input.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	cfg, err := s.resolveConfig(input.Config)
	if err != nil {
		return nil, err
	}
	key, err := cacheKey(cfg, input.Path, input.Source)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debug("annotate cache hit", zap.String("path", input.Path))
		return cached, nil
	}

	r, err := runner.New(cfg, runner.Options{Logger: s.logger})
	if err != nil {
		return nil, err
	}
	records, out, err := r.Annotate(ctx, input.Path, []byte(input.Source))
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []marker.Record{}
	}
	result := AnnotateResult{
		Records:   records,
		Annotated: len(records) > 0,
		Output:    string(out),
	}
	s.cache.Add(key, result)
	return result, nil
}

func (s *Server) handleScanPaths(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Paths  []string        `json:"paths"`
		Write  bool            `json:"write"`
		Config json.RawMessage `json:"config"`
	}
	if err := decodeArguments(args, &input); err != nil {
		return nil, err
	}
	if len(input.Paths) == 0 {
		return nil, fmt.Errorf("paths is required")
	}

	cfg, err := s.resolveConfig(input.Config)
	if err != nil {
		return nil, err
	}
	r, err := runner.New(cfg, runner.Options{Write: input.Write, Logger: s.logger})
	if err != nil {
		return nil, err
	}
	reports, err := r.Run(ctx, input.Paths)
	if err != nil {
		return nil, err
	}
	return models.RunReport{Summary: models.Summarize(reports), Files: reports}, nil
}

func (s *Server) handleExtractAnnotations(args json.RawMessage) (interface{}, error) {
	var input struct {
		Text  string `json:"text"`
		Path  string `json:"path"`
		Title string `json:"title"`
	}
	if err := decodeArguments(args, &input); err != nil {
		return nil, err
	}

	text := input.Text
	if text == "" && input.Path != "" {
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	title := input.Title
	if title == "" {
		title = s.cfg.Title
	}

	records, err := marker.ParseAnnotations(text, title)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// resolveConfig returns the per-call configuration, or the server's.
func (s *Server) resolveConfig(raw json.RawMessage) (config.Config, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return s.cfg, nil
	}
	return config.Parse(raw, "json")
}

func decodeArguments(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func cacheKey(cfg config.Config, path, source string) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return utils.HashContent(string(data) + "\x00" + path + "\x00" + source), nil
}

func (s *Server) writeResponse(writer *bufio.Writer, id interface{}, result interface{}) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	s.write(writer, resp)
}

func (s *Server) writeError(writer *bufio.Writer, id interface{}, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
	s.write(writer, resp)
}

func (s *Server) write(writer *bufio.Writer, resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		return
	}
	writer.Write(data)
	writer.WriteByte('\n')
	if err := writer.Flush(); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}

func formatResult(result interface{}) string {
	data, _ := json.MarshalIndent(result, "", "  ")
	return string(data)
}
