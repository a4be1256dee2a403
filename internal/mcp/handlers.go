package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/aotargs"
	"github.com/hpungsan/stump/internal/capture"
	"github.com/hpungsan/stump/internal/config"
	"github.com/hpungsan/stump/internal/errors"
	"github.com/hpungsan/stump/internal/report"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance. A nil db disables the index tools.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{db: db, cfg: cfg, logger: logger}
}

// Request types for each tool

// RunRequest represents the arguments for capture_run.
type RunRequest struct {
	TracePath  string `json:"trace_path"`
	OutputPath string `json:"output_path,omitempty"`
}

// InspectRequest represents the arguments for capture_inspect.
type InspectRequest struct {
	TracePath      string `json:"trace_path"`
	IncludeProject *bool  `json:"include_project,omitempty"`
}

// ListRequest represents the arguments for capture_list.
type ListRequest struct {
	Flavor string `json:"flavor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// IDRequest represents the arguments for capture_get and capture_delete.
type IDRequest struct {
	ID string `json:"id"`
}

// ReportRequest represents the arguments for capture_report.
type ReportRequest struct {
	TracePath string `json:"trace_path,omitempty"`
	ID        string `json:"id,omitempty"`
	Format    string `json:"format,omitempty"`
}

// TokenizeRequest represents the arguments for aot_tokenize.
type TokenizeRequest struct {
	Options string `json:"options"`
}

// Handler implementations

// HandleRun handles the capture_run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := capture.Run(ctx, h.logger, h.cfg, capture.Input{
		TracePath:  input.TracePath,
		OutputPath: input.OutputPath,
		IndexDB:    h.db,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInspect handles the capture_inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := capture.Inspect(ctx, h.logger, h.cfg, input.TracePath, "")
	if err != nil {
		return errorResult(err), nil
	}
	if input.IncludeProject != nil && !*input.IncludeProject {
		result.Project = ""
	}

	return successResult(result)
}

// HandleList handles the capture_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := capture.List(h.db, capture.ListInput{
		Flavor: input.Flavor,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the capture_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := capture.Get(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the capture_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := capture.Delete(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReport handles the capture_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := report.Generate(ctx, h.logger, h.cfg, h.db, report.Input{
		TracePath: input.TracePath,
		ID:        input.ID,
		Format:    input.Format,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// TokenizeResult is the aot_tokenize output.
type TokenizeResult struct {
	Options []aotargs.Option `json:"options"`
}

// HandleTokenize handles the aot_tokenize tool call.
func (h *Handlers) HandleTokenize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TokenizeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(TokenizeResult{Options: aotargs.Parse(input.Options)})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var stumpErr *errors.StumpError
	if stderrors.As(err, &stumpErr) {
		message := stumpErr.Message
		// Keep context added by wrappers, e.g. "Replay_X_0: ...".
		if prefix := strings.TrimSuffix(err.Error(), stumpErr.Error()); prefix != err.Error() {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    stumpErr.Code,
			"message": message,
		}
		if stumpErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if stumpErr.Details != nil {
			errorObj["details"] = stumpErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
