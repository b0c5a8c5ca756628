package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

var (
	// ErrExportDisabled is returned for file exports when no export directory is configured.
	ErrExportDisabled = errors.New("export to file is disabled")
	// ErrOutsideExportDir is returned when an export path leaves the export directory.
	ErrOutsideExportDir = errors.New("export path is outside the export directory")
)

// Engine is the notebook service exposed as MCP tools.
type Engine interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (domain.Notebook, error)
	Execute(ctx context.Context, name string, cells []int) ([]domain.CellExecution, error)
	Export(ctx context.Context, name string, w io.Writer) error
	ExportFile(ctx context.Context, name, path string) error
}

// CellView is a cell as listed by list_cells.
type CellView struct {
	Index    int    `json:"index" jsonschema_description:"Position of the cell in the notebook"`
	Kind     string `json:"kind" jsonschema_description:"code or markup"`
	Language string `json:"language"`
	Value    string `json:"value"`
	Output   string `json:"output,omitempty" jsonschema_description:"First output of the cell, if any"`
}

// CellsResponse is returned by list_cells.
type CellsResponse struct {
	Notebook string     `json:"notebook"`
	Cells    []CellView `json:"cells"`
}

// RunResponse is returned by run_cells.
type RunResponse struct {
	Notebook   string                 `json:"notebook"`
	Executions []domain.CellExecution `json:"executions"`
}

type notebookArgs struct {
	Notebook string `mapstructure:"notebook"`
}

type runArgs struct {
	Notebook string `mapstructure:"notebook"`
	Cells    []int  `mapstructure:"cells"`
}

type exportArgs struct {
	Notebook string `mapstructure:"notebook"`
	Path     string `mapstructure:"path"`
}

// Server exposes an Engine as an MCP server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	exportDir string
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithExportDir lets export_notebook write files below dir. Relative paths are
// resolved against it and nothing outside it, symlinks included, is written.
// Without it the tool only returns the exported text.
func WithExportDir(dir string) Option {
	return func(s *Server) {
		s.exportDir = dir
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("mnb-mcp", strings.TrimSpace(version), server.WithToolCapabilities(false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_notebooks",
		mcp.WithDescription("List the names of the stored notebooks."),
	), s.handleListNotebooks)

	s.mcpServer.AddTool(mcp.NewTool("list_cells",
		mcp.WithDescription("List the cells of a notebook with their last output."),
		mcp.WithString("notebook", mcp.Required(), mcp.Description("Notebook name")),
		mcp.WithOutputSchema[CellsResponse](),
	), s.handleListCells)

	s.mcpServer.AddTool(mcp.NewTool("run_cells",
		mcp.WithDescription("Execute cells of a notebook and save the results. Runs every code cell when no index is given."),
		mcp.WithString("notebook", mcp.Required(), mcp.Description("Notebook name")),
		mcp.WithArray("cells", mcp.Description("Cell indexes to run, in order"), mcp.Items(map[string]any{"type": "integer", "minimum": 0})),
		mcp.WithOutputSchema[RunResponse](),
	), s.handleRunCells)

	s.mcpServer.AddTool(mcp.NewTool("export_notebook",
		mcp.WithDescription("Export the code cells of a notebook as a Syntheto file. Returns the text when no path is given."),
		mcp.WithString("notebook", mcp.Required(), mcp.Description("Notebook name")),
		mcp.WithString("path", mcp.Description("Destination file inside the workspace (optional)")),
	), s.handleExport)
}

// decodeArgs maps the loosely typed tool arguments onto a struct.
func decodeArgs(req mcp.CallToolRequest, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(req.GetArguments())
}

func structured(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultStructured(v, string(data))
}

func (s *Server) handleListNotebooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.engine.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if names == nil {
		names = []string{}
	}
	return structured(map[string][]string{"notebooks": names}), nil
}

func (s *Server) handleListCells(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args notebookArgs
	if err := decodeArgs(req, &args); err != nil || args.Notebook == "" {
		return mcp.NewToolResultError("notebook is required"), nil
	}

	nb, err := s.engine.Get(ctx, args.Notebook)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := CellsResponse{Notebook: args.Notebook, Cells: make([]CellView, 0, nb.Len())}
	for i, c := range nb.Cells {
		view := CellView{Index: i, Kind: c.Kind.String(), Language: c.Language, Value: c.Text}
		if len(c.Outputs) > 0 {
			view.Output = c.Outputs[0].Text()
		}
		resp.Cells = append(resp.Cells, view)
	}
	return structured(resp), nil
}

func (s *Server) handleRunCells(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args runArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Notebook == "" {
		return mcp.NewToolResultError("notebook is required"), nil
	}

	execs, err := s.engine.Execute(ctx, args.Notebook, args.Cells)
	if err != nil {
		s.logger.Warn("MCP run_cells failed", "notebook", args.Notebook, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if execs == nil {
		execs = []domain.CellExecution{}
	}
	return structured(RunResponse{Notebook: args.Notebook, Executions: execs}), nil
}

func (s *Server) handleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args exportArgs
	if err := decodeArgs(req, &args); err != nil || args.Notebook == "" {
		return mcp.NewToolResultError("notebook is required"), nil
	}

	if args.Path != "" {
		path, err := s.exportPath(args.Path)
		if err != nil {
			s.logger.Warn("MCP export_notebook refused", "path", args.Path, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.engine.ExportFile(ctx, args.Notebook, path); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("exported to " + path), nil
	}

	var sb strings.Builder
	if err := s.engine.Export(ctx, args.Notebook, &sb); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// exportPath resolves a requested destination and checks it stays in the export directory.
func (s *Server) exportPath(p string) (string, error) {
	if s.exportDir == "" {
		return "", ErrExportDisabled
	}
	root, err := filepath.Abs(s.exportDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !within(root, p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideExportDir, p)
	}

	// The closest existing ancestor decides where the write really lands.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	existing := p
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	if real != realRoot && !within(realRoot, real) {
		return "", fmt.Errorf("%w: %s", ErrOutsideExportDir, p)
	}
	return p, nil
}

// within reports whether path is strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
