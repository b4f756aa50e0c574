package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/storage"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Storage is the subset of storage.Service exposed as tools.
type Storage interface {
	ListFacilities(ctx context.Context) ([]storage.FacilityRow, error)
	Get(ctx context.Context, id string) (*domain.Item, error)
	Tree(ctx context.Context, rootID string) (*storage.TreeNode, error)
	RegisterSample(ctx context.Context, title string) (*domain.Sample, error)
	GetSample(ctx context.Context, id string) (*domain.Sample, error)
	StoreSample(ctx context.Context, sampleID, boxID string, actor workflow.Actor) (*domain.Sample, error)
	RecoverSample(ctx context.Context, sampleID string, actor workflow.Actor) (*domain.Sample, error)
}

var _ Storage = (*storage.Service)(nil)

// Tool names.
const (
	ToolListFacilities = "list_facilities"
	ToolGetItem        = "get_item"
	ToolTree           = "tree"
	ToolRegisterSample = "register_sample"
	ToolStoreSample    = "store_sample"
	ToolRecoverSample  = "recover_sample"
	ToolWorkflowGraph  = "workflow_graph"
)

// FacilitiesResponse wraps the facility listing.
type FacilitiesResponse struct {
	Facilities []storage.FacilityRow `json:"facilities" jsonschema_description:"Facilities sorted by title"`
}

// SampleResponse carries a sample after a tool call.
type SampleResponse struct {
	Sample *domain.Sample `json:"sample" jsonschema_description:"The sample and its review state"`
}

// ItemArgs selects an item of the storage tree.
type ItemArgs struct {
	ID string `json:"id"`
}

// RegisterArgs names a new sample.
type RegisterArgs struct {
	Title string `json:"title"`
}

// SampleArgs moves a sample in or out of a box on behalf of an actor.
type SampleArgs struct {
	SampleID string `json:"sample_id"`
	BoxID    string `json:"box_id,omitempty"`
	ActorID  string `json:"actor_id,omitempty"`
	Roles    string `json:"roles,omitempty"`
}

// Actor builds the workflow actor from the comma separated role list.
func (a SampleArgs) Actor() workflow.Actor {
	actor := workflow.Actor{ID: a.ActorID}
	for _, r := range strings.Split(a.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			actor.Roles = append(actor.Roles, r)
		}
	}
	return actor
}

// Server exposes the storage service as an MCP server.
type Server struct {
	storage   Storage
	workflows ports.WorkflowStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
	tools     []string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Storage, workflows ports.WorkflowStore, version string, opts ...Option) *Server {
	s := &Server{
		storage:   svc,
		workflows: workflows,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("strata-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Tools returns the registered tool names.
func (s *Server) Tools() []string {
	return s.tools
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

func (s *Server) registerTools() {
	s.addTool(mcp.NewTool(ToolListFacilities,
		mcp.WithDescription("List storage facilities with their usage, sample count and capacity."),
		mcp.WithOutputSchema[FacilitiesResponse](),
	), mcp.NewStructuredToolHandler(s.listFacilities))

	s.addTool(mcp.NewTool(ToolGetItem,
		mcp.WithDescription("Get a facility, container or sample box by ID."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
		mcp.WithOutputSchema[domain.Item](),
	), mcp.NewStructuredToolHandler(s.getItem))

	s.addTool(mcp.NewTool(ToolTree,
		mcp.WithDescription("Render the storage tree below an item, or every facility when id is omitted."),
		mcp.WithString("id", mcp.Description("Root item ID (optional)")),
	), mcp.NewStructuredToolHandler(s.tree))

	s.addTool(mcp.NewTool(ToolRegisterSample,
		mcp.WithDescription("Register a new sample in the initial state of the sample workflow."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Sample title")),
		mcp.WithOutputSchema[SampleResponse](),
	), mcp.NewStructuredToolHandler(s.registerSample))

	s.addTool(mcp.NewTool(ToolStoreSample,
		mcp.WithDescription("Store a received sample in a free slot of a samples container."),
		mcp.WithString("sample_id", mcp.Required(), mcp.Description("Sample ID")),
		mcp.WithString("box_id", mcp.Required(), mcp.Description("Samples container ID")),
		mcp.WithString("actor_id", mcp.Description("Acting user")),
		mcp.WithString("roles", mcp.Description("Comma separated roles of the acting user")),
		mcp.WithOutputSchema[SampleResponse](),
	), mcp.NewStructuredToolHandler(s.storeSample))

	s.addTool(mcp.NewTool(ToolRecoverSample,
		mcp.WithDescription("Take a stored sample out of its box."),
		mcp.WithString("sample_id", mcp.Required(), mcp.Description("Sample ID")),
		mcp.WithString("actor_id", mcp.Description("Acting user")),
		mcp.WithString("roles", mcp.Description("Comma separated roles of the acting user")),
		mcp.WithOutputSchema[SampleResponse](),
	), mcp.NewStructuredToolHandler(s.recoverSample))

	s.addTool(mcp.NewTool(ToolWorkflowGraph,
		mcp.WithDescription("Render a workflow definition as a Mermaid diagram."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Workflow ID")),
	), s.workflowGraph)
}

func (s *Server) listFacilities(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (FacilitiesResponse, error) {
	rows, err := s.storage.ListFacilities(ctx)
	if err != nil {
		return FacilitiesResponse{}, err
	}
	return FacilitiesResponse{Facilities: rows}, nil
}

func (s *Server) getItem(ctx context.Context, _ mcp.CallToolRequest, args ItemArgs) (*domain.Item, error) {
	return s.storage.Get(ctx, args.ID)
}

func (s *Server) tree(ctx context.Context, _ mcp.CallToolRequest, args ItemArgs) (*storage.TreeNode, error) {
	return s.storage.Tree(ctx, args.ID)
}

func (s *Server) registerSample(ctx context.Context, _ mcp.CallToolRequest, args RegisterArgs) (SampleResponse, error) {
	sample, err := s.storage.RegisterSample(ctx, args.Title)
	if err != nil {
		return SampleResponse{}, err
	}
	return SampleResponse{Sample: sample}, nil
}

func (s *Server) storeSample(ctx context.Context, _ mcp.CallToolRequest, args SampleArgs) (SampleResponse, error) {
	sample, err := s.storage.StoreSample(ctx, args.SampleID, args.BoxID, args.Actor())
	if err != nil {
		s.logger.Warn("MCP store_sample rejected", "sample", args.SampleID, "box", args.BoxID, "error", err)
		return SampleResponse{}, err
	}
	return SampleResponse{Sample: sample}, nil
}

func (s *Server) recoverSample(ctx context.Context, _ mcp.CallToolRequest, args SampleArgs) (SampleResponse, error) {
	sample, err := s.storage.RecoverSample(ctx, args.SampleID, args.Actor())
	if err != nil {
		s.logger.Warn("MCP recover_sample rejected", "sample", args.SampleID, "error", err)
		return SampleResponse{}, err
	}
	return SampleResponse{Sample: sample}, nil
}

func (s *Server) workflowGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, err := s.workflows.GetWorkflow(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(def, nil)), nil
}

const facilitiesURI = "strata://facilities"

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(facilitiesURI, "Storage facilities",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		rows, err := s.storage.ListFacilities(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list facilities: %w", err)
		}
		jsonBytes, err := json.Marshal(rows)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      facilitiesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
