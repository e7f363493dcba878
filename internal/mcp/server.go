package mcp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	cqserrors "github.com/cqlabs/cqs/internal/errors"
	"github.com/cqlabs/cqs/internal/diffparse"
	"github.com/cqlabs/cqs/internal/diffstore"
	"github.com/cqlabs/cqs/internal/gc"
	"github.com/cqlabs/cqs/internal/gitignore"
	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/health"
	"github.com/cqlabs/cqs/internal/notes"
	"github.com/cqlabs/cqs/internal/search"
	"github.com/cqlabs/cqs/internal/store"
	"github.com/cqlabs/cqs/internal/telemetry"
	"github.com/cqlabs/cqs/pkg/version"
)

// maxRequestBody caps a single HTTP MCP request body per spec section 6.
const maxRequestBody = 1 << 20 // 1 MiB

// Embedder is the narrow embedding capability the search/scout/where tools
// need. internal/embed's client types satisfy this structurally.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Server is the MCP server exposing cqs's store and graph-analysis
// operations as JSON-RPC tools, over either stdio or HTTP.
type Server struct {
	mcp      *mcp.Server
	store    store.Store
	embedder Embedder
	hnsw     store.VectorStore // optional; nil means no ANN index loaded

	rootPath  string
	notesPath string
	authToken string // empty disables HTTP bearer auth
	project   *ProjectInfo

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewServer builds a Server over s. embedder and hnsw may be nil; tools
// that need them degrade gracefully (search falls back to name-only
// matching, health reports a nil vector count).
func NewServer(s store.Store, embedder Embedder, hnsw store.VectorStore, rootPath, notesPath string) (*Server, error) {
	if s == nil {
		return nil, errors.New("store is required")
	}

	srv := &Server{
		store:     s,
		embedder:  embedder,
		hnsw:      hnsw,
		rootPath:  rootPath,
		notesPath: notesPath,
		project:   NewProjectDetector(rootPath, slog.Default()).Detect(),
		logger:    slog.Default(),
		metrics:   telemetry.NewMetrics(),
	}

	srv.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "cqs",
		Version: version.Version,
	}, nil)

	srv.registerTools()
	return srv, nil
}

// SetAuthToken sets the bearer token the HTTP transport requires. An empty
// token (the default) leaves the HTTP transport unauthenticated.
func (s *Server) SetAuthToken(token string) {
	s.authToken = token
}

// Metrics returns the server's Prometheus metrics, for wiring the /metrics
// endpoint or sharing with index-side instrumentation.
func (s *Server) Metrics() *telemetry.Metrics {
	return s.metrics
}

// MCPServer returns the underlying SDK server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server's name and version.
func (s *Server) Info() (name, ver string) {
	return "cqs", version.Version
}

// noteEntries loads the project's notes file fresh on every call; notes.toml
// is small and rarely changes mid-session, so no caching layer is needed.
func (s *Server) noteEntries() []notes.Entry {
	if s.notesPath == "" {
		return nil
	}
	entries, err := notes.LoadFile(s.notesPath)
	if err != nil {
		s.logger.Warn("failed to load notes", slog.String("error", err.Error()))
		return nil
	}
	return entries
}

func (s *Server) hnswCount() *int {
	if s.hnsw == nil {
		return nil
	}
	n := s.hnsw.Count()
	return &n
}

// track records one tool call's outcome and latency against the shared
// Prometheus metrics, and logs failures.
func (s *Server) track(name string, start time.Time, err error) {
	s.metrics.Observe(name, err, time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("tool call failed", slog.String("tool", name), slog.String("error", err.Error()))
	}
}

// registerTools wires every tool named in the richer MCP tool set onto the
// SDK server, one mcp.AddTool call per tool.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid vector + lexical search over the indexed codebase. Returns the best-matching functions, methods, and types ranked by combined semantic and name relevance.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "callers",
		Description: "List every known caller of a function or method by name.",
	}, s.handleCallers)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "callees",
		Description: "List every function or method a given function calls.",
	}, s.handleCallees)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "deps",
		Description: "Report type-level dependencies: chunks that use a given type, or types a given chunk uses.",
	}, s.handleDeps)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "test_map",
		Description: "Find every test that transitively exercises a function, via reverse call-graph BFS.",
	}, s.handleTestMap)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "dead_code",
		Description: "Find chunks whose name never appears as a callee, bucketed by confidence (unexported vs. exported).",
	}, s.handleDeadCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "impact_diff",
		Description: "Given a git diff against base_ref, report every changed function, its callers, and which of those callers are tests.",
	}, s.handleImpactDiff)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scout",
		Description: "Pre-investigation dashboard for an upcoming task: the chunks most relevant to it, grouped by file and role.",
	}, s.handleScout)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "gather",
		Description: "Expand a function's call-graph neighborhood (callers and callees) out to a given depth.",
	}, s.handleGather)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "where",
		Description: "Suggest file locations for a description of new code to write, based on conventions observed in similar existing chunks.",
	}, s.handleWhere)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Report index size: chunk count, file count, schema version, embedding model, last-indexed time.",
	}, s.handleStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "health",
		Description: "Full codebase-health snapshot: index size, note coverage, staleness, dead code, and call-graph hotspots.",
	}, s.handleHealth)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "gc",
		Description: "Report stale and missing files the index would prune on the next `cqs gc --apply` or `cqs index`. Read-only; never deletes.",
	}, s.handleGC)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "diff_stores",
		Description: "Semantic diff between this index and a reference store: chunks added, removed, or modified, matched by name and file.",
	}, s.handleDiffStores)

	s.logger.Info("MCP tools registered", slog.Int("count", 14))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("search", start, err) }()

	if input.Query == "" {
		err = NewInvalidParamsError("query is required")
		return nil, SearchOutput{}, err
	}

	opts := search.Options{
		Limit:     input.Limit,
		Threshold: input.Threshold,
		Language:  input.Language,
		Kind:      input.Kind,
		PathGlob:  input.PathGlob,
		NameOnly:  input.NameOnly || s.embedder == nil,
		Pattern:   search.Pattern(input.Pattern),
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	var emb search.Embedder
	if s.embedder != nil {
		emb = s.embedder
	}

	var results []search.Result
	results, err = search.Search(ctx, s.store, emb, input.Query, opts, s.noteEntries())
	if err != nil {
		mapped := MapError(err)
		return nil, SearchOutput{}, mapped
	}
	s.metrics.SearchResults.Observe(float64(len(results)))

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, toSearchResultOutput(r))
	}
	return nil, out, nil
}

func (s *Server) handleCallers(ctx context.Context, _ *mcp.CallToolRequest, input CallersInput) (*mcp.CallToolResult, CallersOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("callers", start, err) }()

	if input.Name == "" {
		err = NewInvalidParamsError("name is required")
		return nil, CallersOutput{}, err
	}
	callers, callErr := graph.Callers(ctx, s.store, input.Name)
	if callErr != nil {
		err = callErr
		return nil, CallersOutput{}, MapError(err)
	}
	return nil, CallersOutput{Callers: callers}, nil
}

func (s *Server) handleCallees(ctx context.Context, _ *mcp.CallToolRequest, input CalleesInput) (*mcp.CallToolResult, CalleesOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("callees", start, err) }()

	if input.Name == "" {
		err = NewInvalidParamsError("name is required")
		return nil, CalleesOutput{}, err
	}
	callees, callErr := graph.Callees(ctx, s.store, input.Name, input.FileHint)
	if callErr != nil {
		err = callErr
		return nil, CalleesOutput{}, MapError(err)
	}
	return nil, CalleesOutput{Callees: callees}, nil
}

func (s *Server) handleDeps(ctx context.Context, _ *mcp.CallToolRequest, input DepsInput) (*mcp.CallToolResult, DepsOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("deps", start, err) }()

	if input.TypeName == "" && input.ChunkName == "" {
		err = NewInvalidParamsError("type_name or chunk_name is required")
		return nil, DepsOutput{}, err
	}

	var out DepsOutput
	if input.TypeName != "" {
		edges, usersErr := s.store.GetTypeUsers(ctx, input.TypeName)
		if usersErr != nil {
			err = usersErr
			return nil, DepsOutput{}, MapError(err)
		}
		for _, e := range edges {
			c, getErr := s.store.GetChunk(ctx, e.ChunkID)
			if getErr != nil || c == nil {
				continue
			}
			out.Users = append(out.Users, chunkEdgeOutput{Name: c.Name, File: c.FilePath, Kind: string(c.Kind)})
		}
	}
	if input.ChunkName != "" {
		edges, usedErr := s.store.GetTypesUsedBy(ctx, input.ChunkName)
		if usedErr != nil {
			err = usedErr
			return nil, DepsOutput{}, MapError(err)
		}
		for _, e := range edges {
			out.UsedBy = append(out.UsedBy, typeEdgeOutput{TypeName: e.TypeName, Kind: string(e.Kind)})
		}
	}
	return nil, out, nil
}

func (s *Server) handleTestMap(ctx context.Context, _ *mcp.CallToolRequest, input TestMapInput) (*mcp.CallToolResult, *TestMapOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("test_map", start, err) }()

	if input.Target == "" {
		err = NewInvalidParamsError("target is required")
		return nil, nil, err
	}
	result, mapErr := graph.TestMap(ctx, s.store, input.Target, input.MaxDepth)
	if mapErr != nil {
		err = mapErr
		return nil, nil, MapError(err)
	}
	return nil, result, nil
}

func (s *Server) handleDeadCode(ctx context.Context, _ *mcp.CallToolRequest, _ DeadCodeInput) (*mcp.CallToolResult, *DeadCodeOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("dead_code", start, err) }()

	result, deadErr := graph.DeadCode(ctx, s.store)
	if deadErr != nil {
		err = deadErr
		return nil, nil, MapError(err)
	}
	return nil, result, nil
}

func (s *Server) handleImpactDiff(ctx context.Context, _ *mcp.CallToolRequest, input ImpactDiffInput) (*mcp.CallToolResult, *ImpactDiffOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("impact_diff", start, err) }()

	diffText, acquireErr := diffparse.AcquireDiff(s.rootPath, input.BaseRef)
	if acquireErr != nil {
		err = cqserrors.InputError("failed to acquire diff: "+acquireErr.Error(), acquireErr)
		return nil, nil, MapError(err)
	}

	hunks := diffparse.ParseUnifiedDiff(diffText)
	changed, mapErr := graph.MapHunksToFunctions(ctx, s.store, hunks)
	if mapErr != nil {
		err = mapErr
		return nil, nil, MapError(err)
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = graph.DefaultMaxImpactDepth
	}
	result, analyzeErr := graph.AnalyzeDiffImpact(ctx, s.store, changed, maxDepth)
	if analyzeErr != nil {
		err = analyzeErr
		return nil, nil, MapError(err)
	}
	return nil, result, nil
}

func (s *Server) handleScout(ctx context.Context, _ *mcp.CallToolRequest, input ScoutInput) (*mcp.CallToolResult, *ScoutOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("scout", start, err) }()

	if input.Task == "" {
		err = NewInvalidParamsError("task is required")
		return nil, nil, err
	}
	if s.embedder == nil {
		err = cqserrors.New(cqserrors.ErrCodeEmbedderDown, "no embedder configured; scout needs semantic similarity", nil)
		return nil, nil, MapError(err)
	}
	result, scoutErr := graph.Scout(ctx, s.store, s.embedder, input.Task, input.Limit)
	if scoutErr != nil {
		err = scoutErr
		return nil, nil, MapError(err)
	}
	return nil, result, nil
}

func (s *Server) handleGather(ctx context.Context, _ *mcp.CallToolRequest, input GatherInput) (*mcp.CallToolResult, *GatherOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("gather", start, err) }()

	if input.Seed == "" {
		err = NewInvalidParamsError("seed is required")
		return nil, nil, err
	}
	result, gatherErr := graph.Gather(ctx, s.store, input.Seed, input.Depth, input.Limit)
	if gatherErr != nil {
		err = gatherErr
		return nil, nil, MapError(err)
	}
	return nil, result, nil
}

func (s *Server) handleWhere(ctx context.Context, _ *mcp.CallToolRequest, input WhereInput) (*mcp.CallToolResult, WhereOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("where", start, err) }()

	if input.Description == "" {
		err = NewInvalidParamsError("description is required")
		return nil, WhereOutput{}, err
	}
	if s.embedder == nil {
		err = cqserrors.New(cqserrors.ErrCodeEmbedderDown, "no embedder configured; where needs semantic similarity", nil)
		return nil, WhereOutput{}, MapError(err)
	}
	suggestions, whereErr := graph.SuggestPlacement(ctx, s.store, s.embedder, input.Description, input.Limit)
	if whereErr != nil {
		err = whereErr
		return nil, WhereOutput{}, MapError(err)
	}
	return nil, WhereOutput{Suggestions: suggestions}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("stats", start, err) }()

	stats, statsErr := s.store.Stats(ctx)
	if statsErr != nil {
		err = statsErr
		return nil, StatsOutput{}, MapError(err)
	}
	return nil, StatsOutput{Project: stats}, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *mcp.CallToolRequest, _ HealthInput) (*mcp.CallToolResult, *HealthOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("health", start, err) }()

	current, scanErr := scanWorkingTreeMtimes(s.rootPath)
	if scanErr != nil {
		err = cqserrors.InputError("failed to scan project files: "+scanErr.Error(), scanErr)
		return nil, nil, MapError(err)
	}
	report, checkErr := health.Check(ctx, s.store, current, s.hnswCount())
	if checkErr != nil {
		err = checkErr
		return nil, nil, MapError(err)
	}
	return nil, report, nil
}

func (s *Server) handleGC(ctx context.Context, _ *mcp.CallToolRequest, _ GCInput) (*mcp.CallToolResult, *GCOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("gc", start, err) }()

	current, scanErr := scanWorkingTreeMtimes(s.rootPath)
	if scanErr != nil {
		err = cqserrors.InputError("failed to scan project files: "+scanErr.Error(), scanErr)
		return nil, nil, MapError(err)
	}
	report, planErr := gc.Plan(ctx, s.store, current)
	if planErr != nil {
		err = planErr
		return nil, nil, MapError(err)
	}
	return nil, report, nil
}

func (s *Server) handleDiffStores(ctx context.Context, _ *mcp.CallToolRequest, input DiffStoresInput) (*mcp.CallToolResult, *DiffStoresOutput, error) {
	start := time.Now()
	var err error
	defer func() { s.track("diff_stores", start, err) }()

	if input.ReferencePath == "" {
		err = NewInvalidParamsError("reference_path is required")
		return nil, nil, err
	}
	refStore, openErr := store.NewSQLiteStore(input.ReferencePath)
	if openErr != nil {
		err = cqserrors.Wrap(cqserrors.ErrCodeFileNotFound, openErr)
		return nil, nil, MapError(err)
	}
	defer refStore.Close()

	refName := input.ReferenceName
	if refName == "" {
		refName = input.ReferencePath
	}

	result, diffErr := diffstore.Diff(ctx, s.store, refStore, "current", refName)
	if diffErr != nil {
		err = diffErr
		return nil, nil, MapError(err)
	}
	return nil, result, nil
}

// Serve starts the server with the given transport ("stdio" or "http").
// For "http", addr is the listen address; requests are authenticated with
// a bearer token when one was set via SetAuthToken.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport), slog.String("addr", addr))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		}
		return err
	case "http":
		return s.serveHTTP(ctx, addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, http)", transport)
	}
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", s.authMiddleware(s.bodyLimitMiddleware(handler)))
	mux.HandleFunc("/health", s.handleHTTPHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHTTPHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"project": s.project,
	})
}

// authMiddleware rejects requests missing a matching Bearer token, using a
// constant-time comparison per spec section 6. A no-op when no token is
// configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.authToken == "" {
		return next
	}
	want := "Bearer " + s.authToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			mcpErr := &MCPError{Code: ErrCodeInvalidRequest, Message: "unauthorized"}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(mcpErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bodyLimitMiddleware caps request bodies at maxRequestBody per spec
// section 6, returning a protocol error rather than letting a client
// exhaust server memory.
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if r.ContentLength > maxRequestBody {
			mcpErr := MapError(cqserrors.New(cqserrors.ErrCodeProtocolBodyTooLarge, "request body exceeds 1 MiB", nil))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_ = json.NewEncoder(w).Encode(mcpErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// scanWorkingTreeMtimes walks rootPath collecting each tracked regular
// file's mtime, honoring .gitignore and skipping the .cq index directory,
// the shape health/gc's staleness check compares against stored chunks.
func scanWorkingTreeMtimes(rootPath string) (map[string]time.Time, error) {
	current := make(map[string]time.Time)
	if rootPath == "" {
		return current, nil
	}

	matcher := gitignore.New()
	_ = matcher.AddFromFile(filepath.Join(rootPath, ".gitignore"), "")

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".cq" {
				return filepath.SkipDir
			}
			if matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		current[rel] = info.ModTime()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}
