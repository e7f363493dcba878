package mcp

import (
	"github.com/cqlabs/cqs/internal/diffstore"
	"github.com/cqlabs/cqs/internal/gc"
	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/health"
	"github.com/cqlabs/cqs/internal/search"
	"github.com/cqlabs/cqs/internal/store"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query     string  `json:"query" jsonschema:"the hybrid search query to execute"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Language  string  `json:"language,omitempty" jsonschema:"filter by language: go, python, javascript, typescript, rust, markdown"`
	Kind      string  `json:"kind,omitempty" jsonschema:"filter by chunk kind: function, method, type, class, interface"`
	PathGlob  string  `json:"path_glob,omitempty" jsonschema:"shell-style glob matched against the file path"`
	Pattern   string  `json:"pattern,omitempty" jsonschema:"filter by structural tag: builder, error_swallow, async, mutex, unsafe, recursion"`
	NameOnly  bool    `json:"name_only,omitempty" jsonschema:"skip embedding and match on symbol name only"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum combined score to keep a result"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
}

// SearchResultOutput is one hybrid-search hit rendered for an MCP client.
type SearchResultOutput struct {
	FilePath  string  `json:"file_path"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Language  string  `json:"language"`
	Signature string  `json:"signature,omitempty"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score"`
	VecScore  float64 `json:"vec_score"`
	NameScore float64 `json:"name_score"`
	Source    string  `json:"source,omitempty"`
}

func toSearchResultOutput(r search.Result) SearchResultOutput {
	if r.Chunk == nil {
		return SearchResultOutput{}
	}
	return SearchResultOutput{
		FilePath:  r.Chunk.FilePath,
		Name:      r.Chunk.Name,
		Kind:      string(r.Chunk.Kind),
		Language:  r.Chunk.Language,
		Signature: r.Chunk.Signature,
		StartLine: r.Chunk.StartLine,
		EndLine:   r.Chunk.EndLine,
		Score:     r.Score,
		VecScore:  r.VecScore,
		NameScore: r.NameScore,
		Source:    r.Source,
	}
}

// CallersInput defines the input schema for the callers tool.
type CallersInput struct {
	Name string `json:"name" jsonschema:"the function or method name to find callers of"`
}

// CallersOutput defines the output schema for the callers tool.
type CallersOutput struct {
	Callers []store.CallEdgeRecord `json:"callers"`
}

// CalleesInput defines the input schema for the callees tool.
type CalleesInput struct {
	Name     string `json:"name" jsonschema:"the function or method name to find callees of"`
	FileHint string `json:"file_hint,omitempty" jsonschema:"narrow to the caller defined in this file, when name is ambiguous"`
}

// CalleesOutput defines the output schema for the callees tool.
type CalleesOutput struct {
	Callees []store.CallEdgeRecord `json:"callees"`
}

// DepsInput defines the input schema for the deps tool.
type DepsInput struct {
	TypeName  string `json:"type_name,omitempty" jsonschema:"list chunks that use this type"`
	ChunkName string `json:"chunk_name,omitempty" jsonschema:"list types used by this chunk"`
}

// DepsOutput defines the output schema for the deps tool. Users resolves
// each user edge's chunk ID to a name/file for readability; UsedBy reports
// raw type names since the "used" side of that edge isn't itself a chunk.
type DepsOutput struct {
	Users  []chunkEdgeOutput `json:"users,omitempty"`
	UsedBy []typeEdgeOutput  `json:"used_by,omitempty"`
}

type chunkEdgeOutput struct {
	Name string `json:"name"`
	File string `json:"file"`
	Kind string `json:"kind"`
}

type typeEdgeOutput struct {
	TypeName string `json:"type_name"`
	Kind     string `json:"kind"`
}

// TestMapInput defines the input schema for the test_map tool.
type TestMapInput struct {
	Target   string `json:"target" jsonschema:"the function or method name to find tests covering"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"maximum reverse-call-graph depth to search, default 5"`
}

// TestMapOutput defines the output schema for the test_map tool.
type TestMapOutput = graph.TestMapResult

// DeadCodeInput defines the input schema for the dead_code tool (no parameters).
type DeadCodeInput struct{}

// DeadCodeOutput defines the output schema for the dead_code tool.
type DeadCodeOutput = graph.DeadCodeResult

// ImpactDiffInput defines the input schema for the impact_diff tool.
type ImpactDiffInput struct {
	BaseRef  string `json:"base_ref,omitempty" jsonschema:"git revision to diff against, defaults to HEAD"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"maximum reverse-call-graph depth, default 5"`
}

// ImpactDiffOutput defines the output schema for the impact_diff tool.
type ImpactDiffOutput = graph.DiffImpactResult

// ScoutInput defines the input schema for the scout tool.
type ScoutInput struct {
	Task  string `json:"task" jsonschema:"a natural-language description of the task about to be undertaken"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to surface, default 20"`
}

// ScoutOutput defines the output schema for the scout tool.
type ScoutOutput = graph.ScoutResult

// GatherInput defines the input schema for the gather tool.
type GatherInput struct {
	Seed  string `json:"seed" jsonschema:"the function or method name to expand a neighborhood around"`
	Depth int    `json:"depth,omitempty" jsonschema:"neighborhood depth, default 2"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum nodes per direction, default 50"`
}

// GatherOutput defines the output schema for the gather tool.
type GatherOutput = graph.GatherResult

// WhereInput defines the input schema for the where tool.
type WhereInput struct {
	Description string `json:"description" jsonschema:"a description of the new code to place"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of suggestions, default 5"`
}

// WhereOutput defines the output schema for the where tool.
type WhereOutput struct {
	Suggestions []graph.PlacementSuggestion `json:"suggestions"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	Project store.Stats `json:"project"`
}

// HealthInput defines the input schema for the health tool (no parameters).
type HealthInput struct{}

// HealthOutput defines the output schema for the health tool.
type HealthOutput = health.Report

// GCInput defines the input schema for the gc tool (no parameters; this tool
// only plans, it never deletes — `cqs gc --apply` is a CLI-only operation).
type GCInput struct{}

// GCOutput defines the output schema for the gc tool.
type GCOutput = gc.Report

// DiffStoresInput defines the input schema for the diff_stores tool.
type DiffStoresInput struct {
	ReferencePath string `json:"reference_path" jsonschema:"filesystem path to the reference store's .cq directory"`
	ReferenceName string `json:"reference_name,omitempty" jsonschema:"label for the reference store in the result, defaults to its path"`
}

// DiffStoresOutput defines the output schema for the diff_stores tool.
type DiffStoresOutput = diffstore.Result

// ProjectInfo describes the indexed project's identity.
type ProjectInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}
