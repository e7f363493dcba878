// Package chunk extracts retrievable code units from source files using
// tree-sitter grammars, one LanguageDef per supported language.
package chunk

import (
	"context"
	"fmt"
)

// Default chunking tunables. MaxWindowTokens is the markdown chunker's
// per-section token budget before a section is split by paragraph.
// WindowOverlap is the default overlap between code windows, in bytes; code
// bodies themselves are split by the byte-based WindowThreshold.
const (
	MaxWindowTokens  = 512
	WindowOverlap    = 64
	MinChunkTokens   = 100
	TokensPerChar    = 4
)

// Kind enumerates the symbol kinds a chunk can represent.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindTrait     Kind = "trait"
	KindInterface Kind = "interface"
	KindConst     Kind = "const"
	// KindSection marks a markdown heading section; markdown has no
	// grammar-level symbol kinds, so headings are the chunk unit instead.
	KindSection Kind = "section"
)

// Chunk is a single extracted code unit: a function, method, type
// declaration, or similar, plus the bookkeeping needed to detect changes on
// reindex and to stitch oversized bodies back together.
type Chunk struct {
	// ID has the form "<file>:<line_start>:<first-8-hex-of-content-hash>"
	// and is deterministic given (FilePath, StartLine, ContentHash).
	ID string

	FilePath  string
	Language  string
	Kind      Kind
	Name      string
	Signature string
	Source    string
	DocString string

	StartLine int // 1-indexed
	EndLine   int // inclusive

	// ContentHash is the 32-byte hash of Source.
	ContentHash [32]byte

	// ParentID and WindowIdx are set together when this chunk is one slice
	// of a function body too large to embed as a single window. ParentID
	// names the chunk sharing this chunk's Name and FilePath.
	ParentID  string
	WindowIdx *int
}

// NewID computes the deterministic chunk identifier from its components.
func NewID(filePath string, startLine int, hash [32]byte) string {
	return fmt.Sprintf("%s:%d:%x", filePath, startLine, hash[:4])
}

// FileInput is the input to a Chunker.
type FileInput struct {
	Path     string
	Content  []byte
	Language string
}

// Chunker splits a file's content into chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}

// CallEdge is a directed edge from a caller chunk to a callee, identified
// only by short name since cross-file resolution is heuristic.
type CallEdge struct {
	CallerName  string
	CallerFile  string
	CalleeName  string
	CallerLine  int
	CallSiteLine int
}

// TypeEdgeKind enumerates the ways a chunk can reference a type.
type TypeEdgeKind string

const (
	TypeEdgeParam  TypeEdgeKind = "param"
	TypeEdgeReturn TypeEdgeKind = "return"
	TypeEdgeField  TypeEdgeKind = "field"
	TypeEdgeImpl   TypeEdgeKind = "impl"
	TypeEdgeBound  TypeEdgeKind = "bound"
	TypeEdgeAlias  TypeEdgeKind = "alias"
	TypeEdgeRef    TypeEdgeKind = "type_ref"
)

// TypeEdge is a directed edge from a chunk to a referenced type name.
type TypeEdge struct {
	ChunkID  string
	TypeName string
	Kind     TypeEdgeKind
}

// Point is a 0-indexed row/column position in source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a simplified AST node surfaced by the parser layer.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Tree is a parsed file's AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}
