package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter for AST parsing, keeping both the raw
// tree-sitter node (for query execution) and a plain Node tree (for
// generic walks that don't need queries).
type Parser struct {
	parser   *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a parser backed by the default language registry.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser(), registry: DefaultRegistry()}
}

// NewParserWithRegistry creates a parser backed by a custom registry.
func NewParserWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{parser: sitter.NewParser(), registry: registry}
}

// ParseResult bundles a parsed tree's raw tree-sitter root (for queries)
// with the plain Node conversion.
type ParseResult struct {
	Tree    *Tree
	RawRoot *sitter.Node
}

// Parse parses source for the named language.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*ParseResult, error) {
	def, ok := p.registry.GetByName(language)
	if !ok || def.Grammar == nil {
		return nil, fmt.Errorf("no tree-sitter grammar for language: %s", language)
	}

	p.parser.SetLanguage(def.Grammar())

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("failed to parse source: nil tree")
	}

	root := convertNode(tsTree.RootNode(), source)
	return &ParseResult{
		Tree:    &Tree{Root: root, Source: source, Language: language},
		RawRoot: tsTree.RootNode(),
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

func convertNode(tsNode *sitter.Node, source []byte) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:       tsNode.Type(),
		StartByte:  tsNode.StartByte(),
		EndByte:    tsNode.EndByte(),
		StartPoint: Point{Row: tsNode.StartPoint().Row, Column: tsNode.StartPoint().Column},
		EndPoint:   Point{Row: tsNode.EndPoint().Row, Column: tsNode.EndPoint().Column},
		HasError:   tsNode.HasError(),
		Children:   make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			node.Children = append(node.Children, convertNode(child, source))
		}
	}

	return node
}

// GetContent returns the source slice a node spans.
func (n *Node) GetContent(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType returns the first direct child of the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// FindChildrenByType returns all direct children of the given type.
func (n *Node) FindChildrenByType(nodeType string) []*Node {
	var result []*Node
	for _, child := range n.Children {
		if child.Type == nodeType {
			result = append(result, child)
		}
	}
	return result
}

// FindAllByType recursively finds every node of the given type.
func (n *Node) FindAllByType(nodeType string) []*Node {
	var result []*Node
	if n.Type == nodeType {
		result = append(result, n)
	}
	for _, child := range n.Children {
		result = append(result, child.FindAllByType(nodeType)...)
	}
	return result
}

// Walk traverses the tree depth-first, stopping early if fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
