package chunk

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// captureKind maps a chunk-query capture name to the Kind it denotes.
var captureKind = map[string]Kind{
	"function":  KindFunction,
	"class":     KindClass,
	"struct":    KindStruct,
	"enum":      KindEnum,
	"trait":     KindTrait,
	"interface": KindInterface,
	"const":     KindConst,
}

// rawSymbol is one chunk-query match resolved to its defining node and name.
type rawSymbol struct {
	node *sitter.Node
	name string
	kind Kind
}

// extractSymbols runs a LanguageDef's chunk query against a parsed tree and
// returns one rawSymbol per match, classifying methods vs. free functions by
// walking ancestors for a MethodContainers match.
func extractSymbols(def *LanguageDef, root *sitter.Node, source []byte) ([]rawSymbol, error) {
	if def.Grammar == nil || def.ChunkQuery == "" {
		return nil, nil
	}

	query, err := sitter.NewQuery([]byte(def.ChunkQuery), def.Grammar())
	if err != nil {
		return nil, fmt.Errorf("compiling chunk query for %s: %w", def.Name, err)
	}

	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, root)

	var symbols []rawSymbol
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}

		var defNode *sitter.Node
		var name string
		var kind Kind

		for _, c := range m.Captures {
			captureName := query.CaptureNameForId(c.Index)
			if captureName == "name" {
				name = c.Node.Content(source)
				continue
			}
			if k, ok := captureKind[captureName]; ok {
				defNode = c.Node
				kind = k
			}
		}

		if defNode == nil || name == "" {
			continue
		}
		if kind == KindFunction && inMethodContainer(defNode, def.MethodContainers) {
			kind = KindMethod
		}

		symbols = append(symbols, rawSymbol{node: defNode, name: name, kind: kind})
	}

	return symbols, nil
}

func inMethodContainer(n *sitter.Node, containers []string) bool {
	if len(containers) == 0 {
		return false
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		for _, c := range containers {
			if p.Type() == c {
				return true
			}
		}
	}
	return false
}

// extractDocString looks at the node's immediately preceding sibling for a
// comment/docstring node type named in def.DocNodes.
func extractDocString(def *LanguageDef, n *sitter.Node, source []byte) string {
	if len(def.DocNodes) == 0 {
		return ""
	}
	parent := n.Parent()
	if parent == nil {
		return ""
	}

	var prevSibling *sitter.Node
	for i := 0; i < int(parent.ChildCount()); i++ {
		child := parent.Child(i)
		if child == n {
			break
		}
		prevSibling = child
	}
	if prevSibling == nil {
		return ""
	}
	for _, docType := range def.DocNodes {
		if prevSibling.Type() == docType {
			return strings.TrimSpace(stripCommentMarkers(prevSibling.Content(source)))
		}
	}
	return ""
}

func stripCommentMarkers(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "///")
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimSuffix(s, "*/")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimPrefix(s, "#")
	s = strings.Trim(s, "\"'")
	return strings.TrimSpace(s)
}

// extractCalls runs a LanguageDef's call query, returning the short callee
// names referenced by the chunk that contains each call site.
func extractCalls(def *LanguageDef, root *sitter.Node, source []byte, owner func(line int) (name, file string)) ([]CallEdge, error) {
	if def.CallQuery == "" {
		return nil, nil
	}

	query, err := sitter.NewQuery([]byte(def.CallQuery), def.Grammar())
	if err != nil {
		return nil, fmt.Errorf("compiling call query for %s: %w", def.Name, err)
	}

	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, root)

	var edges []CallEdge
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			if query.CaptureNameForId(c.Index) != "callee" {
				continue
			}
			line := int(c.Node.StartPoint().Row) + 1
			callerName, callerFile := owner(line)
			if callerName == "" {
				continue
			}
			edges = append(edges, CallEdge{
				CallerName:   callerName,
				CallerFile:   callerFile,
				CalleeName:   c.Node.Content(source),
				CallSiteLine: line,
			})
		}
	}
	return edges, nil
}

// typeCaptureKind maps a type-query capture name to a TypeEdgeKind.
var typeCaptureKind = map[string]TypeEdgeKind{
	"param_type":  TypeEdgeParam,
	"return_type": TypeEdgeReturn,
	"field_type":  TypeEdgeField,
	"impl_type":   TypeEdgeImpl,
	"bound_type":  TypeEdgeBound,
	"alias_type":  TypeEdgeAlias,
	"type_ref":    TypeEdgeRef,
}

// extractTypeEdges runs a LanguageDef's type query, attributing each
// reference to the chunk whose line range contains it.
func extractTypeEdges(def *LanguageDef, root *sitter.Node, source []byte, owner func(line int) string) ([]TypeEdge, error) {
	if def.TypeQuery == "" {
		return nil, nil
	}

	query, err := sitter.NewQuery([]byte(def.TypeQuery), def.Grammar())
	if err != nil {
		return nil, fmt.Errorf("compiling type query for %s: %w", def.Name, err)
	}

	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, root)

	var edges []TypeEdge
	seen := make(map[string]bool)
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			kind, ok := typeCaptureKind[query.CaptureNameForId(c.Index)]
			if !ok {
				continue
			}
			line := int(c.Node.StartPoint().Row) + 1
			chunkID := owner(line)
			if chunkID == "" {
				continue
			}
			typeName := c.Node.Content(source)
			key := chunkID + "|" + typeName + "|" + string(kind)
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, TypeEdge{ChunkID: chunkID, TypeName: typeName, Kind: kind})
		}
	}
	return edges, nil
}
