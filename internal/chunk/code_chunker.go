package chunk

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/crypto/blake2b"
)

// WindowThreshold is the byte size above which a chunk's source is split
// into overlapping windows (spec step 6).
const WindowThreshold = 8 * 1024

// CodeChunkerOptions configures CodeChunker.
type CodeChunkerOptions struct {
	WindowThreshold int
	WindowOverlap   int
}

// CodeChunker extracts Chunks, CallEdges, and TypeEdges from source files
// using each language's tree-sitter queries.
type CodeChunker struct {
	parser   *Parser
	registry *LanguageRegistry
	opts     CodeChunkerOptions
}

// NewCodeChunker builds a chunker with default options.
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithOptions(CodeChunkerOptions{})
}

// NewCodeChunkerWithOptions builds a chunker with custom windowing options.
func NewCodeChunkerWithOptions(opts CodeChunkerOptions) *CodeChunker {
	if opts.WindowThreshold == 0 {
		opts.WindowThreshold = WindowThreshold
	}
	if opts.WindowOverlap == 0 {
		opts.WindowOverlap = WindowOverlap
	}
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
		opts:     opts,
	}
}

// Close releases parser resources.
func (c *CodeChunker) Close() {
	c.parser.Close()
}

// SupportedExtensions lists the extensions this chunker can parse.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits file into Chunks. Files whose language has no grammar (or no
// entry at all) yield zero chunks rather than an error — the caller decides
// whether that's fatal for the batch.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	def, ok := c.registry.GetByName(file.Language)
	if !ok || def.Grammar == nil {
		return nil, nil
	}

	result, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		// Unparseable file contributes no chunks but doesn't abort the batch.
		return nil, nil
	}

	symbols, err := extractSymbols(def, result.RawRoot, file.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Path, err)
	}

	chunks := make([]*Chunk, 0, len(symbols))
	seenIDs := make(map[string]bool)

	for _, sym := range symbols {
		name := sym.name
		if sym.kind == KindFunction && sym.node.Type() == "method_declaration" {
			// Go methods have no enclosing container node; qualify them by
			// their receiver's type instead.
			sym.kind = KindMethod
			if recv := sym.node.ChildByFieldName("receiver"); recv != nil && recv.NamedChildCount() > 0 {
				if t := recv.NamedChild(0).ChildByFieldName("type"); t != nil {
					recvType := strings.TrimPrefix(t.Content(file.Content), "*")
					if i := strings.IndexByte(recvType, '['); i >= 0 {
						recvType = recvType[:i]
					}
					name = recvType + "::" + name
				}
			}
		} else if sym.kind == KindMethod {
			if container := qualifiedContainerName(sym.node, def.MethodContainers, file.Content); container != "" {
				name = container + "::" + name
			}
		}

		source := sym.node.Content(file.Content)
		hash := blake2b.Sum256([]byte(source))
		startLine := int(sym.node.StartPoint().Row) + 1
		endLine := int(sym.node.EndPoint().Row) + 1
		id := NewID(file.Path, startLine, hash)
		if seenIDs[id] {
			continue
		}
		seenIDs[id] = true

		chunk := &Chunk{
			ID:          id,
			FilePath:    file.Path,
			Language:    file.Language,
			Kind:        sym.kind,
			Name:        name,
			Signature:   def.Signature(source),
			Source:      source,
			DocString:   extractDocString(def, sym.node, file.Content),
			StartLine:   startLine,
			EndLine:     endLine,
			ContentHash: hash,
		}
		chunks = append(chunks, chunk)

		windows := splitIntoWindows(chunk, c.opts.WindowThreshold, c.opts.WindowOverlap)
		chunks = append(chunks, windows...)
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })
	return chunks, nil
}

// splitIntoWindows implements step 6: a chunk whose source exceeds
// threshold bytes also yields overlapping window chunks that share the
// parent's name and point back at it via ParentID/WindowIdx. The parent
// chunk itself stays in the result alongside its windows and is stored and
// embedded like any other chunk.
func splitIntoWindows(parent *Chunk, threshold, overlap int) []*Chunk {
	if len(parent.Source) <= threshold {
		return nil
	}

	var windows []*Chunk
	lines := strings.Split(parent.Source, "\n")
	idx := 0
	pos := 0
	for pos < len(lines) {
		var buf strings.Builder
		startLineOffset := pos
		for pos < len(lines) && buf.Len() < threshold {
			buf.WriteString(lines[pos])
			buf.WriteByte('\n')
			pos++
		}
		windowSource := buf.String()
		hash := blake2b.Sum256([]byte(windowSource))
		startLine := parent.StartLine + startLineOffset
		endLine := parent.StartLine + pos - 1

		wIdx := idx
		windows = append(windows, &Chunk{
			ID:          NewID(parent.FilePath, startLine, hash),
			FilePath:    parent.FilePath,
			Language:    parent.Language,
			Kind:        parent.Kind,
			Name:        parent.Name,
			Signature:   parent.Signature,
			Source:      windowSource,
			DocString:   parent.DocString,
			StartLine:   startLine,
			EndLine:     endLine,
			ContentHash: hash,
			ParentID:    parent.ID,
			WindowIdx:   &wIdx,
		})
		idx++

		if pos < len(lines) {
			// back up by the overlap so consecutive windows share tail context
			overlapLines := overlap / 40 // rough line estimate from byte overlap
			if overlapLines > 0 && pos-overlapLines > startLineOffset {
				pos -= overlapLines
			}
		}
	}
	return windows
}

// qualifiedContainerName walks up from n to the nearest ancestor whose type
// is in containers and returns that ancestor's name child, if any.
func qualifiedContainerName(n *sitter.Node, containers []string, source []byte) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		for _, c := range containers {
			if p.Type() != c {
				continue
			}
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				return nameNode.Content(source)
			}
			// impl blocks in Rust name the type via a "type" field, not "name"
			if typeNode := p.ChildByFieldName("type"); typeNode != nil {
				return typeNode.Content(source)
			}
		}
	}
	return ""
}

// ExtractCalls runs the file's call query and buckets call sites by the
// chunk whose line range contains the call (spec step 7).
func (c *CodeChunker) ExtractCalls(ctx context.Context, file *FileInput, chunks []*Chunk) ([]CallEdge, error) {
	def, ok := c.registry.GetByName(file.Language)
	if !ok || def.Grammar == nil || def.CallQuery == "" {
		return nil, nil
	}
	result, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return nil, nil
	}

	owner := func(line int) (string, string) {
		for _, ch := range chunks {
			if ch.ParentID != "" {
				continue
			}
			if line >= ch.StartLine && line <= ch.EndLine {
				return ch.Name, ch.FilePath
			}
		}
		return "", ""
	}

	return extractCalls(def, result.RawRoot, file.Content, owner)
}

// ExtractTypeEdges runs the file's type query and attributes each reference
// to its enclosing chunk, skipping names in the language's common-types set
// (spec step 8).
func (c *CodeChunker) ExtractTypeEdges(ctx context.Context, file *FileInput, chunks []*Chunk) ([]TypeEdge, error) {
	def, ok := c.registry.GetByName(file.Language)
	if !ok || def.Grammar == nil || def.TypeQuery == "" {
		return nil, nil
	}
	result, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return nil, nil
	}

	common := make(map[string]bool, len(def.CommonTypes))
	for _, t := range def.CommonTypes {
		common[t] = true
	}

	owner := func(line int) string {
		for _, ch := range chunks {
			if ch.ParentID != "" {
				continue
			}
			if line >= ch.StartLine && line <= ch.EndLine {
				return ch.ID
			}
		}
		return ""
	}

	edges, err := extractTypeEdges(def, result.RawRoot, file.Content, owner)
	if err != nil {
		return nil, err
	}

	filtered := edges[:0]
	for _, e := range edges {
		if !common[e.TypeName] {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}
