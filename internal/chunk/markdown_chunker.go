package chunk

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MarkdownChunkerOptions configures MarkdownChunker.
type MarkdownChunkerOptions struct {
	MaxChunkTokens int
	OverlapTokens  int
}

// MarkdownChunker implements the spec's "no-grammar, line-based heading
// parser" for markdown: sections are delimited by ATX headings rather than
// a tree-sitter query, and Signature uses the breadcrumb style ("H1 > H2").
type MarkdownChunker struct {
	options MarkdownChunkerOptions
}

var (
	headerPattern      = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)
)

// NewMarkdownChunker builds a chunker with default options.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(MarkdownChunkerOptions{})
}

// NewMarkdownChunkerWithOptions builds a chunker with custom token limits.
func NewMarkdownChunkerWithOptions(opts MarkdownChunkerOptions) *MarkdownChunker {
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = MaxWindowTokens
	}
	if opts.OverlapTokens == 0 {
		opts.OverlapTokens = WindowOverlap
	}
	return &MarkdownChunker{options: opts}
}

// Close is a no-op; MarkdownChunker holds no resources.
func (c *MarkdownChunker) Close() {}

// SupportedExtensions lists markdown file extensions.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".mdx"}
}

// Chunk splits a markdown file into one chunk per heading section (plus
// frontmatter, if present), further splitting any section whose content
// exceeds the token budget by paragraph.
func (c *MarkdownChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var chunks []*Chunk
	remaining := content
	lineOffset := 1

	if fm := frontmatterPattern.FindString(remaining); fm != "" {
		chunks = append(chunks, c.makeChunk(file, "Frontmatter", "", fm, 1))
		lineOffset += strings.Count(fm, "\n")
		remaining = remaining[len(fm):]
	}

	sections := parseMarkdownSections(remaining)
	if len(sections) == 0 {
		chunks = append(chunks, c.chunkByParagraphs(file, remaining, "", lineOffset)...)
		return chunks, nil
	}

	for _, sec := range sections {
		chunks = append(chunks, c.sectionChunks(file, sec, lineOffset)...)
	}
	return chunks, nil
}

type mdSection struct {
	level     int
	title     string
	path      string
	content   string
	startLine int // 0-indexed within remaining content
}

func parseMarkdownSections(content string) []*mdSection {
	lines := strings.Split(content, "\n")
	var sections []*mdSection
	headerStack := make([]string, 6)

	var current *mdSection
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.content = body.String()
			sections = append(sections, current)
			body.Reset()
		}
	}

	for lineNum, line := range lines {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			headerStack[level-1] = title
			for i := level; i < 6; i++ {
				headerStack[i] = ""
			}
			var parts []string
			for i := 0; i < level; i++ {
				if headerStack[i] != "" {
					parts = append(parts, headerStack[i])
				}
			}
			current = &mdSection{level: level, title: title, path: strings.Join(parts, " > "), startLine: lineNum}
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

func (c *MarkdownChunker) sectionChunks(file *FileInput, sec *mdSection, lineOffset int) []*Chunk {
	content := strings.TrimRight(sec.content, "\n")
	trimmed := strings.TrimSpace(content)
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 1 && headerPattern.MatchString(trimmed) {
		return nil // heading with no body
	}

	if estimateTokens(content) <= c.options.MaxChunkTokens {
		startLine := lineOffset + sec.startLine
		return []*Chunk{c.makeChunk(file, sec.title, sec.path, content, startLine)}
	}

	return c.splitSection(file, sec, content, lineOffset+sec.startLine)
}

func (c *MarkdownChunker) splitSection(file *FileInput, sec *mdSection, content string, startLine int) []*Chunk {
	paragraphs := mergeCodeBlocks(splitParagraphs(content))

	var chunks []*Chunk
	var buf strings.Builder
	currentStart := startLine
	lines := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, c.makeChunk(file, sec.title, sec.path, strings.TrimRight(buf.String(), "\n"), currentStart))
		buf.Reset()
		currentStart = startLine + lines
	}

	for _, para := range paragraphs {
		paraTokens := estimateTokens(para)
		if buf.Len() > 0 && estimateTokens(buf.String())+paraTokens > c.options.MaxChunkTokens {
			flush()
		}
		buf.WriteString(para)
		buf.WriteString("\n\n")
		lines += strings.Count(para, "\n") + 2
	}
	flush()
	return chunks
}

func (c *MarkdownChunker) chunkByParagraphs(file *FileInput, content, path string, lineOffset int) []*Chunk {
	paragraphs := splitParagraphs(content)

	var chunks []*Chunk
	var buf strings.Builder
	currentStart := lineOffset
	lines := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, c.makeChunk(file, "", path, strings.TrimRight(buf.String(), "\n"), currentStart))
		buf.Reset()
		currentStart = lineOffset + lines
	}

	for _, para := range paragraphs {
		paraTokens := estimateTokens(para)
		if buf.Len() > 0 && estimateTokens(buf.String())+paraTokens > c.options.MaxChunkTokens {
			flush()
		}
		buf.WriteString(para)
		buf.WriteString("\n\n")
		lines += strings.Count(para, "\n") + 2
	}
	flush()
	return chunks
}

func splitParagraphs(content string) []string {
	parts := strings.Split(content, "\n\n")
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// mergeCodeBlocks rejoins paragraphs that were split in the middle of a
// fenced code block, so a block is never torn across two chunks.
func mergeCodeBlocks(paragraphs []string) []string {
	var result []string
	var inBlock bool
	var buf strings.Builder

	for _, para := range paragraphs {
		if inBlock {
			buf.WriteString("\n\n")
			buf.WriteString(para)
			if strings.Contains(para, "```") {
				result = append(result, buf.String())
				buf.Reset()
				inBlock = false
			}
			continue
		}
		if strings.Count(para, "```")%2 == 1 {
			inBlock = true
			buf.WriteString(para)
			continue
		}
		result = append(result, para)
	}
	if inBlock {
		result = append(result, buf.String())
	}
	return result
}

func (c *MarkdownChunker) makeChunk(file *FileInput, title, path, content string, startLine int) *Chunk {
	hash := blake2b.Sum256([]byte(content))
	signature := path
	if signature == "" {
		signature = title
	}
	return &Chunk{
		ID:          NewID(file.Path, startLine, hash),
		FilePath:    file.Path,
		Language:    "markdown",
		Kind:        KindSection,
		Name:        title,
		Signature:   signature,
		Source:      content,
		StartLine:   startLine,
		EndLine:     startLine + strings.Count(content, "\n"),
		ContentHash: hash,
	}
}

func estimateTokens(s string) int {
	n := len(s) / TokensPerChar
	if n < 1 && s != "" {
		n = 1
	}
	return n
}
