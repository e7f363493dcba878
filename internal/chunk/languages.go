package chunk

import (
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// SignatureStyle controls how a chunk's first-line signature is truncated
// from its full source text.
type SignatureStyle int

const (
	// SignatureUntilBrace truncates at the opening '{' of the body.
	SignatureUntilBrace SignatureStyle = iota
	// SignatureUntilColon truncates at the trailing ':' (Python).
	SignatureUntilColon
	// SignatureBreadcrumb builds a "H1 > H2 > H3" path (markdown).
	SignatureBreadcrumb
)

// LanguageDef is a data-plus-function-pointer record describing how to
// extract chunks, calls, and type references from one language. There is no
// inheritance between languages; each is a standalone static value, and a
// registry maps extensions and names to the matching definition.
type LanguageDef struct {
	Name       string
	Grammar    func() *sitter.Language // nil for grammar-less languages (markdown)
	Extensions []string

	// ChunkQuery is a tree-sitter S-expression query whose captures name
	// the chunk kind (@function, @class, @struct, @enum, @trait, @interface,
	// @const) and its name (@name).
	ChunkQuery string
	// CallQuery captures @callee identifiers at call sites. Empty if the
	// language has no call-graph support.
	CallQuery string
	// TypeQuery captures @param_type, @return_type, @field_type, @impl_type,
	// @bound_type, @alias_type, and a catch-all @type_ref.
	TypeQuery string

	SignatureStyle SignatureStyle
	// DocNodes are node types treated as a doc comment when one is a
	// chunk's immediately preceding sibling.
	DocNodes []string
	// MethodContainers are node types whose enclosed functions (at any
	// depth) are classified as methods rather than free functions.
	MethodContainers []string

	Stopwords []string
	// ExtractReturnNL derives a short natural-language description of a
	// signature's return type, or "" if none can be derived.
	ExtractReturnNL func(signature string) string
	// TestFileSuggestion proposes a conventional test file path for a
	// source file named stem living in directory parent. Nil if the
	// language has no well-known convention.
	TestFileSuggestion func(stem, parent string) string

	// CommonTypes are built-in/stdlib type names excluded from the
	// "types used by" graph as noise.
	CommonTypes []string

	// IsTestName reports whether a chunk name matches this language's test
	// naming convention. Nil means the language has no such convention.
	IsTestName func(name string) bool

	// IsExported reports whether a chunk's name/signature indicates external
	// visibility, per the language's own convention (export keyword,
	// capitalization, pub modifier, leading underscore).
	IsExported func(name, signature string) bool
}

func untilBrace(src string) string {
	if i := strings.IndexByte(src, '{'); i >= 0 {
		return strings.TrimSpace(src[:i])
	}
	return strings.TrimSpace(src)
}

func untilColon(src string) string {
	if i := strings.IndexByte(src, ':'); i >= 0 {
		return strings.TrimSpace(src[:i])
	}
	return strings.TrimSpace(src)
}

// Signature truncates source according to the style. It only ever looks at
// the first line, so multi-line bodies never leak into the result.
func (d *LanguageDef) Signature(source string) string {
	firstLine := source
	if i := strings.IndexByte(source, '\n'); i >= 0 {
		firstLine = source[:i]
	}
	switch d.SignatureStyle {
	case SignatureUntilColon:
		return untilColon(firstLine)
	case SignatureBreadcrumb:
		return strings.TrimSpace(firstLine)
	default:
		return untilBrace(firstLine)
	}
}

func goReturn(sig string) string {
	// Returns everything after the last ')' in sig, so `) T` yields
	// "Returns T". A parenthesised result list such as `) (int, error)`
	// ends in ')' itself and yields "".
	idx := strings.LastIndex(sig, ")")
	if idx < 0 || idx == len(sig)-1 {
		return ""
	}
	ret := strings.TrimSpace(sig[idx+1:])
	if ret == "" {
		return ""
	}
	return "Returns " + ret
}

func rustReturn(sig string) string {
	if arrow := strings.Index(sig, "->"); arrow >= 0 {
		ret := strings.TrimSpace(sig[arrow+2:])
		if ret == "" {
			return ""
		}
		return "Returns " + ret
	}
	return ""
}

func pythonReturn(sig string) string {
	if arrow := strings.LastIndex(sig, "->"); arrow >= 0 {
		ret := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sig[arrow+2:]), ":"))
		if ret == "" {
			return ""
		}
		return "Returns " + ret
	}
	return ""
}

func tsReturn(sig string) string {
	if colon := strings.LastIndex(sig, "):"); colon >= 0 {
		ret := strings.TrimSpace(sig[colon+2:])
		if ret == "" {
			return ""
		}
		return "Returns " + ret
	}
	return ""
}

const goChunkQuery = `
(function_declaration
  name: (identifier) @name) @function

(method_declaration
  name: (field_identifier) @name) @function

(type_declaration
  (type_spec
    name: (type_identifier) @name
    type: (struct_type))) @struct

(type_declaration
  (type_spec
    name: (type_identifier) @name
    type: (interface_type))) @interface

(type_declaration
  (type_spec
    name: (type_identifier) @name)) @struct

(const_declaration
  (const_spec
    name: (identifier) @name)) @const
`

const goCallQuery = `
(call_expression
  function: (identifier) @callee)

(call_expression
  function: (selector_expression
    field: (field_identifier) @callee))
`

const goTypeQuery = `
(parameter_declaration type: (type_identifier) @param_type)
(parameter_declaration type: (pointer_type (type_identifier) @param_type))

(function_declaration result: (type_identifier) @return_type)
(method_declaration result: (type_identifier) @return_type)

(field_declaration type: (type_identifier) @field_type)
(field_declaration type: (pointer_type (type_identifier) @field_type))

(type_identifier) @type_ref
`

var goStopwords = []string{
	"func", "package", "import", "return", "if", "else", "for", "range", "switch",
	"case", "default", "break", "continue", "go", "defer", "chan", "select", "var",
	"const", "type", "struct", "interface", "map", "nil", "true", "false", "iota",
	"err", "ok",
}

func goTestFileSuggestion(stem, parent string) string {
	return fmt.Sprintf("%s/%s_test.go", parent, stem)
}

func goIsTestName(name string) bool {
	return strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") || strings.HasPrefix(name, "Example")
}

func pythonIsTestName(name string) bool {
	return strings.HasPrefix(name, "test_") || strings.HasPrefix(name, "Test")
}

func rustIsTestName(name string) bool {
	return strings.HasPrefix(name, "test_")
}

func goIsExported(name, _ string) bool {
	return name != "" && strings.ToUpper(name[:1]) == name[:1]
}

func pythonIsExported(name, _ string) bool {
	return !strings.HasPrefix(name, "_")
}

func rustIsExported(_, signature string) bool {
	return strings.Contains(signature, "pub ")
}

func jsIsExported(_, signature string) bool {
	return strings.Contains(signature, "export ")
}

func pythonTestFileSuggestion(stem, parent string) string {
	return fmt.Sprintf("%s/test_%s.py", parent, stem)
}

func rustTestFileSuggestion(stem, parent string) string {
	return fmt.Sprintf("%s/tests/%s_test.rs", parent, stem)
}

const pythonChunkQuery = `
(function_definition
  name: (identifier) @name) @function

(class_definition
  name: (identifier) @name) @class
`

const pythonCallQuery = `
(call
  function: (identifier) @callee)

(call
  function: (attribute
    attribute: (identifier) @callee))
`

const pythonTypeQuery = `
(typed_parameter type: (type (identifier) @param_type))
(typed_parameter type: (type (generic_type (identifier) @param_type)))
(typed_default_parameter type: (type (identifier) @param_type))

(function_definition return_type: (type (identifier) @return_type))
(function_definition return_type: (type (generic_type (identifier) @return_type)))

(class_definition superclasses: (argument_list (identifier) @impl_type))

(type (identifier) @type_ref)
`

var pythonStopwords = []string{
	"def", "class", "self", "return", "if", "elif", "else", "for", "while", "import",
	"from", "as", "with", "try", "except", "finally", "raise", "pass", "break", "continue",
	"and", "or", "not", "in", "is", "true", "false", "none", "lambda", "yield", "global",
	"nonlocal",
}

var pythonCommonTypes = []string{
	"str", "int", "float", "bool", "list", "dict", "set", "tuple", "None", "Any", "Optional",
	"Union", "List", "Dict", "Set", "Tuple", "Type", "Callable", "Iterator", "Generator",
	"Coroutine", "Exception", "ValueError", "TypeError", "KeyError", "IndexError", "Path", "Self",
}

const jsChunkQuery = `
(function_declaration
  name: (identifier) @name) @function

(method_definition
  name: (property_identifier) @name) @function

(lexical_declaration
  (variable_declarator
    name: (identifier) @name
    value: (arrow_function) @function))

(variable_declaration
  (variable_declarator
    name: (identifier) @name
    value: (arrow_function) @function))

(class_declaration
  name: (identifier) @name) @class
`

const tsChunkQuery = `
(function_declaration
  name: (identifier) @name) @function

(method_definition
  name: (property_identifier) @name) @function

(lexical_declaration
  (variable_declarator
    name: (identifier) @name
    value: (arrow_function) @function))

(variable_declaration
  (variable_declarator
    name: (identifier) @name
    value: (arrow_function) @function))

(class_declaration
  name: (type_identifier) @name) @class

(interface_declaration
  name: (type_identifier) @name) @interface

(enum_declaration
  name: (identifier) @name) @enum
`

const jsCallQuery = `
(call_expression
  function: (identifier) @callee)

(call_expression
  function: (member_expression
    property: (property_identifier) @callee))
`

var jsStopwords = []string{
	"function", "const", "let", "var", "return", "if", "else", "for", "while", "do",
	"switch", "case", "break", "continue", "new", "this", "class", "extends", "import",
	"export", "from", "default", "try", "catch", "finally", "throw", "async", "await",
	"true", "false", "null", "undefined", "typeof", "instanceof", "void",
}

const rustChunkQuery = `
(function_item
  name: (identifier) @name) @function

(struct_item
  name: (type_identifier) @name) @struct

(enum_item
  name: (type_identifier) @name) @enum

(trait_item
  name: (type_identifier) @name) @trait

(const_item
  name: (identifier) @name) @const

(static_item
  name: (identifier) @name) @const
`

const rustCallQuery = `
(call_expression
  function: (identifier) @callee)

(call_expression
  function: (field_expression
    field: (field_identifier) @callee))

(call_expression
  function: (scoped_identifier
    name: (identifier) @callee))

(macro_invocation
  macro: (identifier) @callee)
`

const rustTypeQuery = `
(parameter type: (type_identifier) @param_type)
(parameter type: (generic_type type: (type_identifier) @param_type))
(parameter type: (reference_type type: (type_identifier) @param_type))

(function_item return_type: (type_identifier) @return_type)
(function_item return_type: (generic_type type: (type_identifier) @return_type))
(function_item return_type: (reference_type type: (type_identifier) @return_type))

(field_declaration type: (type_identifier) @field_type)
(field_declaration type: (generic_type type: (type_identifier) @field_type))

(impl_item type: (type_identifier) @impl_type)
(impl_item trait: (type_identifier) @impl_type)

(trait_bounds (type_identifier) @bound_type)

(type_item type: (type_identifier) @alias_type)

(type_identifier) @type_ref
`

var rustStopwords = []string{
	"fn", "let", "mut", "pub", "use", "impl", "mod", "struct", "enum", "trait", "type",
	"where", "const", "static", "unsafe", "async", "await", "move", "ref", "self", "super",
	"crate", "return", "if", "else", "for", "while", "loop", "match", "break", "continue",
	"as", "in", "true", "false", "some", "none", "ok", "err",
}

var markdownStopwords = []string{
	"the", "and", "for", "with", "that", "this", "from", "are", "was", "will", "can", "has",
	"have", "been", "being", "also", "such", "each", "when", "which", "would", "about", "into",
	"over", "after", "before", "more", "than", "then", "only", "very", "just", "may", "must",
	"should", "could", "does", "did", "had", "not", "but", "all", "any", "both", "its", "our",
	"their", "there", "here", "where", "what", "how", "who", "see", "use", "used", "using",
	"following", "example", "note", "important", "below", "above", "refer", "section", "page",
	"chapter", "figure", "table",
}

// LanguageRegistry resolves file extensions and language names to a
// LanguageDef.
type LanguageRegistry struct {
	mu        sync.RWMutex
	defs      map[string]*LanguageDef
	extToLang map[string]string
}

// NewLanguageRegistry builds a registry preloaded with every language cqs
// supports.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		defs:      make(map[string]*LanguageDef),
		extToLang: make(map[string]string),
	}
	for _, def := range []*LanguageDef{
		goDef(), pythonDef(), javascriptDef(), typescriptDef(), tsxDef(), rustDef(), markdownDef(),
	} {
		r.register(def)
	}
	return r
}

func (r *LanguageRegistry) register(def *LanguageDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	for _, ext := range def.Extensions {
		r.extToLang["."+ext] = def.Name
	}
}

// GetByExtension resolves a file extension (with or without leading dot) to
// its LanguageDef.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	def, ok := r.defs[name]
	return def, ok
}

// GetByName resolves a language name to its LanguageDef.
func (r *LanguageRegistry) GetByName(name string) (*LanguageDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// SupportedExtensions lists every registered extension, dot-prefixed.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func goDef() *LanguageDef {
	return &LanguageDef{
		Name:               "go",
		Grammar:            golang.GetLanguage,
		Extensions:         []string{"go"},
		ChunkQuery:         goChunkQuery,
		CallQuery:          goCallQuery,
		TypeQuery:          goTypeQuery,
		SignatureStyle:     SignatureUntilBrace,
		DocNodes:           []string{"comment"},
		MethodContainers:   []string{},
		Stopwords:          goStopwords,
		ExtractReturnNL:    goReturn,
		TestFileSuggestion: goTestFileSuggestion,
		IsTestName:         goIsTestName,
		IsExported:         goIsExported,
	}
}

func pythonDef() *LanguageDef {
	return &LanguageDef{
		Name:               "python",
		Grammar:            python.GetLanguage,
		Extensions:         []string{"py", "pyi"},
		ChunkQuery:         pythonChunkQuery,
		CallQuery:          pythonCallQuery,
		TypeQuery:          pythonTypeQuery,
		SignatureStyle:     SignatureUntilColon,
		DocNodes:           []string{"string", "comment"},
		MethodContainers:   []string{"class_definition"},
		Stopwords:          pythonStopwords,
		ExtractReturnNL:    pythonReturn,
		TestFileSuggestion: pythonTestFileSuggestion,
		CommonTypes:        pythonCommonTypes,
		IsTestName:         pythonIsTestName,
		IsExported:         pythonIsExported,
	}
}

func javascriptDef() *LanguageDef {
	return &LanguageDef{
		Name:             "javascript",
		Grammar:          javascript.GetLanguage,
		Extensions:       []string{"js", "jsx", "mjs", "cjs"},
		ChunkQuery:       jsChunkQuery,
		CallQuery:        jsCallQuery,
		SignatureStyle:   SignatureUntilBrace,
		DocNodes:         []string{"comment"},
		MethodContainers: []string{"class_body", "class_declaration"},
		Stopwords:        jsStopwords,
		ExtractReturnNL:  func(string) string { return "" },
		IsExported:       jsIsExported,
	}
}

func typescriptDef() *LanguageDef {
	return &LanguageDef{
		Name:             "typescript",
		Grammar:          typescript.GetLanguage,
		Extensions:       []string{"ts"},
		ChunkQuery:       tsChunkQuery,
		CallQuery:        jsCallQuery,
		SignatureStyle:   SignatureUntilBrace,
		DocNodes:         []string{"comment"},
		MethodContainers: []string{"class_body", "class_declaration"},
		Stopwords:        jsStopwords,
		ExtractReturnNL:  tsReturn,
		IsExported:       jsIsExported,
	}
}

func tsxDef() *LanguageDef {
	d := *typescriptDef()
	d.Name = "tsx"
	d.Grammar = tsx.GetLanguage
	d.Extensions = []string{"tsx"}
	return &d
}

func rustDef() *LanguageDef {
	return &LanguageDef{
		Name:               "rust",
		Grammar:            rust.GetLanguage,
		Extensions:         []string{"rs"},
		ChunkQuery:         rustChunkQuery,
		CallQuery:          rustCallQuery,
		TypeQuery:          rustTypeQuery,
		SignatureStyle:     SignatureUntilBrace,
		DocNodes:           []string{"line_comment", "block_comment"},
		MethodContainers:   []string{"impl_item", "trait_item"},
		Stopwords:          rustStopwords,
		ExtractReturnNL:    rustReturn,
		TestFileSuggestion: rustTestFileSuggestion,
		IsTestName:         rustIsTestName,
		IsExported:         rustIsExported,
	}
}

// markdownDef has no tree-sitter grammar; markdownChunker parses headings
// line by line instead.
func markdownDef() *LanguageDef {
	return &LanguageDef{
		Name:            "markdown",
		Grammar:         nil,
		Extensions:      []string{"md", "mdx"},
		SignatureStyle:  SignatureBreadcrumb,
		Stopwords:       markdownStopwords,
		ExtractReturnNL: func(string) string { return "" },
	}
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
