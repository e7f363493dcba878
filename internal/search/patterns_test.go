package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPatterns_Builder(t *testing.T) {
	src := `func NewThing() *Thing {
		return &Thing{}
	}
	func (t *Thing) WithName(name string) *Thing {
		t.name = name
		return t
	}`
	tags := DetectPatterns("WithName", src)
	assert.Contains(t, tags, PatternBuilder)
}

func TestDetectPatterns_ErrorSwallow(t *testing.T) {
	src := `if err != nil {
	}`
	tags := DetectPatterns("f", src)
	assert.Contains(t, tags, PatternErrorSwallow)
}

func TestDetectPatterns_Async(t *testing.T) {
	src := `func run() {
		go func() {
			doWork()
		}()
	}`
	tags := DetectPatterns("run", src)
	assert.Contains(t, tags, PatternAsync)
}

func TestDetectPatterns_Mutex(t *testing.T) {
	src := `type T struct { mu sync.Mutex }
	func (t *T) Do() { t.mu.Lock() }`
	tags := DetectPatterns("Do", src)
	assert.Contains(t, tags, PatternMutex)
}

func TestDetectPatterns_Unsafe(t *testing.T) {
	src := `func peek(p unsafe.Pointer) {}`
	tags := DetectPatterns("peek", src)
	assert.Contains(t, tags, PatternUnsafe)
}

func TestDetectPatterns_Recursion(t *testing.T) {
	src := `func fib(n int) int {
		if n < 2 { return n }
		return fib(n-1) + fib(n-2)
	}`
	tags := DetectPatterns("fib", src)
	assert.Contains(t, tags, PatternRecursion)
}

func TestDetectPatterns_NoFalsePositiveOnPlainFunction(t *testing.T) {
	src := `func add(a, b int) int {
		return a + b
	}`
	tags := DetectPatterns("add", src)
	assert.NotContains(t, tags, PatternRecursion)
	assert.NotContains(t, tags, PatternAsync)
	assert.NotContains(t, tags, PatternMutex)
}

func TestHasPattern_MatchesSingleTag(t *testing.T) {
	src := `func fib(n int) int { return fib(n-1) }`
	assert.True(t, HasPattern("fib", src, PatternRecursion))
	assert.False(t, HasPattern("fib", src, PatternMutex))
}
