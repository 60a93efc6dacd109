// Package jit compiles utility tokens found in markup class attributes
// (e.g. "md:hover:bg-[#ff0000]") into CSS rules, injecting exactly one rule
// per distinct token into a managed stylesheet.
package jit

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"jitcss/css"
)

// Options configures Engine.
type Options struct {
	Breakpoints     map[string]string
	DarkClass       string
	ClassAttributes []string
	Properties      PropertyMap
}

// WithBreakpoints adds (or redefines) named breakpoints.
func WithBreakpoints(bp map[string]string) func(*Options) {
	return func(o *Options) {
		o.Breakpoints = bp
	}
}

// WithDarkClass sets ancestor class used by "dark" variant.
func WithDarkClass(name string) func(*Options) {
	return func(o *Options) {
		if name != "" {
			o.DarkClass = name
		}
	}
}

// WithClassAttributes sets attributes scanned for tokens.
func WithClassAttributes(attrs ...string) func(*Options) {
	return func(o *Options) {
		if len(attrs) > 0 {
			o.ClassAttributes = attrs
		}
	}
}

// WithProperties merges custom property mapping at construction time.
func WithProperties(custom PropertyMap) func(*Options) {
	return func(o *Options) {
		o.Properties = custom
	}
}

// Stats summarizes engine activity.
type Stats struct {
	Attempts int // grammar invocations, at most one per distinct token
	Compiled int
	Skipped  int
	Rules    int // rules in the sheet
}

// Engine owns memo table, resolver table and stylesheet handle. All
// compilation is serialized by the engine, so memo check and insertion are
// atomic even when Scan is called from several goroutines.
type Engine struct {
	log        *zap.Logger
	darkClass  string
	classAttrs []string
	variants   *Variants

	mu       sync.Mutex
	resolver *Resolver
	sink     *sink
	memo     *memo
	attempts int
	tree     Tree
	watcher  *Watcher
}

// NewEngine creates engine which inserts compiled rules into sheet.
func NewEngine(sheet StyleSheet, log *zap.Logger, options ...func(*Options)) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("jit")

	opts := &Options{DarkClass: "dark", ClassAttributes: []string{"class"}}
	for _, setOpt := range options {
		setOpt(opts)
	}

	e := &Engine{
		log:        log,
		darkClass:  opts.DarkClass,
		classAttrs: opts.ClassAttributes,
		variants:   NewVariants(opts.Breakpoints),
		resolver:   NewResolver(log),
		sink:       &sink{sheet: sheet, log: log},
		memo:       newMemo(),
	}
	e.resolver.Merge(opts.Properties)
	return e
}

var defaultEngine = sync.OnceValue(func() *Engine {
	return NewEngine(css.NewSheet(nil), nil)
})

// Default returns process wide engine backed by in-memory sheet, for simple
// embedding.
func Default() *Engine {
	return defaultEngine()
}

// Init merges custom mapping into resolver table, scans tree and, when tree is
// observable, installs watcher (replacing previously installed one).
// Previously skipped tokens are forgotten so they get a chance with the
// extended table, compiled ones are kept since their rules are already in the
// sheet.
func (e *Engine) Init(tree Tree, custom PropertyMap) []CompiledRule {
	e.mu.Lock()
	added := e.resolver.Merge(custom)
	forgotten := e.memo.forgetSkipped()
	old := e.watcher
	e.tree, e.watcher = tree, nil
	e.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	e.log.Debug("Initializing", zap.Int("custom properties", added), zap.Int("forgotten tokens", forgotten))

	rules := e.Scan(tree)

	if obs, ok := tree.(Observable); ok {
		w := newWatcher(e, obs)
		e.mu.Lock()
		e.watcher = w
		e.mu.Unlock()
	}
	return rules
}

// Refresh forces immediate full rescan of the tree passed to Init.
func (e *Engine) Refresh() []CompiledRule {
	e.mu.Lock()
	tree := e.tree
	e.mu.Unlock()

	if tree == nil {
		e.log.Debug("Refresh requested before initialization, ignoring")
		return nil
	}
	return e.Scan(tree)
}

// Scan walks tree once and compiles every new token. It returns rules added
// to the sheet during this pass. Failures are logged and memoized, never
// returned.
func (e *Engine) Scan(tree Tree) []CompiledRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rules []CompiledRule
	for _, token := range Tokens(tree, e.classAttrs) {
		if rule, ok := e.process(token); ok {
			rules = append(rules, rule)
		}
	}
	return rules
}

// process runs single token through memo gate, compiler and sink.
// Must be called with e.mu held.
func (e *Engine) process(token string) (CompiledRule, bool) {
	if !strings.Contains(token, trigger) {
		return CompiledRule{}, false
	}
	if _, seen := e.memo.lookup(token); seen {
		return CompiledRule{}, false
	}

	e.attempts++
	rule, err := e.compile(token)
	if err != nil {
		e.log.Warn("Skipping token", zap.String("token", token), zap.Error(err))
		e.memo.record(MemoEntry{Token: token, Outcome: OutcomeSkipped, Reason: err})
		return CompiledRule{}, false
	}

	text := rule.Text()
	if err := e.sink.insert(token, text); err != nil {
		e.memo.record(MemoEntry{Token: token, Outcome: OutcomeSkipped, Reason: err})
		return CompiledRule{}, false
	}
	e.memo.record(MemoEntry{Token: token, Outcome: OutcomeCompiled, Rule: text})
	return rule, true
}

// Compile parses and builds token without touching memo table or sheet.
func (e *Engine) Compile(token string) (CompiledRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compile(token)
}

func (e *Engine) compile(token string) (CompiledRule, error) {
	pt, err := Parse(token, e.variants)
	if err != nil {
		return CompiledRule{}, err
	}
	props, err := e.resolver.Resolve(pt.Key, Normalize(pt.Value))
	if err != nil {
		return CompiledRule{}, err
	}
	return Build(pt, props, BaseSelector(token), e.darkClass), nil
}

// Outcome reports memoized result for token.
func (e *Engine) Outcome(token string) (MemoEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memo.lookup(token)
}

// Entries returns memo table content in natural token order.
func (e *Engine) Entries() []MemoEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memo.sorted()
}

// Stats returns activity counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Attempts: e.attempts,
		Compiled: e.memo.count(OutcomeCompiled),
		Skipped:  e.memo.count(OutcomeSkipped),
		Rules:    e.sink.sheet.Len(),
	}
}

// Watcher returns installed watcher or nil.
func (e *Engine) Watcher() *Watcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watcher
}

// Close stops watcher, if any.
func (e *Engine) Close() {
	e.mu.Lock()
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}
