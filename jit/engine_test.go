package jit

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"jitcss/css"
)

func TestEngine_ScanIsIdempotent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sheet := &memorySheet{}
	e := NewEngine(sheet, zap.New(core))

	tree := newFakeTree(
		"w-[10px] p-[1rem] hidden w-[10px]",
		"md:hover:bg-[#ff0000] zzz-[1px]",
	)

	rules := e.Scan(tree)
	if len(rules) != 3 {
		t.Fatalf("first scan produced %d rules, want 3", len(rules))
	}
	want := []string{
		`.w-\[10px\] { width: 10px; }`,
		`.p-\[1rem\] { padding: 1rem; }`,
		`@media (min-width: 768px) { .md\:hover\:bg-\[\#ff0000\]:hover { background-color: #ff0000; } }`,
	}
	if !slices.Equal(sheet.texts, want) {
		t.Errorf("sheet =\n%q\nwant\n%q", sheet.texts, want)
	}

	for range 3 {
		if rules := e.Scan(tree); len(rules) != 0 {
			t.Fatalf("rescan produced %d new rules", len(rules))
		}
	}

	stats := e.Stats()
	if stats != (Stats{Attempts: 4, Compiled: 3, Skipped: 1, Rules: 3}) {
		t.Errorf("unexpected stats %+v", stats)
	}

	entry, ok := e.Outcome("zzz-[1px]")
	if !ok || entry.Outcome != OutcomeSkipped || !errors.Is(entry.Reason, ErrUnknownProperty) {
		t.Errorf("unexpected outcome for unknown key: %+v", entry)
	}
	if _, ok := e.Outcome("hidden"); ok {
		t.Error("token without trigger must not be memoized")
	}

	skipped := logs.FilterMessage("Skipping token").All()
	if len(skipped) != 1 {
		t.Fatalf("expected single warning, got %d", len(skipped))
	}
	if got := skipped[0].ContextMap()["token"]; got != "zzz-[1px]" {
		t.Errorf("warning logged for token %v", got)
	}
	if skipped[0].LoggerName != "jit" {
		t.Errorf("unexpected logger name %q", skipped[0].LoggerName)
	}
}

func TestEngine_SinkRejection(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sheet := &memorySheet{reject: "red"}
	e := NewEngine(sheet, zap.New(core))

	tree := newFakeTree("c-[red] c-[blue]")
	rules := e.Scan(tree)
	if len(rules) != 1 || rules[0].Token != "c-[blue]" {
		t.Fatalf("unexpected rules %+v", rules)
	}

	entry, ok := e.Outcome("c-[red]")
	if !ok || entry.Outcome != OutcomeSkipped {
		t.Fatalf("rejected token outcome = %+v", entry)
	}
	if !errors.Is(entry.Reason, ErrSinkRejected) || !errors.Is(entry.Reason, errRejected) {
		t.Errorf("reason does not wrap sink error: %v", entry.Reason)
	}
	if logs.FilterMessage("Unable to insert compiled rule").Len() != 1 {
		t.Error("sink rejection was not logged")
	}

	// rejected tokens are not retried
	e.Scan(tree)
	if got := e.Stats().Attempts; got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestEngine_InitForgetsSkipped(t *testing.T) {
	sheet := &memorySheet{}
	e := NewEngine(sheet, zaptest.NewLogger(t))
	defer e.Close()

	tree := newFakeTree("tc-[ellipsis] w-[1px]")
	if rules := e.Init(tree, nil); len(rules) != 1 {
		t.Fatalf("first Init produced %d rules, want 1", len(rules))
	}
	if entry, _ := e.Outcome("tc-[ellipsis]"); entry.Outcome != OutcomeSkipped {
		t.Fatalf("tc must be skipped before it is mapped, got %v", entry.Outcome)
	}

	rules := e.Init(tree, PropertyMap{"tc": {"text-overflow"}})
	if len(rules) != 1 || rules[0].Token != "tc-[ellipsis]" {
		t.Fatalf("second Init produced %+v", rules)
	}
	if sheet.Len() != 2 {
		t.Errorf("sheet has %d rules, want 2", sheet.Len())
	}
	if got := sheet.texts[1]; got != `.tc-\[ellipsis\] { text-overflow: ellipsis; }` {
		t.Errorf("unexpected rule %q", got)
	}
}

func TestEngine_Refresh(t *testing.T) {
	e := NewEngine(&memorySheet{}, nil)
	defer e.Close()

	if rules := e.Refresh(); rules != nil {
		t.Errorf("Refresh before Init returned %v", rules)
	}

	tree := newFakeTree("w-[1px]")
	e.Init(tree, nil)

	// silent change, no mutation delivered
	tree.elements = append(tree.elements, fakeElement{"class": "h-[2px]"})
	rules := e.Refresh()
	if len(rules) != 1 || rules[0].Token != "h-[2px]" {
		t.Errorf("Refresh produced %+v", rules)
	}
}

func TestEngine_ClassAttributes(t *testing.T) {
	e := NewEngine(&memorySheet{}, nil, WithClassAttributes("class", "data-tw"))
	tree := &fakeTree{elements: []fakeElement{
		{"class": "w-[1px]", "data-tw": "h-[1px] w-[1px]", "title": "c-[red]"},
	}}
	rules := e.Scan(tree)
	if len(rules) != 2 {
		t.Errorf("got %d rules, want 2", len(rules))
	}
	if _, ok := e.Outcome("c-[red]"); ok {
		t.Error("tokens from unrelated attributes must be ignored")
	}
}

func TestEngine_ConcurrentScans(t *testing.T) {
	sheet := &memorySheet{}
	e := NewEngine(sheet, nil)
	tree := newFakeTree("w-[1px] h-[1px]", "c-[red] w-[1px]", "bg-[#fff]")

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			e.Scan(tree)
		})
	}
	wg.Wait()

	if sheet.Len() != 4 {
		t.Errorf("sheet has %d rules, want 4", sheet.Len())
	}
	if got := e.Stats().Attempts; got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
}

func TestEngine_RealSheet(t *testing.T) {
	sheet := css.NewSheet(css.NewParser(zaptest.NewLogger(t)))
	e := NewEngine(sheet, zaptest.NewLogger(t, zaptest.Level(zapcore.InfoLevel)))

	tree := newFakeTree(
		"!w-[10px] md:hover:bg-[#ff0000]",
		"dark:c-[#fff] bg-[url(https://example.com/a.png)]",
		"[&>li]:m-[0] gtc-[repeat(2,minmax(0,1fr))]",
	)
	rules := e.Scan(tree)
	if len(rules) != 6 {
		t.Fatalf("got %d rules, want 6", len(rules))
	}

	texts := sheet.Texts()
	for i, r := range rules {
		if texts[i] != r.Text() {
			t.Errorf("rule %d: sheet has %q, compiled %q", i, texts[i], r.Text())
		}
	}
	if item := sheet.Items()[1]; item.MediaBlock == nil {
		t.Error("breakpoint rule must be stored as @media block")
	}
	if item := sheet.Items()[0]; item.Rule == nil {
		t.Error("plain rule expected")
	} else if d, ok := item.Rule.GetProperty("width"); !ok || !d.Important || d.Value != "10px" {
		t.Errorf("unexpected declaration %+v", d)
	}
}

// winner picks the rule that applies last according to cascade: higher
// specificity first, then later position in the sheet.
func winner(rules []CompiledRule, positions []int) CompiledRule {
	best := 0
	for i := 1; i < len(rules); i++ {
		c := css.SelectorSpecificity(rules[i].Selector).Compare(css.SelectorSpecificity(rules[best].Selector))
		if c > 0 || c == 0 && positions[i] > positions[best] {
			best = i
		}
	}
	return rules[best]
}

func TestEngine_CascadeIgnoresInsertionOrderForDifferentSpecificity(t *testing.T) {
	for _, order := range [][]string{
		{"hover:c-[blue]", "c-[red]"},
		{"c-[red]", "hover:c-[blue]"},
	} {
		sheet := css.NewSheet(nil)
		e := NewEngine(sheet, nil)

		var (
			rules     []CompiledRule
			positions []int
		)
		for _, token := range order {
			got := e.Scan(newFakeTree(token))
			if len(got) != 1 {
				t.Fatalf("token %q was not compiled", token)
			}
			rules = append(rules, got[0])
			positions = append(positions, sheet.Len()-1)
		}

		// hovered element carries both classes, pseudo-class variant must win
		if w := winner(rules, positions); w.Token != "hover:c-[blue]" {
			t.Errorf("order %v: winner is %q", order, w.Token)
		}
	}

	// equal specificity, later insertion wins
	sheet := css.NewSheet(nil)
	e := NewEngine(sheet, nil)
	rules := e.Scan(newFakeTree("c-[red] c-[blue]"))
	if w := winner(rules, []int{0, 1}); w.Token != "c-[blue]" {
		t.Errorf("winner is %q", w.Token)
	}
}

func TestDefault(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default must return the same engine")
	}
	rule, err := Default().Compile("w-[1px]")
	if err != nil || rule.Selector != `.w-\[1px\]` {
		t.Errorf("Compile() = %+v, %v", rule, err)
	}
}
