package jit

import (
	"sort"
	"strings"

	"github.com/maruel/natural"

	"jitcss/utils/debug"
)

// Dump renders engine configuration, counters and memo table for debug
// reports.
func (e *Engine) Dump() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	tw := debug.NewTreeWriter()
	tw.Line(0, "engine")
	tw.TextBlock(1, "dark class", e.darkClass)
	tw.List(1, "class attributes", e.classAttrs)

	bps := make([]string, 0, len(e.variants.breakpoints))
	for name, width := range e.variants.breakpoints {
		bps = append(bps, name+" "+width)
	}
	sort.Sort(natural.StringSlice(bps))
	tw.List(1, "breakpoints", bps)

	var custom []string
	for key, props := range e.resolver.table {
		if _, builtin := builtinProperties[key]; !builtin {
			custom = append(custom, key+" "+strings.Join(props, ","))
		}
	}
	sort.Sort(natural.StringSlice(custom))
	tw.List(1, "custom properties", custom)

	tw.Line(1, "stats")
	tw.Line(2, "attempts: %d", e.attempts)
	tw.Line(2, "compiled: %d", e.memo.count(OutcomeCompiled))
	tw.Line(2, "skipped: %d", e.memo.count(OutcomeSkipped))
	tw.Line(2, "rules: %d", e.sink.sheet.Len())

	entries := e.memo.sorted()
	for _, o := range []Outcome{OutcomeCompiled, OutcomeSkipped} {
		tw.Line(1, "%s", o)
		for _, me := range entries {
			if me.Outcome != o {
				continue
			}
			if o == OutcomeCompiled {
				tw.TextBlock(2, me.Token, me.Rule)
			} else {
				tw.TextBlock(2, me.Token, me.Reason.Error())
			}
		}
	}
	return tw.String()
}
