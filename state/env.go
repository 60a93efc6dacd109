// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"jitcss/config"
	"jitcss/jit"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// used by build and watch subcommands
	Overwrite bool
	CodePage  encoding.Encoding // names of non UTF-8 zip entries

	start         time.Time
	restoreStdLog func()
}

func newLocalEnv() *LocalEnv {
	return &LocalEnv{start: time.Now()}
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// NewEngine creates compiler engine configured from loaded configuration,
// which inserts rules into sheet.
func (e *LocalEnv) NewEngine(sheet jit.StyleSheet) *jit.Engine {
	var options []func(*jit.Options)
	if e.Cfg != nil {
		c := e.Cfg.Compiler
		options = append(options,
			jit.WithDarkClass(c.DarkClass),
			jit.WithClassAttributes(c.ClassAttributes...),
			jit.WithBreakpoints(c.Breakpoints),
			jit.WithProperties(jit.PropertyMap(c.Properties)),
		)
	}
	return jit.NewEngine(sheet, e.Log, options...)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
