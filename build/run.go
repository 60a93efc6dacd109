package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"jitcss/state"
)

// Run is "build" command: compile all sources once and write stylesheet.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("build")

	srcs, dst, err := prepare(cmd, env, log)
	if err != nil {
		return err
	}

	c := NewCompiler(env)
	defer c.Close()
	defer c.Report()

	log.Info("Processing starting", zap.Strings("sources", srcs), zap.String("destination", destName(dst)))
	defer func(start time.Time) {
		stats := c.Engine().Stats()
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)),
			zap.Int("documents", len(c.Sources())), zap.Int("rules", stats.Rules), zap.Int("skipped", stats.Skipped))
	}(time.Now())

	err = c.AddAll(ctx, srcs)
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return multierr.Append(err, c.Save(dst))
}

// Watch is "watch" command: compile all sources, then keep recompiling
// changed documents and rewriting stylesheet until interrupted.
func Watch(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("build")

	srcs, dst, err := prepare(cmd, env, log)
	if err != nil {
		return err
	}
	if dst == "" {
		return errors.New("watch requires output file (--out)")
	}

	c := NewCompiler(env)
	defer c.Close()
	defer c.Report()

	if err := c.AddAll(ctx, srcs); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		// keep watching, broken documents may get fixed
		log.Warn("Initial build completed with errors", zap.Error(err))
	}
	if err := c.Save(dst); err != nil {
		return err
	}

	log.Info("Watching for changes", zap.Strings("sources", srcs), zap.String("destination", dst))
	return c.Watch(ctx, srcs, dst, func() error { return c.Save(dst) })
}

// prepare validates command line and fills program state for build commands.
func prepare(cmd *cli.Command, env *state.LocalEnv, log *zap.Logger) (srcs []string, dst string, err error) {
	if cmd.Args().Len() == 0 {
		return nil, "", errors.New("no input source has been specified")
	}
	for _, src := range cmd.Args().Slice() {
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, "", err
		}
		srcs = append(srcs, abs)
	}

	env.Overwrite = cmd.Bool("overwrite")

	if dst = cmd.String("out"); dst != "" {
		if dst, err = filepath.Abs(dst); err != nil {
			return nil, "", err
		}
		if _, err := os.Stat(dst); err == nil {
			if !env.Overwrite {
				return nil, "", fmt.Errorf("output file already exists: %s", dst)
			}
			log.Warn("Overwriting existing file", zap.String("file", dst))
		} else if !os.IsNotExist(err) {
			return nil, "", err
		}
	}

	if cp := cmd.String("force-zip-cp"); cp != "" {
		if env.CodePage, err = LookupEncoding(cp); err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}
	return srcs, dst, nil
}

func destName(dst string) string {
	if dst == "" {
		return "STDOUT"
	}
	return dst
}
