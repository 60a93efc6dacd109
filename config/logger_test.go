package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetCrashOutput(t *testing.T) {
	t.Cleanup(func() { debug.SetCrashOutput(nil, debug.CrashOptions{}) })
}

func TestLoggingConfig_PrepareFile(t *testing.T) {
	resetCrashOutput(t)
	dir := t.TempDir()
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "normal", Destination: filepath.Join(dir, "jitcss.log"), Mode: "overwrite"},
	}

	log, err := conf.Prepare(nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Named("jit").Info("Rule inserted", zap.String("token", "w-[1px]"))
	log.Debug("not visible")
	_ = log.Sync()

	data, err := os.ReadFile(conf.FileLogger.Destination)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "jitcss.jit") || !strings.Contains(string(data), "w-[1px]") {
		t.Errorf("unexpected log content %q", data)
	}
	if strings.Contains(string(data), "not visible") {
		t.Error("debug entry written at normal level")
	}
	if _, err := os.Stat(conf.PanicLogName()); err != nil {
		t.Errorf("panic log was not created: %v", err)
	}
	if filepath.Dir(conf.PanicLogName()) != dir {
		t.Errorf("panic log %s is not next to file log", conf.PanicLogName())
	}
}

func TestLoggingConfig_PrepareWithReport(t *testing.T) {
	resetCrashOutput(t)
	dir := t.TempDir()
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "none", Destination: filepath.Join(dir, "jitcss.log")},
	}
	rpt := &Report{entries: make(map[string]entry)}

	log, err := conf.Prepare(rpt)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Debug("visible in report")
	_ = log.Sync()

	for _, name := range []string{"final.log", "panic.log"} {
		if _, ok := rpt.entries[name]; !ok {
			t.Errorf("%s is not stored in report", name)
		}
	}
	data, _ := os.ReadFile(conf.FileLogger.Destination)
	if !strings.Contains(string(data), "visible in report") {
		t.Errorf("report forces debug level, got %q", data)
	}
}

func TestLoggingConfig_PrepareRedirected(t *testing.T) {
	resetCrashOutput(t)
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "debug", Destination: filepath.Join(t.TempDir(), "absent", "jitcss.log")},
	}
	rpt := &Report{entries: make(map[string]entry)}

	log, err := conf.Prepare(rpt)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	_ = log.Sync()

	e, ok := rpt.entries["final.log"]
	if !ok {
		t.Fatal("final.log is not stored in report")
	}
	defer os.Remove(e.original)
	if !strings.HasPrefix(filepath.Base(e.original), "jitcss.") || filepath.Dir(e.original) == filepath.Dir(conf.FileLogger.Destination) {
		t.Errorf("log was not redirected: %s", e.original)
	}
	if p, ok := rpt.entries["panic.log"]; ok {
		defer os.Remove(p.original)
	}
}

func TestLoggingConfig_PrepareNone(t *testing.T) {
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "none"},
	}
	log, err := conf.Prepare(nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger must be disabled")
	}
}

func TestConsoleEncoder_ShortErrors(t *testing.T) {
	enc := newEncoder(zap.NewDevelopmentEncoderConfig())
	err := multierr.Combine(errors.New("first"), errors.New("second"))

	buf, eerr := enc.Clone().EncodeEntry(
		zapcore.Entry{Level: zapcore.ErrorLevel, Time: time.Now(), Message: "Build failed"},
		[]zapcore.Field{zap.Error(err), zap.String("source", "a.html")},
	)
	if eerr != nil {
		t.Fatalf("EncodeEntry() error = %v", eerr)
	}
	out := buf.String()
	if strings.Contains(out, "errorCauses") {
		t.Errorf("error details are not shortened: %s", out)
	}
	if !strings.Contains(out, "first; second") || !strings.Contains(out, "a.html") {
		t.Errorf("unexpected output: %s", out)
	}
}
