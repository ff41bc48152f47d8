package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// resetLogger replaces the singleton with a fresh logger writing to buf.
func resetLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	once = sync.Once{}
	loggerInstance = nil

	var buf bytes.Buffer
	logger := GetLogger()
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(nil) })
	return logger, &buf
}

// TestGetLogger verifies singleton pattern - same instance returned
func TestGetLogger(t *testing.T) {
	if GetLogger() != GetLogger() {
		t.Error("GetLogger() should return same singleton instance")
	}
}

// TestSetVerboseMode verifies SetVerboseMode changes verbose state
func TestSetVerboseMode(t *testing.T) {
	logger, _ := resetLogger(t)
	if logger.IsVerbose() {
		t.Error("Logger should have verbose=false by default")
	}

	SetVerboseMode(true)
	if !logger.IsVerbose() {
		t.Error("SetVerboseMode(true) should enable verbose mode")
	}

	SetVerboseMode(false)
	if logger.IsVerbose() {
		t.Error("SetVerboseMode(false) should disable verbose mode")
	}
}

// TestDebugOnlyShownWhenVerbose verifies Debug output only when verbose=true
func TestDebugOnlyShownWhenVerbose(t *testing.T) {
	logger, buf := resetLogger(t)

	logger.Debug("hidden message")
	if buf.Len() > 0 {
		t.Errorf("Debug should not output when verbose=false, got: %s", buf.String())
	}

	logger.SetVerbose(true)
	logger.Debug("fetch page %d", 3)

	out := buf.String()
	if !strings.Contains(out, "[DEBUG]") || !strings.Contains(out, "fetch page 3") {
		t.Errorf("Debug should output prefixed, formatted message when verbose, got: %s", out)
	}
	if !regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[DEBUG\]`).MatchString(out) {
		t.Errorf("Debug output should start with HH:MM:SS timestamp, got: %q", out)
	}
}

// TestLogLevelPrefixes verifies Info/Warn/Error prefixes without timestamps
func TestLogLevelPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		log    func(l *Logger)
		prefix string
	}{
		{"info", func(l *Logger) { l.Info("loaded %d notes", 2) }, "[INFO] loaded 2 notes"},
		{"warn", func(l *Logger) { l.Warn("stale page") }, "[WARN] stale page"},
		{"error", func(l *Logger) { l.Error("delete failed") }, "[ERROR] delete failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := resetLogger(t)
			tt.log(logger)
			if !strings.HasPrefix(buf.String(), tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, buf.String())
			}
		})
	}
}

// TestConvenienceFunctions verifies package-level helpers use the singleton
func TestConvenienceFunctions(t *testing.T) {
	logger, buf := resetLogger(t)
	logger.SetVerbose(true)

	Debugf("debug %s", "a")
	Infof("info %s", "b")
	Warnf("warn %s", "c")
	Errorf("error %s", "d")

	out := buf.String()
	for _, want := range []string{"debug a", "info b", "warn c", "error d"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

// TestLoggerThreadSafety logs from many goroutines while toggling verbose mode
func TestLoggerThreadSafety(t *testing.T) {
	logger, _ := resetLogger(t)
	logger.SetOutput(&syncBuffer{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			logger.SetVerbose(i%2 == 0)
		}(i)
		go func(i int) {
			defer wg.Done()
			logger.Debug("message %d", i)
			logger.Info("message %d", i)
		}(i)
	}
	wg.Wait()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// TestBackgroundLoggerPathFormat verifies the PID-specific log path
func TestBackgroundLoggerPathFormat(t *testing.T) {
	bl, err := NewBackgroundLogger()
	if err != nil {
		t.Fatalf("NewBackgroundLogger() error = %v", err)
	}
	logPath := bl.GetLogPath()
	defer func() {
		bl.Close()
		_ = os.Remove(logPath)
	}()

	if !strings.Contains(filepath.Base(logPath), "notehub-") {
		t.Errorf("Log path should contain 'notehub-', got: %s", logPath)
	}
	if !strings.HasPrefix(logPath, os.TempDir()) {
		t.Errorf("Log path should be in temp directory, got: %s", logPath)
	}
}

// TestBackgroundLoggerDisabled verifies a disabled logger discards output
func TestBackgroundLoggerDisabled(t *testing.T) {
	bl, err := NewBackgroundLoggerWithEnabled(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bl.IsEnabled() {
		t.Error("expected disabled logger")
	}
	bl.Printf("discarded %d", 1)
	if bl.GetLogPath() != "" {
		t.Errorf("disabled logger should have no path, got %q", bl.GetLogPath())
	}
}

// TestBackgroundLoggerGracefulDegradation verifies fallback to io.Discard
func TestBackgroundLoggerGracefulDegradation(t *testing.T) {
	bl, err := NewBackgroundLoggerWithPath("/nonexistent/directory/log.txt")
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}

	bl.Printf("This should not panic: %s", "test")
	bl.Println("This should not panic")
	bl.Close()

	if bl.IsEnabled() {
		t.Error("Logger should not be enabled when file creation fails")
	}
}

// TestBackgroundLoggerAsLoggerOutput routes the leveled logger into the file
func TestBackgroundLoggerAsLoggerOutput(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "tui.log")
	bl, err := NewBackgroundLoggerWithPath(customPath)
	if err != nil {
		t.Fatalf("NewBackgroundLoggerWithPath() error = %v", err)
	}

	logger, _ := resetLogger(t)
	logger.SetOutput(bl)
	logger.Warn("delete of %s rolled back", "42")
	bl.Println("closing")
	bl.Close()

	// Writes after close are discarded
	logger.Warn("after close")

	content, err := os.ReadFile(customPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "[WARN] delete of 42 rolled back") {
		t.Errorf("log should contain routed message, got: %s", content)
	}
	if !strings.Contains(string(content), "closing") {
		t.Errorf("log should contain Println message, got: %s", content)
	}
	if strings.Contains(string(content), "after close") {
		t.Errorf("log should not contain writes after close, got: %s", content)
	}
}
