package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/config"
	"github.com/mmynk/tithe/internal/editor"
)

// isolate clears the environment the CLI reads and moves into an empty
// directory. It returns the database path to pass with --db.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		"TITHE_USER", "PORT", "DB_PATH", "JWT_SECRET", "TOKEN_DURATION", "LOG_LEVEL",
		"METRICS_ENABLED", "AMQP_URL", "AMQP_EXCHANGE", "AMQP_ROUTING_KEY",
		"RECEIPT_TARGET_BYTES", "RECEIPT_MAX_DIM", "RECEIPT_MIN_QUALITY", "DEFAULT_PERCENT",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return filepath.Join(dir, "tithe.db")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(&out, strings.NewReader(stdin))
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("tithe %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 90, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// fieldAfter returns the word following prefix on the first line that
// starts with it.
func fieldAfter(out, prefix string) string {
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), prefix); ok {
			if f := strings.Fields(rest); len(f) > 0 {
				return f[0]
			}
		}
	}
	return ""
}

func TestCalc(t *testing.T) {
	isolate(t)

	out := mustRun(t, "--memory", "calc", "--items", "100,200", "--deductions", "5,10", "--percent", "10")
	for _, want := range []string{"300.00", "30.00", "15.00", "315.00", "Remaining to deduct"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "--memory", "calc", "--items", "100", "--deductions", "50", "--percent", "10")
	if !strings.Contains(out, "Over-deducted") || !strings.Contains(out, "40.00") {
		t.Errorf("expected over-deduction of 40.00:\n%s", out)
	}
}

func TestWorkflow(t *testing.T) {
	db := isolate(t)
	as := []string{"--db", db, "--user", "alice@example.com"}

	out := mustRun(t, "--db", db, "user", "add", "alice@example.com", "Alice", "password123")
	if !strings.Contains(out, "Created user Alice <alice@example.com>") {
		t.Fatalf("unexpected output: %s", out)
	}

	out = mustRun(t, append(as, "new", "--title", "Salary", "--items", "100,200",
		"--deductions", "5:Books,10", "--tag", "2025-09")...)
	if !strings.Contains(out, `"Salary 9/2025" (2025-09)`) {
		t.Fatalf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "315.00") {
		t.Errorf("total missing: %s", out)
	}
	sessionID := fieldAfter(out, "Saved")
	deductionID := fieldAfter(out, "deduction")
	if sessionID == "" || deductionID == "" {
		t.Fatalf("could not read IDs from: %s", out)
	}

	t.Run("attach", func(t *testing.T) {
		writePNG(t, "receipt.png")
		out := mustRun(t, append(as, "attach", sessionID, deductionID, "receipt.png")...)
		if !strings.Contains(out, `Attached "Salary 9 2025 - Books - `) {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("attach unknown deduction", func(t *testing.T) {
		_, err := run(t, "", append(as, "attach", sessionID, "nope", "receipt.png")...)
		if !errors.Is(err, editor.ErrUnknownDeduction) {
			t.Errorf("err = %v, want ErrUnknownDeduction", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		out := mustRun(t, append(as, "list")...)
		if !strings.Contains(out, sessionID) || !strings.Contains(out, "09/2025") {
			t.Errorf("session missing from list:\n%s", out)
		}
		out = mustRun(t, append(as, "list", "--search", "Bonus")...)
		if !strings.Contains(out, "No calculations found.") {
			t.Errorf("search should match nothing:\n%s", out)
		}
	})

	t.Run("export years", func(t *testing.T) {
		out := mustRun(t, append(as, "export", "--years", "2025", "-o", "out")...)
		if !strings.Contains(out, "1 receipts") {
			t.Errorf("unexpected output: %s", out)
		}
		zr, err := zip.OpenReader(filepath.Join("out", "receipts_2025.zip"))
		if err != nil {
			t.Fatalf("open archive: %v", err)
		}
		defer zr.Close()
		if len(zr.File) != 1 || !strings.HasPrefix(zr.File[0].Name, "Salary 9 2025 - Books - ") {
			t.Errorf("unexpected entries: %v", zr.File)
		}
	})

	t.Run("export notices", func(t *testing.T) {
		out := mustRun(t, append(as, "export", "--years", "2024")...)
		if !strings.Contains(out, "nothing to export") {
			t.Errorf("unexpected output: %s", out)
		}
		out = mustRun(t, append(as, "export")...)
		if !strings.Contains(out, "nothing selected") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("export mixed selection", func(t *testing.T) {
		_, err := run(t, "", append(as, "export", "--years", "2025", "--all-months")...)
		if !errors.Is(err, errMixedSelection) {
			t.Errorf("err = %v, want errMixedSelection", err)
		}
	})

	t.Run("export session", func(t *testing.T) {
		mustRun(t, append(as, "export-session", sessionID, "-o", "single")...)
		matches, _ := filepath.Glob(filepath.Join("single", "*.zip"))
		if len(matches) != 1 {
			t.Errorf("expected one archive, got %v", matches)
		}
	})

	t.Run("report", func(t *testing.T) {
		mustRun(t, append(as, "report", "-o", "report.xlsx")...)
		f, err := excelize.OpenFile("report.xlsx")
		if err != nil {
			t.Fatalf("open report: %v", err)
		}
		defer f.Close()
		rows, err := f.GetRows("Sessions")
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 2 {
			t.Errorf("got %d rows, want header and one session", len(rows))
		}
	})

	t.Run("token", func(t *testing.T) {
		out := mustRun(t, "--db", db, "token", "alice@example.com", "password123")
		claims, err := auth.NewJWTManager(config.Default().JWTSecret, config.Default().TokenDuration.Duration).
			Validate(strings.TrimSpace(out))
		if err != nil {
			t.Fatalf("token does not validate: %v", err)
		}
		if claims.Email != "alice@example.com" {
			t.Errorf("Email = %q", claims.Email)
		}

		_, err = run(t, "", "--db", db, "token", "alice@example.com", "wrong")
		if err == nil {
			t.Error("expected an error for a wrong password")
		}
	})

	t.Run("delete", func(t *testing.T) {
		_, err := run(t, "n\n", append(as, "delete", sessionID)...)
		if !errors.Is(err, editor.ErrDeleteNotConfirmed) {
			t.Fatalf("err = %v, want ErrDeleteNotConfirmed", err)
		}

		out, err := run(t, "y\n", append(as, "delete", sessionID)...)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if !strings.Contains(out, "Deleted "+sessionID) {
			t.Errorf("unexpected output: %s", out)
		}

		_, err = run(t, "", append(as, "delete", "--yes", sessionID)...)
		if err == nil {
			t.Error("deleting a missing session should fail")
		}
	})
}

func TestPrincipalRequired(t *testing.T) {
	db := isolate(t)

	_, err := run(t, "", "--db", db, "list")
	if !errors.Is(err, errNoUser) {
		t.Errorf("err = %v, want errNoUser", err)
	}

	_, err = run(t, "", "--db", db, "--user", "ghost@example.com", "list")
	if err == nil || !strings.Contains(err.Error(), "unknown user") {
		t.Errorf("err = %v, want unknown user", err)
	}
}

func TestEventsRequiresAMQP(t *testing.T) {
	isolate(t)

	_, err := run(t, "", "--memory", "events")
	if !errors.Is(err, errEventsDisabled) {
		t.Errorf("err = %v, want errEventsDisabled", err)
	}
}
