package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/service"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
)

type stubBackend struct {
	migrateFn   func(ctx context.Context, file string) ([]string, error)
	reconcileFn func(ctx context.Context) (int, error)
	seedFn      func(ctx context.Context, r io.Reader) (service.SeedSummary, error)
	boardFn     func(ctx context.Context) (kanban.Board, error)
	relayFn     func(ctx context.Context) error
	closed      bool
}

func (s *stubBackend) Migrate(ctx context.Context, file string) ([]string, error) {
	return s.migrateFn(ctx, file)
}

func (s *stubBackend) Reconcile(ctx context.Context) (int, error) {
	return s.reconcileFn(ctx)
}

func (s *stubBackend) SeedPackages(ctx context.Context, r io.Reader) (service.SeedSummary, error) {
	return s.seedFn(ctx, r)
}

func (s *stubBackend) Board(ctx context.Context) (kanban.Board, error) {
	return s.boardFn(ctx)
}

func (s *stubBackend) Relay(ctx context.Context) error {
	return s.relayFn(ctx)
}

func (s *stubBackend) Close() {
	s.closed = true
}

func run(t *testing.T, backend Backend, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	cmd := NewRootCommand(func(context.Context) (Backend, error) {
		if backend == nil {
			return nil, errors.New("connection refused")
		}
		return backend, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand(nil)

	for _, name := range []string{"migrate", "reconcile", "seed-packages", "board", "relay"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Fatalf("expected subcommand %q, got %v (err %v)", name, found, err)
		}
	}
	if flag := cmd.PersistentFlags().Lookup("format"); flag == nil || flag.DefValue != FormatText {
		t.Fatalf("expected --format flag defaulting to text")
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, &stubBackend{}, "board", "--format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	_, err := run(t, nil, "reconcile")
	if err == nil || !strings.Contains(err.Error(), "connect: connection refused") {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestMigrate(t *testing.T) {
	tests := map[string]struct {
		args     []string
		wantFile string
		wantOut  string
	}{
		"embedded": {
			args:    []string{"migrate"},
			wantOut: "applied 001_init.sql\n1 migration(s) applied\n",
		},
		"single file": {
			args:     []string{"migrate", "--file", "extra.sql"},
			wantFile: "extra.sql",
			wantOut:  "applied extra.sql\n1 migration(s) applied\n",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var gotFile string
			backend := &stubBackend{migrateFn: func(_ context.Context, file string) ([]string, error) {
				gotFile = file
				if file == "" {
					return []string{"001_init.sql"}, nil
				}
				return []string{file}, nil
			}}

			out, err := run(t, backend, tc.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotFile != tc.wantFile {
				t.Fatalf("expected file %q, got %q", tc.wantFile, gotFile)
			}
			if out != tc.wantOut {
				t.Fatalf("unexpected output %q", out)
			}
			if !backend.closed {
				t.Fatalf("expected backend to be closed")
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	tests := map[string]struct {
		provisioned int
		err         error
		wantOut     string
		wantErr     bool
	}{
		"nothing to do": {wantOut: "every signed deal already has deliverables\n"},
		"provisioned":   {provisioned: 3, wantOut: "provisioned deliverables for 3 deal(s)\n"},
		"partial failure": {
			provisioned: 1,
			err:         errors.New("deal 42: package missing"),
			wantOut:     "provisioned deliverables for 1 deal(s)\n",
			wantErr:     true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			backend := &stubBackend{reconcileFn: func(context.Context) (int, error) {
				return tc.provisioned, tc.err
			}}

			out, err := run(t, backend, "reconcile")
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tc.wantOut {
				t.Fatalf("unexpected output %q", out)
			}
		})
	}
}

func TestSeedPackages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.yaml")
	content := "packages:\n  - name: Gold\n    price: 25000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	var got string
	backend := &stubBackend{seedFn: func(_ context.Context, r io.Reader) (service.SeedSummary, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return service.SeedSummary{}, err
		}
		got = string(data)
		return service.SeedSummary{Inserted: 1, Total: 1}, nil
	}}

	out, err := run(t, backend, "seed-packages", path, "--format", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != content {
		t.Fatalf("expected seed file content to reach the backend, got %q", got)
	}

	var summary service.SeedSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if summary.Inserted != 1 || summary.Total != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSeedPackagesMissingFile(t *testing.T) {
	_, err := run(t, &stubBackend{}, "seed-packages", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "open seed file") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestBoardText(t *testing.T) {
	deals := []entity.Deal{
		{Status: entity.DealLead, SponsorName: "Maison Azur", EventTitle: "Spring Show", Level: "Gold", CashValue: 1000, InKindValue: 500},
		{Status: entity.DealSigned, SponsorName: "Velvet Co", Level: "Silver", CashValue: 2000},
		{Status: entity.DealPaid, SponsorName: "Archived"},
	}
	backend := &stubBackend{boardFn: func(context.Context) (kanban.Board, error) {
		return kanban.BuildBoard(deals), nil
	}}

	out, err := run(t, backend, "board")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Lead (1) $1500.00",
		"  - Maison Azur / Spring Show  Gold  $1500.00",
		"Qualified (0) $0.00\n  no deals",
		"Signed (1) $2000.00",
		"  - Velvet Co / unknown  Silver  $2000.00",
		"1 deal(s) in statuses outside the board",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Archived") {
		t.Fatalf("hidden deal must not be rendered:\n%s", out)
	}
}

func TestBoardError(t *testing.T) {
	backend := &stubBackend{boardFn: func(context.Context) (kanban.Board, error) {
		return kanban.Board{}, errors.New("refresh deals: timeout")
	}}

	if _, err := run(t, backend, "board"); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected board error, got %v", err)
	}
}

func TestRelayStopsCleanlyOnCancel(t *testing.T) {
	backend := &stubBackend{relayFn: func(context.Context) error {
		return context.Canceled
	}}

	if _, err := run(t, backend, "relay"); err != nil {
		t.Fatalf("expected cancellation to be treated as a clean stop, got %v", err)
	}
	if !backend.closed {
		t.Fatalf("expected backend to be closed")
	}
}
