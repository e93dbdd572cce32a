package moddir_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vocalswap/internal/moddir"
)

type recorder struct {
	mu   sync.Mutex
	dirs []string
	ch   chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 64)}
}

func (r *recorder) register(_ context.Context, dir string) {
	r.mu.Lock()
	r.dirs = append(r.dirs, dir)
	r.mu.Unlock()
	r.ch <- dir
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.dirs)
}

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRun_StartupOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	b := mkdir(t, root, "b-mod")
	a := mkdir(t, root, "a-mod")
	if err := os.WriteFile(filepath.Join(root, "stray.ogg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	extra := mkdir(t, t.TempDir(), "standalone")

	rec := newRecorder()
	var atScan []string
	src := moddir.New(rec.register,
		moddir.WithRoots(root),
		moddir.WithDirectories(extra),
		moddir.WithScanned(func(context.Context) { atScan = rec.got() }),
	)
	if err := src.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{extra, a, b}
	if got := rec.got(); !slices.Equal(got, want) {
		t.Errorf("registered %v, want %v", got, want)
	}
	if !slices.Equal(atScan, want) {
		t.Errorf("registered at scan hook %v, want %v", atScan, want)
	}
}

func TestRun_RegistersOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := mkdir(t, root, "a")

	rec := newRecorder()
	src := moddir.New(rec.register,
		moddir.WithRoots(root, root),
		moddir.WithDirectories(a),
	)
	if err := src.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	src.AddDirectory(context.Background(), a)

	if got := rec.got(); len(got) != 1 || got[0] != a {
		t.Errorf("registered %v, want [%s]", got, a)
	}
	if got := src.Registered(); len(got) != 1 {
		t.Errorf("Registered() = %v, want one entry", got)
	}
}

func TestRun_SkipsMissingPaths(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	src := moddir.New(rec.register,
		moddir.WithRoots(filepath.Join(base, "missing-root")),
		moddir.WithDirectories(filepath.Join(base, "missing-dir"), file),
	)
	if err := src.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := rec.got(); len(got) != 0 {
		t.Errorf("registered %v, want nothing", got)
	}
}

func TestAddRoot_AfterRun(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	src := moddir.New(rec.register)
	if err := src.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	root := t.TempDir()
	a := mkdir(t, root, "late")
	src.AddRoot(context.Background(), root)

	if got := rec.got(); len(got) != 1 || got[0] != a {
		t.Errorf("registered %v, want [%s]", got, a)
	}
}

func TestRun_WatchRegistersNewDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	existing := mkdir(t, root, "existing")

	rec := newRecorder()
	src := moddir.New(rec.register,
		moddir.WithRoots(root),
		moddir.WithWatch(true),
		moddir.WithDebounce(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	select {
	case d := <-rec.ch:
		if d != existing {
			t.Fatalf("first registration = %s, want %s", d, existing)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("existing directory was not registered")
	}

	added := mkdir(t, root, "added")
	if err := os.WriteFile(filepath.Join(added, "Hero.00001.hastevocalsfx.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-rec.ch:
		if d != added {
			t.Errorf("second registration = %s, want %s", d, added)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("new directory was not registered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := rec.got(); len(got) != 2 {
		t.Errorf("registered %v, want two directories", got)
	}
}

func TestRun_WatchWaitsForSlowCopy(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	const files = 8

	// The register callback records how many files the directory held.
	counts := make(chan int, 4)
	register := func(_ context.Context, dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Errorf("ReadDir(%s): %v", dir, err)
		}
		counts <- len(entries)
	}
	scanned := make(chan struct{})
	src := moddir.New(register,
		moddir.WithRoots(root),
		moddir.WithWatch(true),
		moddir.WithDebounce(100*time.Millisecond),
		moddir.WithScanned(func(context.Context) { close(scanned) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	select {
	case <-scanned:
	case <-time.After(5 * time.Second):
		t.Fatal("startup scan did not finish")
	}

	mod := mkdir(t, root, "copying")
	for i := range files {
		time.Sleep(40 * time.Millisecond)
		name := filepath.Join(mod, fmt.Sprintf("Hero.1.jump.%d.wav", i))
		if err := os.WriteFile(name, []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case n := <-counts:
		if n != files {
			t.Errorf("directory registered while it held %d of %d files", n, files)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("copied directory was not registered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	select {
	case n := <-counts:
		t.Errorf("directory registered again with %d files", n)
	default:
	}
}
