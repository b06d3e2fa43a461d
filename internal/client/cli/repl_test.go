package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeExec struct {
	calls []string
}

func (f *fakeExec) record(parts ...string) error {
	f.calls = append(f.calls, strings.Join(parts, " "))
	return nil
}

func (f *fakeExec) Tables(ctx context.Context) error { return f.record("tables") }
func (f *fakeExec) List(ctx context.Context, table string) error {
	return f.record("list", table)
}
func (f *fakeExec) Get(ctx context.Context, table, id string) error {
	return f.record("get", table, id)
}
func (f *fakeExec) Add(ctx context.Context, table string) error { return f.record("add", table) }
func (f *fakeExec) Update(ctx context.Context, table, id string) error {
	return f.record("update", table, id)
}
func (f *fakeExec) Delete(ctx context.Context, table, id string) error {
	return f.record("delete", table, id)
}
func (f *fakeExec) CarData(ctx context.Context, carID string) error {
	return f.record("cardata", carID)
}
func (f *fakeExec) Sync(ctx context.Context) error    { return f.record("sync") }
func (f *fakeExec) Status(ctx context.Context) error  { return f.record("status") }
func (f *fakeExec) Pending(ctx context.Context) error { return f.record("pending") }
func (f *fakeExec) Migrate(ctx context.Context) error { return f.record("migrate") }

func silence(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, fmt.Sprint(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	silence(t)

	input := strings.Join([]string{
		"help",
		"tables",
		"list cars",
		"l expenses",
		"get cars c1",
		"add cars",
		"update cars c1",
		"delete cars c1",
		"cardata c1",
		"sync",
		"status",
		"pending",
		"migrate",
		"foobar",
		"exit",
		"tables",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, rdr(input))

	want := []string{
		"tables", "list cars", "list expenses", "get cars c1", "add cars",
		"update cars c1", "delete cars c1", "cardata c1",
		"sync", "status", "pending", "migrate",
	}
	if strings.Join(exec.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls mismatch:\n got %v\nwant %v", exec.calls, want)
	}
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	printed := silence(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, rdr("get\nget cars\nupdate cars\nquit\n"))

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	usages := 0
	for _, p := range *printed {
		if strings.HasPrefix(p, "Usage:") {
			usages++
		}
	}
	if usages != 3 {
		t.Fatalf("expected 3 usage hints, got %d: %v", usages, *printed)
	}
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	silence(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, rdr("tables"))
	if len(exec.calls) != 1 {
		t.Fatalf("last line without newline must still run: %v", exec.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, rdr("tables\n"))
	if len(exec.calls) != 0 {
		t.Fatalf("cancelled context must stop the loop: %v", exec.calls)
	}
}
