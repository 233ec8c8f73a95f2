package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func findCommand(t *testing.T, root *cobra.Command, args ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find(args)
	if err != nil {
		t.Fatalf("find %v: %v", args, err)
	}
	return cmd
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"mcp"},
		{"analysis", "show"},
		{"analysis", "queries"},
	} {
		cmd := findCommand(t, root, path...)
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected command %v, got %s", path, cmd.Name())
		}
	}
}

func TestMigrateDownDefaultsToOneStep(t *testing.T) {
	root := newRootCmd()
	down := findCommand(t, root, "migrate", "down")
	flag := down.Flags().Lookup("steps")
	if flag == nil || flag.DefValue != "1" {
		t.Fatalf("expected --steps default 1, got %+v", flag)
	}
}

func TestMigrateDownRejectsNonPositiveSteps(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate", "down", "--steps", "0"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "must be positive") {
		t.Fatalf("expected positive steps error, got %v", err)
	}
}

func TestAnalysisQueriesRequiresUserFlag(t *testing.T) {
	t.Chdir(t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"analysis", "queries", "a-1"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "user") {
		t.Fatalf("expected missing --user error, got %v", err)
	}
}

func TestPrintJSONIndents(t *testing.T) {
	var out bytes.Buffer
	if err := printJSON(&out, map[string]string{"id": "a-1"}); err != nil {
		t.Fatalf("printJSON() error = %v", err)
	}
	if out.String() != "{\n  \"id\": \"a-1\"\n}\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}
