package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vmcheck/vector"
)

const listSnapshot = `
classes:
  - name: Node
    fields:
      - {name: next, type: reference}
      - {name: value, type: int}
methods:
  - {class: Node, name: run}
objects:
  - {ref: %[1]v, class: Node, fields: {next: %[2]v, value: 1}}
  - {ref: %[2]v, class: Node, fields: {next: -1, value: 2}}
threads:
  - object: %[1]v
    status: running
    frames:
      - method: Node.run
        pc: 4
        locals: [{value: %[2]v, ref: true}]
`

func writeSnapshot(t *testing.T, dir, name string, head, tail int) string {
	t.Helper()
	doc := fmt.Sprintf(listSnapshot, head, tail)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFingerprintCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeSnapshot(t, dir, "a.yaml", 3, 5)
	b := writeSnapshot(t, dir, "b.yaml", 20, 10)

	out, err := execute(t, "fingerprint", a, b)
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	if !strings.Contains(out, b+" is the same state as "+a) {
		t.Errorf("Expected renumbered snapshots to be reported as the same state. Got:\n%v", out)
	}
}

func TestFingerprintCommandGraph(t *testing.T) {
	dir := t.TempDir()
	a := writeSnapshot(t, dir, "a.yaml", 3, 5)

	out, err := execute(t, "fingerprint", "--graph", a)
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	if !strings.Contains(out, a+" graph:") {
		t.Errorf("Expected the graph to be printed. Got:\n%v", out)
	}
}

func TestFingerprintCommandConfig(t *testing.T) {
	dir := t.TempDir()
	a := writeSnapshot(t, dir, "a.yaml", 3, 5)
	cfg := filepath.Join(dir, "vmcheck.yaml")
	if err := os.WriteFile(cfg, []byte("linearizer: dfs\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", cfg, "fingerprint", a); err == nil {
		t.Errorf("Expected an error for an unknown linearizer")
	}
	if _, err := execute(t, "fingerprint", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("Expected an error for a missing snapshot")
	}
}

var choicesTests = []struct {
	args     []string
	expected []string
}{
	{[]string{"choices", "1..3"}, []string{"1/3 1 choice[>1,2,3]", "2/3 2 choice[1,>2,3]", "3/3 3 choice[1,2,>3]"}},
	{[]string{"choices", "--kind", "double", "--id", "d", "0.5,1.5"}, []string{"1/2 0.5 d[>0.5,1.5]", "2/2 1.5 d[0.5,>1.5]"}},
	{[]string{"choices", "--kind", "bool", "--id", "b"}, []string{"1/2 false b[>false,true]", "2/2 true b[false,>true]"}},
}

func TestChoicesCommand(t *testing.T) {
	for _, test := range choicesTests {
		out, err := execute(t, test.args...)
		if err != nil {
			t.Fatalf("%v: did not expect to receive an error. Got %v", test.args, err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != len(test.expected) {
			t.Fatalf("%v: unexpected output. Got %q. Expected: %q", test.args, lines, test.expected)
		}
		for i := range lines {
			if lines[i] != test.expected[i] {
				t.Errorf("%v: unexpected line %v. Got %q. Expected: %q", test.args, i, lines[i], test.expected[i])
			}
		}
	}
}

func TestChoicesCommandSeed(t *testing.T) {
	out, err := execute(t, "choices", "--seed", "7", "1..5")
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 5 {
		t.Errorf("Unexpected number of choices. Got %v. Expected: 5", n)
	}
}

func TestChoicesCommandErrors(t *testing.T) {
	if _, err := execute(t, "choices", "--kind", "string", "a"); err == nil {
		t.Errorf("Expected an error for an unknown kind")
	}
	if _, err := execute(t, "choices", "x,y"); err == nil {
		t.Errorf("Expected an error for an invalid value")
	}
}

func TestSameState(t *testing.T) {
	a := vector.NewIntVector(0, nil)
	a.AddAll(1, 2, 3)
	b := vector.NewIntVector(0, nil)
	b.AddAll(1, 2, 4)
	bucket := []seenState{{path: "a.yaml", fp: a}}

	if _, ok := sameState(bucket, b); ok {
		t.Errorf("Expected different fingerprints sharing a hash bucket to be different states")
	}
	if path, ok := sameState(bucket, a.Clone()); !ok || path != "a.yaml" {
		t.Errorf("Unexpected match. Got %v, %v. Expected: a.yaml, true", path, ok)
	}
}

func TestFingerprintCommandDifferentStates(t *testing.T) {
	dir := t.TempDir()
	a := writeSnapshot(t, dir, "a.yaml", 3, 5)
	b := writeSnapshot(t, dir, "b.yaml", 5, 3)
	c := filepath.Join(dir, "c.yaml")
	doc, _ := os.ReadFile(b)
	if err := os.WriteFile(c, []byte(strings.Replace(string(doc), "value: 2", "value: 9", 1)), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "fingerprint", a, c)
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	if strings.Contains(out, "is the same state as") {
		t.Errorf("Did not expect different snapshots to be reported as the same state. Got:\n%v", out)
	}
}
