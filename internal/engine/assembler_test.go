package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"vlget/internal/domain"
	"vlget/internal/infra/logger"
)

func spoolResults(t *testing.T, dir string, bodies []string) map[int]domain.SegmentResult {
	t.Helper()

	// Insert in shuffled order: assembly order must not depend on it.
	order := rand.Perm(len(bodies))
	results := make(map[int]domain.SegmentResult, len(bodies))
	for _, i := range order {
		path := filepath.Join(dir, fmt.Sprintf("seg_%05d.ts", i))
		if err := os.WriteFile(path, []byte(bodies[i]), 0644); err != nil {
			t.Fatal(err)
		}
		results[i] = domain.SegmentResult{Index: i, SpoolPath: path, Bytes: int64(len(bodies[i]))}
	}
	return results
}

func TestAssembleOrdersByIndex(t *testing.T) {
	dir := t.TempDir()
	bodies := []string{"alpha-", "bravo-", "charlie-", "delta-", "echo"}
	results := spoolResults(t, dir, bodies)

	out := filepath.Join(dir, "out.ts")
	if err := NewAssembler(logger.Discard()).Assemble(results, len(bodies), out); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "alpha-bravo-charlie-delta-echo" {
		t.Errorf("output = %q", data)
	}

	// Spool files are consumed during assembly.
	for i := range bodies {
		spool := filepath.Join(dir, fmt.Sprintf("seg_%05d.ts", i))
		if _, err := os.Stat(spool); !os.IsNotExist(err) {
			t.Errorf("spool file %d not cleaned up", i)
		}
	}
}

func TestAssembleMissingSegmentIsFatal(t *testing.T) {
	dir := t.TempDir()
	results := spoolResults(t, dir, []string{"a", "b", "c"})
	delete(results, 1)

	out := filepath.Join(dir, "out.ts")
	err := NewAssembler(logger.Discard()).Assemble(results, 3, out)

	var ae *AssemblyError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AssemblyError", err)
	}
	if len(ae.Missing) != 1 || ae.Missing[0] != 1 {
		t.Errorf("missing = %v, want [1]", ae.Missing)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("assembly error left an output file")
	}
}

func TestAssembleFailedSegmentIsFatal(t *testing.T) {
	dir := t.TempDir()
	results := spoolResults(t, dir, []string{"a", "b", "c"})
	results[2] = domain.SegmentResult{Index: 2, Err: errors.New("HTTP 403")}

	err := NewAssembler(logger.Discard()).Assemble(results, 3, filepath.Join(dir, "out.ts"))

	var ae *AssemblyError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AssemblyError", err)
	}
	if len(ae.Missing) != 1 || ae.Missing[0] != 2 {
		t.Errorf("missing = %v, want [2]", ae.Missing)
	}
}

func TestAssembleNeverFabricatesIndices(t *testing.T) {
	dir := t.TempDir()
	results := spoolResults(t, dir, []string{"a", "b"})

	// expected=4 with only indices 0..1 present.
	err := NewAssembler(logger.Discard()).Assemble(results, 4, filepath.Join(dir, "out.ts"))

	var ae *AssemblyError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AssemblyError", err)
	}
	if len(ae.Missing) != 2 {
		t.Errorf("missing = %v, want [2 3]", ae.Missing)
	}
}
