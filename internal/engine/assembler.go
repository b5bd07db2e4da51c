package engine

import (
	"fmt"
	"io"
	"os"

	"vlget/internal/domain"
	"vlget/internal/infra/logger"
)

// AssemblyError reports sequence indices with no successful segment. A
// container missing chunks is unplayable, so assembly refuses to produce
// anything rather than write a corrupt file.
type AssemblyError struct {
	Missing []int
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly missing %d segment(s): %v", len(e.Missing), e.Missing)
}

// Assembler concatenates spooled segments into one output file in strict
// ascending index order, independent of the order fetches completed in.
type Assembler struct {
	log *logger.Logger
}

func NewAssembler(log *logger.Logger) *Assembler {
	return &Assembler{log: log}
}

// Assemble streams every segment in 0..expected-1 into outPath, consuming
// the spool files as it goes. Any gap is fatal and leaves no output behind.
func (a *Assembler) Assemble(results map[int]domain.SegmentResult, expected int, outPath string) error {
	var missing []int
	for i := 0; i < expected; i++ {
		res, ok := results[i]
		if !ok || !res.OK() {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return &AssemblyError{Missing: missing}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	for i := 0; i < expected; i++ {
		if err := appendAndCleanup(results[i].SpoolPath, out); err != nil {
			out.Close()
			os.Remove(outPath)
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(outPath)
		return err
	}
	a.log.Debug("assembled %d segments into %s", expected, outPath)
	return out.Close()
}

// appendAndCleanup streams one spool file into the output and removes it
// immediately to free space.
func appendAndCleanup(srcPath string, dst io.Writer) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("missing segment file %s: %w", srcPath, err)
	}

	_, err = io.Copy(dst, src)
	src.Close()

	if err != nil {
		return err
	}

	return os.Remove(srcPath)
}
