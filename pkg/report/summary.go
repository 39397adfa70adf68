package report

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save renders run with every reporter into outputDir, named
// <program>_<run id><ext>, and points latest<ext> at the newest
// report. It returns the written paths.
func Save(
	run *Run,
	outputDir string,
	reporters ...Reporter,
) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf(
			"failed to create output directory: %w", err,
		)
	}

	program := run.Program
	if program == "" {
		program = "program"
	}

	paths := make([]string, 0, len(reporters))
	for _, r := range reporters {
		data, err := r.GenerateReport(run)
		if err != nil {
			return paths, fmt.Errorf(
				"failed to generate %s report: %w",
				r.Extension(), err,
			)
		}
		path := filepath.Join(
			outputDir,
			fmt.Sprintf("%s_%s%s", filepath.Base(program), run.ID, r.Extension()),
		)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf(
				"failed to write report %s: %w", path, err,
			)
		}
		paths = append(paths, path)

		latest := filepath.Join(outputDir, "latest"+r.Extension())
		_ = os.Remove(latest)
		_ = os.Symlink(filepath.Base(path), latest)
	}

	return paths, nil
}
