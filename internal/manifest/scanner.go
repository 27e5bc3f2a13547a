package manifest

import (
	"context"
	"fmt"
	"sync"

	"github.com/loadstone/loadstone/internal/ctxlog"
	"github.com/loadstone/loadstone/internal/fsutil"
)

// defaultScanWorkers bounds the number of manifests parsed concurrently.
const defaultScanWorkers = 8

// Scanner discovers mod directories under a root and parses their manifests.
type Scanner struct {
	// Workers bounds parse parallelism. Zero means the default.
	Workers int
}

// Scan walks the immediate subdirectories of root, parses every manifest it
// finds, and returns the valid descriptors in deterministic order together
// with a validation report for the rest.
//
// Descriptors are independent, so parsing runs with bounded parallelism;
// results are re-sorted by directory path afterwards, never left in
// task-completion order. A non-existent root yields an empty result.
func (s *Scanner) Scan(ctx context.Context, root string) ([]*Descriptor, *Report, error) {
	logger := ctxlog.FromContext(ctx)
	report := &Report{}

	dirs, err := fsutil.FindDirsWithFile(root, ManifestFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning mod root %s: %w", root, err)
	}
	if len(dirs) == 0 {
		logger.Warn("No mods found in root.", "root", root)
		return nil, report, nil
	}
	logger.Debug("Discovered candidate mod directories.", "root", root, "count", len(dirs))

	workers := s.Workers
	if workers <= 0 {
		workers = defaultScanWorkers
	}

	// parsed is indexed by directory position so the merged result keeps
	// the sorted-path order regardless of which worker finished first.
	type result struct {
		desc *Descriptor
		err  error
	}
	parsed := make([]result, len(dirs))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, dir string) {
			defer wg.Done()
			defer func() { <-sem }()
			desc, err := ParseDir(dir)
			parsed[i] = result{desc: desc, err: err}
		}(i, dir)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Merge pass: collect valid descriptors, reject duplicates. The first
	// occurrence in discovery order wins.
	seen := make(map[string]string, len(dirs))
	var descriptors []*Descriptor
	for i, res := range parsed {
		if res.err != nil {
			logger.Warn("Excluding invalid mod.", "dir", dirs[i], "error", res.err)
			report.Add(dirs[i], res.err)
			continue
		}
		d := res.desc
		if firstDir, dup := seen[d.ID]; dup {
			err := fmt.Errorf("duplicate mod id %q: already declared in %s", d.ID, firstDir)
			logger.Warn("Excluding duplicate mod.", "dir", d.Dir, "error", err)
			report.Add(d.Dir, err)
			continue
		}
		seen[d.ID] = d.Dir
		d.DiscoveryIndex = len(descriptors)
		descriptors = append(descriptors, d)
	}

	logger.Info("Mod scan complete.", "discovered", len(descriptors), "excluded", len(report.Errors))
	return descriptors, report, nil
}
