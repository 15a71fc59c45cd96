package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"typeinf/internal/adapter/chunker"
	"typeinf/internal/adapter/encode"
	"typeinf/internal/adapter/fs"
	"typeinf/internal/adapter/segment"
	"typeinf/internal/domain"
	"typeinf/internal/port"
)

// DatasetStats records what the bulk builder and feedback rounds dropped
// or failed along the way.
type DatasetStats struct {
	FilesScanned    int
	FilesTooWide    int
	FilesDropped    int
	CheckerFailures int
	FilesChecked    int
	ErrorsPerFile   float64
}

// SrcDataset is an ordered collection of tokenized sources under one
// repos root.
type SrcDataset struct {
	ReposRoot string
	Srcs      []*domain.TokenizedSrc
	Stats     DatasetStats
}

// SrcsWithLabels returns the sources that carry at least one prediction
// target.
func (d *SrcDataset) SrcsWithLabels() []*domain.TokenizedSrc {
	var out []*domain.TokenizedSrc
	for _, s := range d.Srcs {
		if s.NumLabels() > 0 {
			out = append(out, s)
		}
	}
	return out
}

// NumLabels is the total prediction-target count across all sources.
func (d *SrcDataset) NumLabels() int {
	n := 0
	for _, s := range d.Srcs {
		n += s.NumLabels()
	}
	return n
}

// BuildOpts configures the bulk dataset builder.
type BuildOpts struct {
	MaxLineWidth int
	LabelRatio   float64
	Seed         int64
	Workers      int
	Progress     func(done, total int)
}

// DatasetBuilder assembles SrcDatasets from on-disk repositories.
type DatasetBuilder struct {
	Walker    *fs.Walker
	Segmenter *segment.Segmenter
	Builder   *encode.Builder
	Checker   port.TypeChecker
}

// BuildFromRepos walks every repo, masks a random fraction of the type
// annotations as labels and tokenizes the result. Files that fail to
// parse or violate the masked-record format are dropped and counted,
// never fatal.
func (b *DatasetBuilder) BuildFromRepos(ctx context.Context, reposRoot string, repoPaths []string, opts BuildOpts) (*SrcDataset, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	type input struct {
		file string // relative to reposRoot
		repo string
		code string
	}
	var inputs []input
	ds := &SrcDataset{ReposRoot: reposRoot}

	for _, repo := range repoPaths {
		files, err := b.Walker.Walk(repo)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", repo, err)
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		relRepo, err := filepath.Rel(reposRoot, repo)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			code, err := fs.ReadFile(f.Path)
			if err != nil {
				ds.Stats.FilesDropped++
				continue
			}
			ds.Stats.FilesScanned++
			if opts.MaxLineWidth > 0 && maxLineWidth(code) > opts.MaxLineWidth {
				ds.Stats.FilesTooWide++
				continue
			}
			rel, err := filepath.Rel(reposRoot, f.Path)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, input{file: rel, repo: relRepo, code: code})
		}
	}

	// Phase 1: mask in parallel. Per-file parse and format failures
	// drop the file.
	masked := make([]*segment.MaskedFile, len(inputs))
	pool := NewCPUPool(opts.Workers)
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	done := 0
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = pool.Do(ctx, func() error {
				m, err := b.Segmenter.Mask(inputs[i].file, inputs[i].repo, inputs[i].code)
				if err == nil {
					masked[i] = m
				}
				if opts.Progress != nil {
					progressMu.Lock()
					done++
					opts.Progress(done, len(inputs))
					progressMu.Unlock()
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Phase 2: sample labels sequentially with a seeded generator so
	// builds are reproducible regardless of worker count.
	rng := rand.New(rand.NewSource(opts.Seed))
	var kept []*segment.MaskedFile
	for _, m := range masked {
		if m == nil {
			ds.Stats.FilesDropped++
			continue
		}
		for i := range m.Kinds {
			if rng.Float64() >= opts.LabelRatio {
				m.Kinds[i] = domain.RevealedContext
			}
		}
		kept = append(kept, m)
	}

	// Phase 3: tokenize in parallel.
	srcs := make([]*domain.TokenizedSrc, len(kept))
	errs := make([]error, len(kept))
	for i := range kept {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = pool.Do(ctx, func() error {
				srcs[i], errs[i] = b.Builder.FromMasked(kept[i])
				return nil
			})
		}(i)
	}
	wg.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	seen := make(map[string]bool)
	for i, src := range srcs {
		if errs[i] != nil {
			var fe *domain.FormatError
			var pe *domain.ParseError
			if errors.As(errs[i], &fe) || errors.As(errs[i], &pe) {
				ds.Stats.FilesDropped++
				continue
			}
			return nil, errs[i]
		}
		if seen[src.File] {
			return nil, &domain.IntegrityError{Msg: src.File + " appears more than once"}
		}
		seen[src.File] = true
		ds.Srcs = append(ds.Srcs, src)
	}
	return ds, nil
}

// ToChunks chunks every labeled source and cross-checks the result
// against this dataset.
func (d *SrcDataset) ToChunks(ck *chunker.Chunker) (*domain.ChunkedDataset, error) {
	srcs := d.SrcsWithLabels()
	ds, err := ck.Chunk(srcs)
	if err != nil {
		return nil, err
	}
	if err := chunker.VerifyLabels(ds, srcs); err != nil {
		return nil, err
	}
	return ds, nil
}

// ApplyAssignment splices predicted (or revealed) types over their
// annotation sites in the original source text.
func ApplyAssignment(src *domain.TokenizedSrc, assignment map[int]domain.Type) (string, error) {
	var patches []segment.Patch
	for i, ty := range assignment {
		if i < 0 || i >= len(src.TypesInfo) {
			return "", &domain.IntegrityError{Msg: fmt.Sprintf(
				"assignment references label %d of %s, which has %d labels",
				i, src.File, len(src.TypesInfo))}
		}
		site := src.TypesInfo[i]
		patches = append(patches, segment.Patch{
			StartOff: site.StartOff,
			EndOff:   site.EndOff,
			Priority: segment.PrioMask,
			Text:     ty.String(),
		})
	}
	return segment.Apply(src.OriginCode, patches)
}

// AddCheckerFeedback applies per-file predictions, type-checks each file
// in its repo, and rebuilds every source with the diagnostics and prior
// predictions inlined. Returns a fresh dataset; the receiver is left
// untouched.
func (d *SrcDataset) AddCheckerFeedback(
	ctx context.Context,
	b *encode.Builder,
	checker port.TypeChecker,
	fileToPreds map[string]map[int]domain.Type,
	searchPath string,
	workers int,
	progress func(done, total int),
) (*SrcDataset, error) {
	defer checker.ClearTempCache()

	byFile := make(map[string]*domain.TokenizedSrc, len(d.Srcs))
	for _, s := range d.Srcs {
		byFile[s.File] = s
	}
	var files []string
	for f := range fileToPreds {
		if _, ok := byFile[f]; !ok {
			return nil, fmt.Errorf("predictions reference unknown file %s", f)
		}
		files = append(files, f)
	}
	sort.Strings(files)

	result := &SrcDataset{ReposRoot: d.ReposRoot}
	newSrcs := make([]*domain.TokenizedSrc, len(files))
	errsPerFile := make([]int, len(files))
	failures := make([]bool, len(files))
	errs := make([]error, len(files))

	pool := NewCPUPool(workers)
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	done := 0
	for i, f := range files {
		wg.Add(1)
		go func(i int, f string) {
			defer wg.Done()
			_ = pool.Do(ctx, func() error {
				src := byFile[f]
				preds := fileToPreds[f]
				code, err := ApplyAssignment(src, preds)
				if err != nil {
					errs[i] = err
					return nil
				}
				absFile := filepath.Join(d.ReposRoot, src.File)
				repoDir := filepath.Join(d.ReposRoot, src.Repo)
				diags, fail, err := checker.Check(ctx, code, absFile, repoDir, searchPath)
				if err != nil {
					errs[i] = err
					return nil
				}
				if fail != nil {
					failures[i] = true
					diags = nil
				}
				errsPerFile[i] = len(diags)
				newSrcs[i], errs[i] = b.FromFeedback(src, code, diags, copyAssignment(preds))
				if progress != nil {
					progressMu.Lock()
					done++
					progress(done, len(files))
					progressMu.Unlock()
				}
				return nil
			})
		}(i, f)
	}
	wg.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	totalErrs := 0
	for i := range files {
		if errs[i] != nil {
			var fe *domain.FormatError
			var pe *domain.ParseError
			if errors.As(errs[i], &fe) || errors.As(errs[i], &pe) {
				result.Stats.FilesDropped++
				continue
			}
			return nil, errs[i]
		}
		if failures[i] {
			result.Stats.CheckerFailures++
		} else {
			result.Stats.FilesChecked++
		}
		totalErrs += errsPerFile[i]
		result.Srcs = append(result.Srcs, newSrcs[i])
	}
	if len(result.Srcs) > 0 {
		result.Stats.ErrorsPerFile = float64(totalErrs) / float64(len(result.Srcs))
	}
	return result, nil
}

func copyAssignment(a map[int]domain.Type) map[int]domain.Type {
	out := make(map[int]domain.Type, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func maxLineWidth(code string) int {
	w := 0
	for _, line := range strings.Split(code, "\n") {
		if len(line) > w {
			w = len(line)
		}
	}
	return w
}
