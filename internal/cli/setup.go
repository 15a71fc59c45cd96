package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"

	"typeinf/config"
	"typeinf/internal/adapter/checker"
	"typeinf/internal/adapter/chunker"
	"typeinf/internal/adapter/encode"
	"typeinf/internal/adapter/fs"
	"typeinf/internal/adapter/segment"
	"typeinf/internal/adapter/vocab"
	"typeinf/internal/domain"
	"typeinf/internal/usecase"
)

// pipeline bundles the components every command assembles the same way.
type pipeline struct {
	voc       *vocab.Vocab
	segmenter *segment.Segmenter
	builder   *encode.Builder
	chunker   *chunker.Chunker
	checker   *checker.GoChecker
	walker    *fs.Walker
}

func newPipeline(cfg *config.Config) (*pipeline, error) {
	voc := vocab.New()
	ctx := domain.CtxArgs{
		CtxSize:     cfg.Ctx.CtxSize,
		LeftMargin:  cfg.Ctx.LeftMargin,
		RightMargin: cfg.Ctx.RightMargin,
		TypesInCtx:  cfg.Ctx.TypesInCtx,
	}
	ck, err := chunker.New(voc, ctx, cfg.Workers)
	if err != nil {
		return nil, err
	}
	tc, err := checker.New(cfg.Checker.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create type checker: %w", err)
	}
	return &pipeline{
		voc:       voc,
		segmenter: &segment.Segmenter{DropComments: cfg.Dataset.DropComments},
		builder:   encode.NewBuilder(voc),
		chunker:   ck,
		checker:   tc,
		walker:    fs.NewWalker(cfg.Dataset.Includes, cfg.Dataset.Excludes),
	}, nil
}

func (p *pipeline) datasetBuilder() *usecase.DatasetBuilder {
	return &usecase.DatasetBuilder{
		Walker:    p.walker,
		Segmenter: p.segmenter,
		Builder:   p.builder,
		Checker:   p.checker,
	}
}

// buildSplitSrcs reconstructs the tokenized sources of one stored split
// from the repos on disk.
func buildSplitSrcs(ctx context.Context, p *pipeline, cfg *config.Config, reposRoot string, repos []string, bar *progressbar.ProgressBar) (*usecase.SrcDataset, error) {
	sort.Strings(repos)
	paths := make([]string, len(repos))
	for i, r := range repos {
		paths[i] = filepath.Join(reposRoot, r)
	}
	opts := usecase.BuildOpts{
		MaxLineWidth: cfg.Dataset.MaxLineWidth,
		LabelRatio:   cfg.Dataset.LabelRatio,
		Seed:         cfg.Dataset.Seed,
		Workers:      cfg.Workers,
	}
	if bar != nil {
		opts.Progress = func(done, total int) {
			bar.ChangeMax(total)
			bar.Set(done)
		}
	}
	return p.datasetBuilder().BuildFromRepos(ctx, reposRoot, paths, opts)
}

func newBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+desc+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}
