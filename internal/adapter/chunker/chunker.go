package chunker

import (
	"fmt"
	"sync"

	"typeinf/internal/domain"
	"typeinf/internal/port"
)

// labelRef carries full label identity through the concatenated token
// stream, so a single linear pass can chunk many files at once.
type labelRef struct {
	ty    domain.Type
	site  domain.AnnotationSite
	tks   []int
	srcID int
}

// Chunker slides a fixed-size window with context margins over
// concatenated tokenized sources.
type Chunker struct {
	tok     port.Tokenizer
	ctx     domain.CtxArgs
	workers int
}

func New(tok port.Tokenizer, ctx domain.CtxArgs, workers int) (*Chunker, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	return &Chunker{tok: tok, ctx: ctx, workers: workers}, nil
}

// Chunk turns the sources into a chunked dataset. Windows advance by the
// central window size, so every token lands in exactly one central
// window (margins excepted); windows with no label in their central part
// are dropped. Chunk ids are the window indices and stay stable under
// subsetting.
func (c *Chunker) Chunk(srcs []*domain.TokenizedSrc) (*domain.ChunkedDataset, error) {
	all, labels, err := concat(srcs, c.tok)
	if err != nil {
		return nil, err
	}

	stride := c.ctx.WindowSize()
	nWindows := (len(all) + stride - 1) / stride

	type result struct {
		row  *domain.ChunkRow
		info *domain.SrcChunkInfo
		err  error
	}
	results := make([]result, nWindows)

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.workers)
	for w := 0; w < nWindows; w++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(w int) {
			defer wg.Done()
			defer func() { <-sem }()
			row, info, err := c.processWindow(all, labels, w*stride, w)
			results[w] = result{row, info, err}
		}(w)
	}
	wg.Wait()

	ds := &domain.ChunkedDataset{
		FileToSrc:  make(map[string]string, len(srcs)),
		FileToRepo: make(map[string]string, len(srcs)),
	}
	for _, s := range srcs {
		ds.Files = append(ds.Files, s.File)
		ds.FileToSrc[s.File] = s.OriginCode
		ds.FileToRepo[s.File] = s.Repo
	}
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.row == nil {
			continue
		}
		ds.Rows = append(ds.Rows, *r.row)
		ds.Info = append(ds.Info, *r.info)
	}
	if err := ds.CheckIntegrity(); err != nil {
		return nil, err
	}
	return ds, nil
}

// concat joins all token streams, replacing each mask marker at a label
// position with a structured reference to the label's identity.
func concat(srcs []*domain.TokenizedSrc, tok port.Tokenizer) ([]int, map[int]labelRef, error) {
	var all []int
	labels := make(map[int]labelRef)
	for srcID, src := range srcs {
		offset := len(all)
		all = append(all, src.TokenizedCode...)
		for i := range src.Types {
			pos := offset + src.TypesPos[i]
			if all[pos] != tok.Mask() {
				return nil, nil, &domain.IntegrityError{Msg: fmt.Sprintf(
					"%s: label %d position %d does not hold the mask token",
					src.File, i, src.TypesPos[i])}
			}
			labels[pos] = labelRef{
				ty:    src.Types[i],
				site:  src.TypesInfo[i],
				tks:   src.TypesTks[i],
				srcID: srcID,
			}
		}
	}
	return all, labels, nil
}

// at returns the token at virtual index i, padding outside the stream.
func at(all []int, i, pad int) (int, bool) {
	if i < 0 || i >= len(all) {
		return pad, false
	}
	return all[i], true
}

// processWindow builds one chunk from the window starting at token index
// start. Stateless; safe to run in parallel.
func (c *Chunker) processWindow(all []int, labels map[int]labelRef, start, chunkID int) (*domain.ChunkRow, *domain.SrcChunkInfo, error) {
	left, window, right := c.ctx.LeftMargin, c.ctx.WindowSize(), c.ctx.RightMargin
	pad := c.tok.Pad()

	var middle []int
	info := &domain.SrcChunkInfo{}
	var labelTks [][]int
	for i := start + left; i < start+left+window; i++ {
		ref, isLabel := labels[i]
		if !isLabel || i >= len(all) {
			id, _ := at(all, i, pad)
			middle = append(middle, id)
			continue
		}
		slot := domain.MarkerBudget - 1 - len(info.Types)
		if slot < 0 {
			return nil, nil, &domain.IntegrityError{Msg: fmt.Sprintf(
				"more than %d labels in window starting at %d", domain.MarkerBudget, start)}
		}
		middle = append(middle, c.tok.MarkerID(slot))
		info.Types = append(info.Types, ref.ty)
		info.SitesInfo = append(info.SitesInfo, ref.site)
		info.SrcIDs = append(info.SrcIDs, ref.srcID)
		labelTks = append(labelTks, ref.tks)
	}
	if len(info.Types) == 0 {
		return nil, nil, nil
	}

	leftCtx := c.margin(all, labels, start, start+left, left, true)
	rightCtx := c.margin(all, labels, start+left+window, start+c.ctx.CtxSize, right, false)

	inputIDs := make([]int, 0, c.ctx.CtxSize)
	inputIDs = append(inputIDs, leftCtx...)
	inputIDs = append(inputIDs, middle...)
	inputIDs = append(inputIDs, rightCtx...)
	if len(inputIDs) != c.ctx.CtxSize {
		return nil, nil, &domain.IntegrityError{Msg: fmt.Sprintf(
			"chunk %d has %d input tokens, want %d", chunkID, len(inputIDs), c.ctx.CtxSize)}
	}

	labelIDs := []int{c.tok.BOS()}
	for i, tks := range labelTks {
		labelIDs = append(labelIDs, c.tok.MarkerID(domain.MarkerBudget-1-i))
		labelIDs = append(labelIDs, tks...)
	}
	labelIDs = append(labelIDs, c.tok.EOS())

	row := &domain.ChunkRow{
		ChunkID:  chunkID,
		InputIDs: inputIDs,
		Labels:   labelIDs,
		NLabels:  len(info.Types),
	}
	return row, info, nil
}

// margin renders a context margin of exactly `size` tokens. Labels in
// context expand to their true sub-tokens when TypesInCtx is set,
// otherwise collapse to the mask token; the result is truncated on the
// far side and padded when short.
func (c *Chunker) margin(all []int, labels map[int]labelRef, from, to, size int, truncLeft bool) []int {
	var out []int
	for i := from; i < to; i++ {
		if ref, ok := labels[i]; ok && i < len(all) {
			if c.ctx.TypesInCtx {
				out = append(out, ref.tks...)
			} else {
				out = append(out, c.tok.Mask())
			}
			continue
		}
		id, _ := at(all, i, c.tok.Pad())
		out = append(out, id)
	}
	if len(out) > size {
		if truncLeft {
			out = out[len(out)-size:]
		} else {
			out = out[:size]
		}
	}
	for len(out) < size {
		if truncLeft {
			out = append([]int{c.tok.Pad()}, out...)
		} else {
			out = append(out, c.tok.Pad())
		}
	}
	return out
}
