package chunker

import (
	"typeinf/internal/domain"
)

// SingleLabelChunk builds one chunk centered on label t of src, with
// every other label rendered as context. Used by the rollout loop, which
// predicts one type at a time.
func (c *Chunker) SingleLabelChunk(src *domain.TokenizedSrc, t int) (domain.Batch, domain.SrcChunkInfo, error) {
	if t < 0 || t >= len(src.Types) {
		return domain.Batch{}, domain.SrcChunkInfo{}, &domain.IntegrityError{
			Msg: "label index out of range"}
	}

	posToLabel := make(map[int]int, len(src.TypesPos))
	for li, pos := range src.TypesPos {
		posToLabel[pos] = li
	}

	// Expand all non-target labels in place so they read as context,
	// tracking how the target position shifts.
	var all []int
	targetPos := -1
	for i, id := range src.TokenizedCode {
		li, isLabel := posToLabel[i]
		if !isLabel {
			all = append(all, id)
			continue
		}
		if li == t {
			targetPos = len(all)
			all = append(all, c.tok.Mask())
			continue
		}
		if c.ctx.TypesInCtx {
			all = append(all, src.TypesTks[li]...)
		} else {
			all = append(all, c.tok.Mask())
		}
	}

	labels := map[int]labelRef{targetPos: {
		ty:    src.Types[t],
		site:  src.TypesInfo[t],
		tks:   src.TypesTks[t],
		srcID: 0,
	}}

	// Center the target inside the prediction window; the window may
	// extend past either end of the stream, where it pads.
	start := targetPos - c.ctx.LeftMargin - c.ctx.WindowSize()/2
	row, info, err := c.processWindow(all, labels, start, 0)
	if err != nil {
		return domain.Batch{}, domain.SrcChunkInfo{}, err
	}
	if row == nil || row.NLabels != 1 {
		return domain.Batch{}, domain.SrcChunkInfo{}, &domain.IntegrityError{
			Msg: "single-label chunk did not capture its target"}
	}
	batch := domain.Batch{InputIDs: row.InputIDs, Labels: row.Labels, NLabels: 1}
	return batch, *info, nil
}
