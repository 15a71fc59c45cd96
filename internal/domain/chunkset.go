package domain

import "fmt"

// ChunkedDataset is a column-oriented table of chunks plus the parallel
// per-chunk label metadata and the file identity maps needed to trace a
// label back to its origin. Rows and Info are always the same length.
type ChunkedDataset struct {
	Rows []ChunkRow
	Info []SrcChunkInfo

	// Files[i] is the path of source i referenced by SrcChunkInfo.SrcIDs.
	Files      []string
	FileToSrc  map[string]string
	FileToRepo map[string]string
}

// Len returns the number of chunks.
func (d *ChunkedDataset) Len() int { return len(d.Rows) }

// CheckIntegrity verifies the row/info parallel invariant.
func (d *ChunkedDataset) CheckIntegrity() error {
	if len(d.Rows) != len(d.Info) {
		return &IntegrityError{Msg: fmt.Sprintf(
			"chunk table has %d rows but %d info records", len(d.Rows), len(d.Info))}
	}
	for i, row := range d.Rows {
		if row.NLabels != len(d.Info[i].Types) {
			return &IntegrityError{Msg: fmt.Sprintf(
				"chunk %d declares %d labels but info holds %d types",
				row.ChunkID, row.NLabels, len(d.Info[i].Types))}
		}
	}
	return nil
}

// Subset returns a dataset holding only the requested chunk ids, looked
// up by id rather than by row position so that ids remain stable under
// repeated subsetting.
func (d *ChunkedDataset) Subset(chunkIDs []int) (*ChunkedDataset, error) {
	byID := make(map[int]int, len(d.Rows))
	for i, row := range d.Rows {
		byID[row.ChunkID] = i
	}
	sub := &ChunkedDataset{
		Files:      d.Files,
		FileToSrc:  d.FileToSrc,
		FileToRepo: d.FileToRepo,
	}
	for _, id := range chunkIDs {
		i, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown chunk id: %d", id)
		}
		sub.Rows = append(sub.Rows, d.Rows[i])
		sub.Info = append(sub.Info, d.Info[i])
	}
	return sub, nil
}
