package chunker

import (
	"fmt"

	"typeinf/internal/domain"
)

// VerifyLabels cross-checks a chunked dataset against its originating
// sources: every chunk label's annotation path must exist in the label
// set of the file it claims to come from, with a matching ground-truth
// type. A mismatch is a pipeline bug, never a user-facing error.
func VerifyLabels(ds *domain.ChunkedDataset, srcs []*domain.TokenizedSrc) error {
	byFile := make(map[string]map[string]domain.Type, len(srcs))
	for _, src := range srcs {
		m := make(map[string]domain.Type, len(src.Types))
		for i, info := range src.TypesInfo {
			m[info.Path] = src.Types[i]
		}
		byFile[src.File] = m
	}

	for ci, info := range ds.Info {
		for j, site := range info.SitesInfo {
			sid := info.SrcIDs[j]
			if sid < 0 || sid >= len(ds.Files) {
				return &domain.IntegrityError{Msg: fmt.Sprintf(
					"chunk %d label %d references unknown source %d", ci, j, sid)}
			}
			file := ds.Files[sid]
			fileLabels, ok := byFile[file]
			if !ok {
				return &domain.IntegrityError{Msg: fmt.Sprintf(
					"chunk %d references file %s absent from source set", ci, file)}
			}
			want, ok := fileLabels[site.Path]
			if !ok {
				return &domain.IntegrityError{Msg: fmt.Sprintf(
					"%s is not a label of %s", site.Path, file)}
			}
			if !want.Equal(info.Types[j]) {
				return &domain.IntegrityError{Msg: fmt.Sprintf(
					"%s in %s: chunk records type %s, source has %s",
					site.Path, file, info.Types[j], want)}
			}
		}
	}
	return nil
}
