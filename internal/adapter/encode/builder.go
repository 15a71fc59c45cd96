package encode

import (
	"fmt"
	"strings"

	"typeinf/internal/adapter/segment"
	"typeinf/internal/domain"
	"typeinf/internal/port"
)

// Builder turns masked source records into TokenizedSrc values and
// rebuilds them from type-checker feedback between rollout rounds.
type Builder struct {
	tok port.Tokenizer
}

func NewBuilder(tok port.Tokenizer) *Builder {
	return &Builder{tok: tok}
}

// FromMasked tokenizes a masked file. Sites whose kind is
// PredictionTarget become mask markers with recorded positions; revealed
// sites are expanded to their true type tokens inline.
func (b *Builder) FromMasked(m *segment.MaskedFile) (*domain.TokenizedSrc, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	src := &domain.TokenizedSrc{
		File:       m.File,
		Repo:       m.Repo,
		OriginCode: m.OriginCode,
	}
	tks := []int{b.tok.BOS()}
	for i := range m.Types {
		tks = append(tks, b.tok.Encode(m.Segments[i])...)
		if m.Kinds[i] == domain.PredictionTarget {
			src.TypesPos = append(src.TypesPos, len(tks))
			src.Types = append(src.Types, m.Types[i])
			src.TypesTks = append(src.TypesTks, b.tok.Encode(m.Types[i].String()))
			src.TypesStr = append(src.TypesStr, m.TypesStr[i])
			src.TypesInfo = append(src.TypesInfo, m.SitesInfo[i])
			tks = append(tks, b.tok.Mask())
		} else {
			tks = append(tks, b.tok.Encode(m.TypesStr[i])...)
		}
	}
	tks = append(tks, b.tok.Encode(m.Segments[len(m.Segments)-1])...)
	tks = append(tks, b.tok.EOS())
	src.TokenizedCode = tks
	return src, nil
}

// FromFeedback rebuilds a tokenized source from a previous round. It
// re-parses currentCode (the checked file with the assignment applied),
// maps the annotations present back to their original label identity by
// structural path, then patches the text so that every label site is
// masked again, its current annotation trails it as a comment, and every
// diagnostic is inlined as a comment at its position. The patched text
// is re-tokenized with all sites as prediction targets.
func (b *Builder) FromFeedback(
	prev *domain.TokenizedSrc,
	currentCode string,
	diags map[domain.Position]string,
	assignment map[int]domain.Type,
) (*domain.TokenizedSrc, error) {
	annots, err := segment.CollectAnnotations(prev.File, currentCode)
	if err != nil {
		return nil, err
	}

	pathToLabel := make(map[string]int, len(prev.TypesInfo))
	for i, info := range prev.TypesInfo {
		pathToLabel[info.Path] = i
	}

	m := &segment.MaskedFile{File: prev.File, Repo: prev.Repo}
	var patches []segment.Patch
	for _, a := range annots {
		li, ok := pathToLabel[a.Site.Path]
		if !ok {
			continue
		}
		patches = append(patches,
			segment.Patch{StartOff: a.Site.StartOff, EndOff: a.Site.EndOff,
				Priority: segment.PrioMask, Text: segment.TypeMask},
			segment.Patch{StartOff: a.Site.StartOff, EndOff: a.Site.StartOff,
				Priority: segment.PrioPrediction, Text: "/* " + a.TypeStr + " */"},
		)
		m.Types = append(m.Types, prev.Types[li])
		m.TypesStr = append(m.TypesStr, prev.TypesStr[li])
		m.SitesInfo = append(m.SitesInfo, a.Site)
		m.Kinds = append(m.Kinds, domain.PredictionTarget)
	}
	for pos, msg := range diags {
		patches = append(patches, segment.Patch{
			StartOff: segment.OffsetOf(currentCode, pos),
			EndOff:   segment.OffsetOf(currentCode, pos),
			Priority: segment.PrioDiagnostic,
			Text:     "/* error: " + msg + " */",
		})
	}

	newCode, err := segment.Apply(currentCode, patches)
	if err != nil {
		return nil, &domain.ParseError{File: prev.File, Content: currentCode, Err: err}
	}
	segs := strings.Split(newCode, segment.TypeMask)
	if len(segs) != len(m.Types)+1 {
		return nil, &domain.FormatError{Msg: fmt.Sprintf(
			"%s: %d segments for %d labels after feedback patching",
			prev.File, len(segs), len(m.Types))}
	}
	m.Segments = segs
	m.OriginCode = newCode

	src, err := b.FromMasked(m)
	if err != nil {
		return nil, err
	}
	src.PrevTypes = assignment
	return src, nil
}
