package encode

import (
	"typeinf/internal/adapter/segment"
	"typeinf/internal/domain"
	"typeinf/internal/port"
)

// SplitOutput divides a raw output token sequence into per-label
// sub-sequences by scanning for marker ids in descending slot order
// starting at 99, dropping padding and anything before the first marker.
func SplitOutput(ids []int, tok port.Tokenizer) [][]int {
	slot := domain.MarkerBudget - 1
	mark := tok.MarkerID(slot)
	var seqs [][]int
	var buf []int
	for _, id := range ids {
		if id <= 0 || id == tok.Pad() {
			continue
		}
		if id != mark {
			buf = append(buf, id)
			continue
		}
		seqs = append(seqs, buf)
		buf = nil
		slot--
		if slot < 0 {
			break
		}
		mark = tok.MarkerID(slot)
	}
	seqs = append(seqs, buf)
	return seqs[1:]
}

// DecodeOutput parses model output as exactly nTypes type expressions.
// Sub-sequences that fail to decode or parse become the Any sentinel;
// missing entries are padded with Any and extras are truncated. Decoding
// never fails, whatever the model produced.
func DecodeOutput(ids []int, tok port.Tokenizer, nTypes int) []domain.Type {
	seqs := SplitOutput(ids, tok)
	if len(seqs) > nTypes {
		seqs = seqs[:nTypes]
	}
	types := make([]domain.Type, 0, nTypes)
	for _, seq := range seqs {
		ty, err := segment.ParseTypeExpr(tok.Decode(seq))
		if err != nil {
			ty = domain.AnyType
		}
		types = append(types, ty)
	}
	for len(types) < nTypes {
		types = append(types, domain.AnyType)
	}
	return types
}
