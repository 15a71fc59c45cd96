package usecase

import (
	"math"

	"typeinf/internal/domain"
)

// Accuracies aggregates prediction quality. Full accuracy requires exact
// (normalized) equality; partial accuracy only matches the head name.
type Accuracies struct {
	FullAcc         float64
	PartialAcc      float64
	PartialAccNoAny float64
	FullByCat       map[string]float64
	PartialByCat    map[string]float64
	NLabels         int
}

func safeDiv(a, b int) float64 {
	if b == 0 {
		return math.NaN()
	}
	return float64(a) / float64(b)
}

// TypeAccuracies compares predictions against ground truth, broken down
// by annotation category. Inputs are normalized before comparison when
// normalize is set.
func TypeAccuracies(preds, labels []domain.Type, cats []domain.AnnotCat, normalize bool) Accuracies {
	if len(preds) != len(labels) || len(labels) != len(cats) {
		panic("accuracy inputs must be parallel")
	}
	if normalize {
		np := make([]domain.Type, len(preds))
		nl := make([]domain.Type, len(labels))
		for i := range preds {
			np[i] = preds[i].Normalized()
			nl[i] = labels[i].Normalized()
		}
		preds, labels = np, nl
	}

	nCorrectByCat := map[domain.AnnotCat]int{}
	nPartialByCat := map[domain.AnnotCat]int{}
	nLabelByCat := map[domain.AnnotCat]int{}
	nPartialNoAny, nLabelNoAny := 0, 0

	for i := range preds {
		p, l, cat := preds[i], labels[i], cats[i]
		nLabelByCat[cat]++
		if p.Equal(l) {
			nCorrectByCat[cat]++
		}
		headMatch := p.HeadName() == l.HeadName()
		if headMatch {
			nPartialByCat[cat]++
		}
		if l.HeadName() != "any" {
			nLabelNoAny++
			if headMatch {
				nPartialNoAny++
			}
		}
	}

	total, correct, partial := 0, 0, 0
	fullByCat := map[string]float64{}
	partialByCat := map[string]float64{}
	for cat, n := range nLabelByCat {
		total += n
		correct += nCorrectByCat[cat]
		partial += nPartialByCat[cat]
		fullByCat[cat.String()] = safeDiv(nCorrectByCat[cat], n)
		partialByCat[cat.String()] = safeDiv(nPartialByCat[cat], n)
	}

	return Accuracies{
		FullAcc:         safeDiv(correct, total),
		PartialAcc:      safeDiv(partial, total),
		PartialAccNoAny: safeDiv(nPartialNoAny, nLabelNoAny),
		FullByCat:       fullByCat,
		PartialByCat:    partialByCat,
		NLabels:         total,
	}
}

// PredsToAccuracies scores per-file prediction lists against the ground
// truth carried by their sources.
func PredsToAccuracies(preds [][]domain.Type, srcs []*domain.TokenizedSrc) Accuracies {
	var flatPreds, flatLabels []domain.Type
	var cats []domain.AnnotCat
	for i, src := range srcs {
		flatPreds = append(flatPreds, preds[i]...)
		flatLabels = append(flatLabels, src.Types...)
		for _, info := range src.TypesInfo {
			cats = append(cats, info.Category)
		}
	}
	return TypeAccuracies(flatPreds, flatLabels, cats, true)
}
