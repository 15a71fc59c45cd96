package vocab

import (
	"regexp"
	"sync"

	"typeinf/internal/domain"
)

// Reserved id layout. Everything below firstRegularID is special.
const (
	padID  = 0
	bosID  = 1
	eosID  = 2
	maskID = 3

	markerBase     = 4
	firstRegularID = markerBase + domain.MarkerBudget
)

// tokenPattern partitions text into identifier runs and single
// characters, so that decoding by concatenation reproduces the input
// byte-for-byte.
var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*|[0-9]+|[^A-Za-z0-9_]`)

// Vocab is a deterministic reference tokenizer. It grows its vocabulary
// on demand and reserves begin/end/mask/pad ids plus the 100 marker
// slots the chunker depends on. The production text model brings its own
// tokenizer; this one backs tests and offline pipeline runs.
type Vocab struct {
	mu     sync.RWMutex
	toID   map[string]int
	toText []string // indexed by id - firstRegularID
}

func New() *Vocab {
	return &Vocab{toID: make(map[string]int)}
}

func (v *Vocab) Encode(text string) []int {
	parts := tokenPattern.FindAllString(text, -1)
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, v.idFor(p))
	}
	return ids
}

func (v *Vocab) idFor(tok string) int {
	v.mu.RLock()
	id, ok := v.toID[tok]
	v.mu.RUnlock()
	if ok {
		return id
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.toID[tok]; ok {
		return id
	}
	id = firstRegularID + len(v.toText)
	v.toID[tok] = id
	v.toText = append(v.toText, tok)
	return id
}

// Decode concatenates the text of every regular id, skipping special,
// marker, negative and unknown ids. It never fails.
func (v *Vocab) Decode(ids []int) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]byte, 0, len(ids)*4)
	for _, id := range ids {
		i := id - firstRegularID
		if i < 0 || i >= len(v.toText) {
			continue
		}
		out = append(out, v.toText[i]...)
	}
	return string(out)
}

func (v *Vocab) BOS() int  { return bosID }
func (v *Vocab) EOS() int  { return eosID }
func (v *Vocab) Mask() int { return maskID }
func (v *Vocab) Pad() int  { return padID }

func (v *Vocab) MarkerID(slot int) int {
	if slot < 0 || slot >= domain.MarkerBudget {
		panic("marker slot out of range")
	}
	return markerBase + slot
}

func (v *Vocab) MarkerSlot(id int) (int, bool) {
	if id >= markerBase && id < firstRegularID {
		return id - markerBase, true
	}
	return 0, false
}
