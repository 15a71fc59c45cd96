package domain

// Position is a line/column location in source text (1-based line,
// 0-based column, matching go/token).
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Less orders positions by line, then column.
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Range is a half-open [Start, End) span in source text.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// AnnotCat classifies where a type annotation appears.
type AnnotCat int

const (
	CatFuncParam AnnotCat = iota
	CatFuncReturn
	CatVarDecl
	CatStructField
)

func (c AnnotCat) String() string {
	switch c {
	case CatFuncParam:
		return "param"
	case CatFuncReturn:
		return "return"
	case CatVarDecl:
		return "var"
	case CatStructField:
		return "field"
	default:
		return "unknown"
	}
}

// LabelKind says whether an annotation site is a prediction target or is
// revealed to the model as context.
type LabelKind int

const (
	PredictionTarget LabelKind = iota
	RevealedContext
)

// AnnotationSite identifies one type-annotation location in a source file.
// Paths are unique within a file; sites are ordered by source position.
type AnnotationSite struct {
	Path     string   `json:"path"`
	Category AnnotCat `json:"category"`
	Range    Range    `json:"range"`
	// Byte offsets of the annotation expression within the file text.
	StartOff int `json:"start_off"`
	EndOff   int `json:"end_off"`
}

// TokenizedSrc is a source file with certain type annotations masked out.
// The parallel slices Types, TypesPos, TypesStr, TypesTks and TypesInfo
// all have the same length and are ordered by source position; TypesPos
// is strictly increasing. A TokenizedSrc is immutable once built: each
// feedback round produces a new instance.
type TokenizedSrc struct {
	File string
	Repo string

	Types     []Type
	TypesPos  []int // positions of the mask markers in TokenizedCode
	TypesStr  []string
	TypesTks  [][]int
	TypesInfo []AnnotationSite

	OriginCode    string
	TokenizedCode []int

	// PrevTypes holds the assignment from the previous rollout round,
	// keyed by label index. Nil on the first round.
	PrevTypes map[int]Type
}

// NumLabels returns the number of prediction targets in the source.
func (s *TokenizedSrc) NumLabels() int { return len(s.Types) }

// CtxArgs configures the chunking window geometry.
type CtxArgs struct {
	CtxSize     int  `yaml:"ctx_size" json:"ctx_size"`
	LeftMargin  int  `yaml:"left_margin" json:"left_margin"`
	RightMargin int  `yaml:"right_margin" json:"right_margin"`
	TypesInCtx  bool `yaml:"types_in_ctx" json:"types_in_ctx"`
}

// WindowSize is the width of the central prediction window.
func (c CtxArgs) WindowSize() int {
	return c.CtxSize - c.LeftMargin - c.RightMargin
}

// MarkerBudget is the number of reserved marker slots per chunk. The
// tokenizer allocates exactly this many marker ids, addressed as slots
// 0..99.
const MarkerBudget = 100

// Validate rejects geometries that could overflow the marker budget or
// produce an empty window.
func (c CtxArgs) Validate() error {
	if c.CtxSize <= 0 || c.LeftMargin < 0 || c.RightMargin < 0 {
		return &FormatError{Msg: "ctx_size and margins must be non-negative with ctx_size > 0"}
	}
	if c.WindowSize() <= 0 {
		return &FormatError{Msg: "window size must be positive: ctx_size too small for margins"}
	}
	if c.WindowSize() > MarkerBudget {
		return &FormatError{Msg: "window size exceeds the 100 marker budget"}
	}
	return nil
}

// SrcChunkInfo correlates each label slot of a chunk back to its type,
// its annotation site, and the index of its source file within the batch
// being chunked. Owned by exactly one chunk; read-only after creation.
type SrcChunkInfo struct {
	Types     []Type           `json:"types"`
	SitesInfo []AnnotationSite `json:"sites_info"`
	SrcIDs    []int            `json:"src_ids"`
}

// ChunkRow is one row of the column-oriented chunk table.
type ChunkRow struct {
	ChunkID  int   `json:"chunk_id"`
	InputIDs []int `json:"input_ids"`
	Labels   []int `json:"labels"`
	NLabels  int   `json:"n_labels"`
}

// Batch is a single-chunk model input.
type Batch struct {
	InputIDs []int
	Labels   []int
	NLabels  int
}

// Candidate is one ranked model prediction for a batch, holding one type
// per label slot.
type Candidate struct {
	Types []Type
	Score float64
}

// RolloutResult is the per-file trace of one sequential rollout.
type RolloutResult struct {
	Assignment map[int]Type
	BatchSeq   []Batch
	SrcSeq     []*TokenizedSrc
	UsedExpert []bool

	// CheckFailures counts rounds where the checker crashed and its
	// output was treated as zero diagnostics.
	CheckFailures int
}

// NewRolloutResult returns an empty trace.
func NewRolloutResult() *RolloutResult {
	return &RolloutResult{Assignment: make(map[int]Type)}
}
