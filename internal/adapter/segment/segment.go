package segment

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"

	"typeinf/internal/domain"
)

// TypeMask is the placeholder identifier spliced over masked annotation
// sites. It parses as a plain type name, so masked files stay valid Go.
const TypeMask = "__T__"

// MaskedFile is the validated masked-source record: alternating literal
// text segments and annotation sites, reversible back to the original
// text by re-inserting TypesStr between the segments.
type MaskedFile struct {
	File       string
	Repo       string
	OriginCode string

	Segments  []string
	Types     []domain.Type
	TypesStr  []string
	SitesInfo []domain.AnnotationSite
	Kinds     []domain.LabelKind
}

// Validate enforces the segment/label count invariant and the parallel
// slice lengths.
func (m *MaskedFile) Validate() error {
	n := len(m.Types)
	if len(m.Segments) != n+1 {
		return &domain.FormatError{Msg: fmt.Sprintf(
			"%s: %d segments for %d labels (want labels+1)", m.File, len(m.Segments), n)}
	}
	if len(m.TypesStr) != n || len(m.SitesInfo) != n || len(m.Kinds) != n {
		return &domain.FormatError{Msg: fmt.Sprintf(
			"%s: parallel label slices disagree in length", m.File)}
	}
	return nil
}

// Annot is one currently-present user annotation in a source file.
type Annot struct {
	Site    domain.AnnotationSite
	TypeStr string
}

// Segmenter carves type annotations out of Go source files.
type Segmenter struct {
	DropComments bool
}

// Mask parses code and splits it at every annotation site, producing a
// reversible masked representation with every site marked as a
// prediction target. Callers flip individual Kinds to RevealedContext
// when sampling labels.
func (s *Segmenter) Mask(file, repo, code string) (*MaskedFile, error) {
	if s.DropComments {
		stripped, err := stripComments(file, code)
		if err != nil {
			return nil, err
		}
		code = stripped
	}
	if strings.Contains(code, TypeMask) {
		return nil, &domain.FormatError{Msg: file + ": source already contains the mask placeholder"}
	}

	sites, err := CollectAnnotations(file, code)
	if err != nil {
		return nil, err
	}

	m := &MaskedFile{File: file, Repo: repo, OriginCode: code}
	cursor := 0
	for _, a := range sites {
		ty, err := ParseTypeExpr(a.TypeStr)
		if err != nil {
			return nil, &domain.ParseError{File: file, Content: a.TypeStr, Err: err}
		}
		m.Segments = append(m.Segments, code[cursor:a.Site.StartOff])
		m.Types = append(m.Types, ty)
		m.TypesStr = append(m.TypesStr, a.TypeStr)
		m.SitesInfo = append(m.SitesInfo, a.Site)
		m.Kinds = append(m.Kinds, domain.PredictionTarget)
		cursor = a.Site.EndOff
	}
	m.Segments = append(m.Segments, code[cursor:])

	if err := m.Validate(); err != nil {
		return nil, err
	}
	// Splicing must reproduce the input exactly; anything else means the
	// collected ranges overlap.
	if rebuilt := Unmask(m.Segments, m.TypesStr); rebuilt != code {
		return nil, &domain.ParseError{File: file, Content: rebuilt}
	}
	return m, nil
}

// Unmask re-inserts type strings between segments, reconstructing the
// source text.
func Unmask(segments, typesStr []string) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(seg)
		if i < len(typesStr) {
			b.WriteString(typesStr[i])
		}
	}
	return b.String()
}

// CollectAnnotations parses code and returns every type-annotation site
// in source order: function parameter and result types, top-level var
// declaration types and struct field types. Paths are unique within the
// file.
func CollectAnnotations(file, code string) ([]Annot, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, code, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, &domain.ParseError{File: file, Content: code, Err: err}
	}

	var out []Annot
	add := func(path string, cat domain.AnnotCat, expr ast.Expr) {
		start := fset.Position(expr.Pos())
		end := fset.Position(expr.End())
		out = append(out, Annot{
			Site: domain.AnnotationSite{
				Path:     path,
				Category: cat,
				Range: domain.Range{
					Start: domain.Position{Line: start.Line, Column: start.Column - 1},
					End:   domain.Position{Line: end.Line, Column: end.Column - 1},
				},
				StartOff: start.Offset,
				EndOff:   end.Offset,
			},
			TypeStr: code[start.Offset:end.Offset],
		})
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := funcPathName(d)
			if d.Type.Params != nil {
				for i, field := range d.Type.Params.List {
					add(fmt.Sprintf("%s.param[%d]", name, i), domain.CatFuncParam, field.Type)
				}
			}
			if d.Type.Results != nil {
				for i, field := range d.Type.Results.List {
					add(fmt.Sprintf("%s.ret[%d]", name, i), domain.CatFuncReturn, field.Type)
				}
			}
		case *ast.GenDecl:
			switch d.Tok {
			case token.VAR:
				for _, spec := range d.Specs {
					vs := spec.(*ast.ValueSpec)
					if vs.Type == nil {
						continue
					}
					names := make([]string, len(vs.Names))
					for i, n := range vs.Names {
						names[i] = n.Name
					}
					add("var."+strings.Join(names, ","), domain.CatVarDecl, vs.Type)
				}
			case token.TYPE:
				for _, spec := range d.Specs {
					ts := spec.(*ast.TypeSpec)
					st, ok := ts.Type.(*ast.StructType)
					if !ok || st.Fields == nil {
						continue
					}
					for i, field := range st.Fields.List {
						if len(field.Names) == 0 {
							continue // embedded field, the type is the name
						}
						names := make([]string, len(field.Names))
						for j, n := range field.Names {
							names[j] = n.Name
						}
						add(fmt.Sprintf("%s.%s[%d]", ts.Name.Name, strings.Join(names, ","), i),
							domain.CatStructField, field.Type)
					}
				}
			}
		}
	}

	seen := make(map[string]bool, len(out))
	prevEnd := -1
	for _, a := range out {
		if seen[a.Site.Path] {
			return nil, &domain.FormatError{Msg: file + ": duplicate annotation path " + a.Site.Path}
		}
		seen[a.Site.Path] = true
		if a.Site.StartOff < prevEnd {
			return nil, &domain.FormatError{Msg: file + ": annotation sites out of order or overlapping"}
		}
		prevEnd = a.Site.EndOff
	}
	return out, nil
}

func funcPathName(d *ast.FuncDecl) string {
	if d.Recv != nil && len(d.Recv.List) > 0 {
		return "(" + recvTypeName(d.Recv.List[0].Type) + ")." + d.Name.Name
	}
	return d.Name.Name
}

func recvTypeName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return "*" + recvTypeName(e.X)
	case *ast.Ident:
		return e.Name
	case *ast.IndexExpr:
		return recvTypeName(e.X)
	case *ast.IndexListExpr:
		return recvTypeName(e.X)
	default:
		return "?"
	}
}

func stripComments(file, code string) (string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, code, parser.SkipObjectResolution)
	if err != nil {
		return "", &domain.ParseError{File: file, Content: code, Err: err}
	}
	f.Comments = nil
	var b strings.Builder
	if err := format.Node(&b, fset, f); err != nil {
		return "", &domain.ParseError{File: file, Content: code, Err: err}
	}
	return b.String(), nil
}
