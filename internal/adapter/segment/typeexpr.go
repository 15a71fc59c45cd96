package segment

import (
	"go/ast"
	"go/parser"
	"go/types"
	"strings"

	"typeinf/internal/domain"
)

// ParseTypeExpr parses s as a Go type expression into head/arguments
// form. Function, struct and interface literal types keep their exact
// source rendering as an opaque head.
func ParseTypeExpr(s string) (domain.Type, error) {
	// Variadic parameter types are not standalone expressions, so the
	// ellipsis is peeled off before parsing.
	if rest, ok := strings.CutPrefix(strings.TrimSpace(s), "..."); ok {
		elt, err := ParseTypeExpr(rest)
		if err != nil {
			return domain.Type{}, err
		}
		return domain.Type{Head: "...", Args: []domain.Type{elt}}, nil
	}
	expr, err := parser.ParseExpr(s)
	if err != nil {
		return domain.Type{}, err
	}
	return fromExpr(expr), nil
}

func fromExpr(expr ast.Expr) domain.Type {
	switch e := expr.(type) {
	case *ast.Ident:
		return domain.Type{Head: e.Name}
	case *ast.SelectorExpr:
		return domain.Type{Head: types.ExprString(e)}
	case *ast.ParenExpr:
		return fromExpr(e.X)
	case *ast.StarExpr:
		return domain.Type{Head: "*", Args: []domain.Type{fromExpr(e.X)}}
	case *ast.Ellipsis:
		return domain.Type{Head: "...", Args: []domain.Type{fromExpr(e.Elt)}}
	case *ast.ArrayType:
		if e.Len == nil {
			return domain.Type{Head: "[]", Args: []domain.Type{fromExpr(e.Elt)}}
		}
		return domain.Type{Head: types.ExprString(e)}
	case *ast.MapType:
		return domain.Type{Head: "map", Args: []domain.Type{fromExpr(e.Key), fromExpr(e.Value)}}
	case *ast.ChanType:
		head := "chan"
		switch e.Dir {
		case ast.RECV:
			head = "<-chan"
		case ast.SEND:
			head = "chan<-"
		}
		return domain.Type{Head: head, Args: []domain.Type{fromExpr(e.Value)}}
	case *ast.InterfaceType:
		if e.Methods == nil || len(e.Methods.List) == 0 {
			return domain.Type{Head: "interface{}"}
		}
		return domain.Type{Head: types.ExprString(e)}
	case *ast.IndexExpr:
		return domain.Type{Head: types.ExprString(e.X), Args: []domain.Type{fromExpr(e.Index)}}
	case *ast.IndexListExpr:
		args := make([]domain.Type, len(e.Indices))
		for i, idx := range e.Indices {
			args[i] = fromExpr(idx)
		}
		return domain.Type{Head: types.ExprString(e.X), Args: args}
	default:
		return domain.Type{Head: types.ExprString(expr)}
	}
}
