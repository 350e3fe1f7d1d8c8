package compiler

import (
	"fmt"

	"evalscript/ast"
)

// SemanticError is a user-facing compile error, optionally spanned. Mirrors
// informatter-nilan's compiler.SemanticError, generalized with an optional
// span instead of nilan's line-only diagnostics.
type SemanticError struct {
	Message string
	Span    *ast.Span
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("💥 SemanticError: %s", e.Message)
}

// DeveloperError indicates an internal compiler bug (e.g. register
// exhaustion, an unreachable case reached). Mirrors nilan's
// compiler.DeveloperError.
type DeveloperError struct {
	Message string
}

func (e *DeveloperError) Error() string {
	return fmt.Sprintf("🤖 DeveloperError: %s", e.Message)
}

func semErr(span ast.Span, format string, args ...any) error {
	sp := span
	return &SemanticError{Message: fmt.Sprintf(format, args...), Span: &sp}
}
