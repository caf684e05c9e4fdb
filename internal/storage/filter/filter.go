// Package filter provides AIP-160 filter expression parsing for version
// queries.
//
// A parsed Condition carries both a SQL WHERE fragment for the sqlite store
// and an in-process predicate for the memory store, so the two stores accept
// the same filters with the same meaning.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/louisbranch/deckledger/internal/deck/history"
)

// VersionDeclarations returns the field declarations for version filtering.
func VersionDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("seq", filtering.TypeInt),
		filtering.DeclareIdent("message", filtering.TypeString),
		filtering.DeclareIdent("card", filtering.TypeString),
		filtering.DeclareIdent("hash", filtering.TypeString),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// Condition is a parsed filter.
type Condition struct {
	// Clause is the SQL WHERE fragment (e.g., "seq > ?"). Empty matches all.
	Clause string
	// Params are the positional parameters for the clause.
	Params []any

	match func(history.Version) bool
}

// Empty reports whether the condition matches every version.
func (c Condition) Empty() bool {
	return c.Clause == ""
}

// Match evaluates the condition against v in process.
func (c Condition) Match(v history.Version) bool {
	if c.match == nil {
		return true
	}
	return c.match(v)
}

// fieldMapping maps filter field names to SQL column names on versions.
var fieldMapping = map[string]string{
	"seq":        "seq",
	"message":    "message",
	"hash":       "version_hash",
	"created_at": "created_at",
}

const cardExistsClause = "EXISTS (SELECT 1 FROM json_each(versions.diff_json) WHERE json_extract(json_each.value, '$.card_name') %s)"

// ParseVersionFilter parses an AIP-160 filter expression.
// Returns an empty condition for an empty filter string.
func ParseVersionFilter(filterStr string) (Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Condition{}, nil
	}

	decls, err := VersionDeclarations()
	if err != nil {
		return Condition{}, fmt.Errorf("create declarations: %w", err)
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Condition{}, fmt.Errorf("parse filter: %w", err)
	}

	return translateExpr(filter.CheckedExpr.GetExpr())
}

func translateExpr(e *expr.Expr) (Condition, error) {
	if e == nil {
		return Condition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	default:
		return Condition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (Condition, error) {
	switch call.Function {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		return translateLogical(call.Args, "AND")
	case filtering.FunctionOr:
		return translateLogical(call.Args, "OR")
	case filtering.FunctionNot:
		return translateNot(call.Args)
	case filtering.FunctionEquals,
		filtering.FunctionNotEquals,
		filtering.FunctionLessThan,
		filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan,
		filtering.FunctionGreaterEquals:
		return translateComparison(call.Args, call.Function)
	case filtering.FunctionHas:
		return translateHas(call.Args)
	default:
		return Condition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateLogical(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := translateExpr(args[0])
	if err != nil {
		return Condition{}, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return Condition{}, err
	}

	match := func(v history.Version) bool { return left.Match(v) && right.Match(v) }
	if op == "OR" {
		match = func(v history.Version) bool { return left.Match(v) || right.Match(v) }
	}
	return Condition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(append([]any{}, left.Params...), right.Params...),
		match:  match,
	}, nil
}

func translateNot(args []*expr.Expr) (Condition, error) {
	if len(args) != 1 {
		return Condition{}, fmt.Errorf("NOT requires 1 argument")
	}
	inner, err := translateExpr(args[0])
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Clause: fmt.Sprintf("NOT %s", inner.Clause),
		Params: inner.Params,
		match:  func(v history.Version) bool { return !inner.Match(v) },
	}, nil
}

func translateComparison(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return Condition{}, err
	}
	value, err := extractValue(args[1])
	if err != nil {
		return Condition{}, err
	}

	if field == "card" {
		return translateCardComparison(op, value)
	}
	if raw, ok := value.(string); ok && field == "created_at" {
		if value, err = parseTimestamp(raw); err != nil {
			return Condition{}, err
		}
	}

	column, ok := fieldMapping[field]
	if !ok {
		return Condition{}, fmt.Errorf("unknown field: %s", field)
	}

	compare, err := comparator(field, value)
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
		match:  func(v history.Version) bool { return holds(op, compare(v)) },
	}, nil
}

func translateCardComparison(op string, value any) (Condition, error) {
	name, ok := value.(string)
	if !ok {
		return Condition{}, fmt.Errorf("card requires a string value")
	}
	touches := func(v history.Version) bool {
		_, found := v.Diff.Find(name)
		return found
	}
	switch op {
	case filtering.FunctionEquals:
		return Condition{
			Clause: fmt.Sprintf(cardExistsClause, "= ?"),
			Params: []any{name},
			match:  touches,
		}, nil
	case filtering.FunctionNotEquals:
		return Condition{
			Clause: "NOT " + fmt.Sprintf(cardExistsClause, "= ?"),
			Params: []any{name},
			match:  func(v history.Version) bool { return !touches(v) },
		}, nil
	default:
		return Condition{}, fmt.Errorf("card supports only =, != and :")
	}
}

func translateHas(args []*expr.Expr) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("has requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return Condition{}, err
	}
	value, err := extractValue(args[1])
	if err != nil {
		return Condition{}, err
	}
	needle, ok := value.(string)
	if !ok {
		return Condition{}, fmt.Errorf("%s: has requires a string value", field)
	}
	pattern := "%" + escapeLike(needle) + "%"
	lowered := strings.ToLower(needle)

	switch field {
	case "message":
		return Condition{
			Clause: `message LIKE ? ESCAPE '\'`,
			Params: []any{pattern},
			match: func(v history.Version) bool {
				return strings.Contains(strings.ToLower(v.Message), lowered)
			},
		}, nil
	case "card":
		return Condition{
			Clause: fmt.Sprintf(cardExistsClause, `LIKE ? ESCAPE '\'`),
			Params: []any{pattern},
			match: func(v history.Version) bool {
				for _, e := range v.Diff {
					if strings.Contains(strings.ToLower(e.Key().Name), lowered) {
						return true
					}
				}
				return false
			},
		}, nil
	default:
		return Condition{}, fmt.Errorf("has is not supported on field: %s", field)
	}
}

// comparator returns a function yielding -1, 0 or 1 for the version's field
// against value.
func comparator(field string, value any) (func(history.Version) int, error) {
	switch field {
	case "seq":
		want, ok := value.(int64)
		if !ok {
			return nil, fmt.Errorf("seq requires an integer value")
		}
		return func(v history.Version) int { return cmpInt(int64(v.Seq), want) }, nil
	case "created_at":
		want, ok := value.(int64)
		if !ok {
			return nil, fmt.Errorf("created_at requires a timestamp value")
		}
		return func(v history.Version) int { return cmpInt(v.CreatedAt.UTC().UnixMilli(), want) }, nil
	case "message":
		want, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("message requires a string value")
		}
		return func(v history.Version) int { return strings.Compare(v.Message, want) }, nil
	case "hash":
		want, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("hash requires a string value")
		}
		return func(v history.Version) int { return strings.Compare(v.Hash, want) }, nil
	default:
		return nil, fmt.Errorf("unknown field: %s", field)
	}
}

func holds(op string, cmp int) bool {
	switch op {
	case filtering.FunctionEquals:
		return cmp == 0
	case filtering.FunctionNotEquals:
		return cmp != 0
	case filtering.FunctionLessThan:
		return cmp < 0
	case filtering.FunctionLessEquals:
		return cmp <= 0
	case filtering.FunctionGreaterThan:
		return cmp > 0
	case filtering.FunctionGreaterEquals:
		return cmp >= 0
	default:
		return false
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(kind.Uint64Value), nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

// extractTimestampValue returns the timestamp as Unix milliseconds, the
// storage representation of created_at.
func extractTimestampValue(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}

	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	return parseTimestamp(strVal.StringValue)
}

func parseTimestamp(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp format: %s", value)
	}
	return t.UTC().UnixMilli(), nil
}
