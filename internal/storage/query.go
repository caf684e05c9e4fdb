package storage

import (
	"fmt"

	"github.com/louisbranch/deckledger/internal/platform/pagination"
	"github.com/louisbranch/deckledger/internal/storage/filter"
)

// Version orderings accepted by VersionQuery.OrderBy.
const (
	OrderSeqAsc  = "seq"
	OrderSeqDesc = "seq desc"
)

// MaxPageSize is the largest page QueryVersions returns.
const MaxPageSize = 200

var (
	versionPageSize = pagination.PageSizeConfig{Default: 50, Max: MaxPageSize}
	versionOrderBy  = pagination.OrderByConfig{
		Default: OrderSeqDesc,
		Allowed: []string{OrderSeqAsc, "seq asc", OrderSeqDesc},
	}
)

// VersionPlan is a validated VersionQuery shared by store implementations.
type VersionPlan struct {
	Condition  filter.Condition
	Descending bool
	PageSize   int
	Offset     int
}

// PlanVersionQuery validates q and resolves its defaults. Errors wrap
// ErrInvalidQuery.
func PlanVersionQuery(q VersionQuery) (VersionPlan, error) {
	cond, err := filter.ParseVersionFilter(q.Filter)
	if err != nil {
		return VersionPlan{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	order, err := pagination.NormalizeOrderBy(q.OrderBy, versionOrderBy)
	if err != nil {
		return VersionPlan{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	offset, err := pagination.DecodeOffsetToken(q.PageToken)
	if err != nil {
		return VersionPlan{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return VersionPlan{
		Condition:  cond,
		Descending: order == OrderSeqDesc,
		PageSize:   pagination.ClampPageSize(q.PageSize, versionPageSize),
		Offset:     offset,
	}, nil
}

// NextPageToken returns the token for the page after one that returned n of
// total matching versions, or "" when nothing is left.
func (p VersionPlan) NextPageToken(n, total int) string {
	next := p.Offset + n
	if n == 0 || next >= total {
		return ""
	}
	return pagination.EncodeOffsetToken(next)
}
