package plugin

import (
	"context"

	"github.com/Aman-CERP/servicereport/internal/check"
)

// ListChecker is a data-driven plugin producing one record per target,
// e.g. one per daemon or package name. The op ID is the target name.
type ListChecker struct {
	Targets []string
	Probe   func(ctx context.Context, target string) *check.Record
}

// Checks implements Plugin.
func (l ListChecker) Checks() []Op {
	ops := make([]Op, 0, len(l.Targets))
	for _, target := range l.Targets {
		ops = append(ops, Op{
			ID: target,
			Run: func(ctx context.Context) (*check.Record, error) {
				return l.Probe(ctx, target), nil
			},
		})
	}
	return ops
}
