package ckptdb

import (
	"context"
	"time"

	"github.com/sparcians/map-checkpoint/pkg/log"
)

type queryLogHooksKey struct{}

// queryLogHooks satisfies sqlhooks.Hooks, logging every query the
// overlay issues at debug level along with its elapsed time.
type queryLogHooks struct{}

func (h *queryLogHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("ckptdb: query %s %q", query, args)
	return context.WithValue(ctx, queryLogHooksKey{}, time.Now()), nil
}

func (h *queryLogHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin, _ := ctx.Value(queryLogHooksKey{}).(time.Time)
	log.Debugf("ckptdb: took %s", time.Since(begin))
	return ctx, nil
}
