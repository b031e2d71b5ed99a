package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/warp/incentive-engine/generic"
)

// TenantHeader carries the tenant id on every tenant-scoped request.
const TenantHeader = "X-Tenant-ID"

type tenantKey struct{}

// RequireTenant rejects requests without a tenant header and stores the
// resulting generic.TenantContext on the request context.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, err := generic.NewTenantContext(r.Header.Get(TenantHeader))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s header is required", TenantHeader), err)
			return
		}
		tc = tc.WithRequestID(middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, tc)))
	})
}

func tenantFrom(ctx context.Context) generic.TenantContext {
	tc, _ := ctx.Value(tenantKey{}).(generic.TenantContext)
	return tc
}

// BackfillRateLimit limits backfill triggers per tenant. rate uses the
// limiter format, e.g. "10-M" for ten per minute.
func BackfillRateLimit(rate string) (func(http.Handler) http.Handler, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid backfill rate %q: %w", rate, err)
	}

	instance := limiter.New(memory.NewStore(), r)
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			return "backfill:" + r.Header.Get(TenantHeader)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many backfill requests", nil)
		}),
	)
	return mw.Handler, nil
}
