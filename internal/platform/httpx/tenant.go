package httpx

import (
	"net/http"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Gateway headers carrying the already-authenticated caller.
const (
	HeaderCompanyID = "X-Company-ID"
	HeaderActorID   = "X-Actor-ID"
)

// TenantMiddleware stores the gateway supplied tenant in the request context.
// Requests without a valid company header are rejected.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID, err := strconv.ParseInt(r.Header.Get(HeaderCompanyID), 10, 64)
		if err != nil || companyID <= 0 {
			RespondError(w, ErrTenant)
			return
		}
		actorID, _ := strconv.ParseInt(r.Header.Get(HeaderActorID), 10, 64)
		ctx := shared.ContextWithTenant(r.Context(), shared.Tenant{CompanyID: companyID, ActorID: actorID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Tenant returns the tenant set by TenantMiddleware.
func Tenant(r *http.Request) (shared.Tenant, error) {
	tenant, ok := shared.TenantFromContext(r.Context())
	if !ok {
		return shared.Tenant{}, ErrTenant
	}
	return tenant, nil
}
