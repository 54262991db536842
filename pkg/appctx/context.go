// Package appctx carries request-scoped values through context.Context
package appctx

import "context"

type contextKey string

const (
	requestIDKey = contextKey("X-Request-Id")
	methodKey    = contextKey("X-Method")
	routeKey     = contextKey("X-Route")
	remoteIPKey  = contextKey("X-Remote-Ip")
	tenantIDKey  = contextKey("X-Tenant-Id")
	importIDKey  = contextKey("X-Import-Id")
	runIDKey     = contextKey("X-Run-Id")
)

// TenantHeader is the request header that scopes every API call to a tenant
const TenantHeader = "X-Tenant-ID"

func set(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key contextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return set(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return get(ctx, requestIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return set(ctx, methodKey, method)
}

func GetMethod(ctx context.Context) string {
	return get(ctx, methodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return set(ctx, routeKey, route)
}

func GetRoute(ctx context.Context) string {
	return get(ctx, routeKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return set(ctx, remoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return get(ctx, remoteIPKey)
}

func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return set(ctx, tenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string {
	return get(ctx, tenantIDKey)
}

// SetImportID tags work done on behalf of one import batch
func SetImportID(ctx context.Context, importID string) context.Context {
	return set(ctx, importIDKey, importID)
}

func GetImportID(ctx context.Context) string {
	return get(ctx, importIDKey)
}

// SetRunID tags work done on behalf of one reconciliation run
func SetRunID(ctx context.Context, runID string) context.Context {
	return set(ctx, runIDKey, runID)
}

func GetRunID(ctx context.Context) string {
	return get(ctx, runIDKey)
}

// Fields returns the populated values as structured log fields
func Fields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	for name, key := range map[string]contextKey{
		"request_id": requestIDKey,
		"tenant_id":  tenantIDKey,
		"import_id":  importIDKey,
		"run_id":     runIDKey,
	} {
		if v := get(ctx, key); v != "" {
			fields[name] = v
		}
	}
	return fields
}
