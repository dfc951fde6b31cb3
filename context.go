package connectshare

import "context"

// requestInfo is what audit events record about the request being served.
type requestInfo struct {
	route string
	ip    string
}

type requestInfoKey struct{}

func withRequestInfo(ctx context.Context, update func(*requestInfo)) context.Context {
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	update(&info)
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// WithClientIP attaches the caller's IP address to ctx for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return withRequestInfo(ctx, func(i *requestInfo) { i.ip = ip })
}

// WithRoute attaches the route being evaluated to ctx. Audit events emitted while
// serving that route carry it.
func WithRoute(ctx context.Context, route string) context.Context {
	return withRequestInfo(ctx, func(i *requestInfo) { i.route = route })
}

func requestInfoFrom(ctx context.Context) requestInfo {
	if ctx == nil {
		return requestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return info
}
