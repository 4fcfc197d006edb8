package connection

import "context"

// RequestInfo is forwarded to the store as headers on every request made
// with a context carrying it.
type RequestInfo struct {
	RequestID string
	Referer   string
	SessionID string
	UserID    string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

// Headers lists the non-empty fields as header name/value pairs.
func (i RequestInfo) Headers() map[string]string {
	out := make(map[string]string, 4)
	for k, v := range map[string]string{
		HeaderRequestID: i.RequestID,
		HeaderReferer:   i.Referer,
		HeaderSessionID: i.SessionID,
		HeaderUserID:    i.UserID,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
