package connection

const (
	HeaderContentType = "Content-Type"
	HeaderConnection  = "Connection"
	HeaderRequestID   = "X-Request-ID"
	HeaderReferer     = "Referer"
	HeaderSessionID   = "X-Session-ID"
	HeaderUserID      = "X-User-ID"

	ContentTypeJSON = "application/json"
)
