package connection

import (
	"bytes"
	"net/http"
)

// Response is a completed exchange with the store. Non-2xx statuses are not
// errors at this level; see Classify.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

func (r *Response) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) NotFound() bool {
	return r.Status == http.StatusNotFound
}

// Text is the body with surrounding whitespace removed.
func (r *Response) Text() string {
	return string(bytes.TrimSpace(r.Body))
}
