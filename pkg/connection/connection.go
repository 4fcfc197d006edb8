package connection

import (
	"context"
	"net/http"

	"github.com/st9db/st9.go/pkg/constants"
)

// Connection performs one request against the store. path is relative to the
// base URL and already carries its query string.
type Connection interface {
	Do(ctx context.Context, method, path string, body []byte) (*Response, error)
}

// Classify maps a response to the persistence error taxonomy. It returns nil
// for 2xx.
func Classify(resp *Response) error {
	if resp.Success() {
		return nil
	}
	body := resp.Text()
	kind := constants.ErrPersistence
	switch resp.Status {
	case http.StatusConflict:
		switch body {
		case constants.VersionConflictBody:
			kind = constants.ErrObsoleteVersion
		case constants.UniqueViolationBody:
			kind = constants.ErrDuplicateKey
		}
	case http.StatusBadRequest:
		kind = constants.ErrInvalidClientRequest
	case http.StatusInternalServerError:
		kind = constants.ErrUnexpectedRemoteService
	}
	return &constants.PersistenceError{Kind: kind, Status: resp.Status, Body: body}
}
