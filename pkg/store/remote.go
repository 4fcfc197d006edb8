package store

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	"github.com/st9db/st9.go/pkg/connection"
	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/logger"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/query"
	"github.com/st9db/st9.go/pkg/schema"
	"github.com/st9db/st9.go/pkg/serializer"
)

// Remote implements Store over a connection.Connection.
type Remote struct {
	conn      connection.Connection
	ser       *serializer.Serializer
	batchSize int
	log       logger.Logger
}

var _ Store = (*Remote)(nil)

// NewRemote builds a Remote. A batchSize of 0 or less uses
// constants.MultiGetBatchMax.
func NewRemote(conn connection.Connection, ser *serializer.Serializer, batchSize int, log logger.Logger) *Remote {
	if batchSize <= 0 {
		batchSize = constants.MultiGetBatchMax
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Remote{conn: conn, ser: ser, batchSize: batchSize, log: log}
}

// Get returns nil without an error when the id does not exist.
func (r *Remote) Get(ctx context.Context, id string, opts GetOptions) (*models.Entity, error) {
	path := constants.EntityPath + id
	if opts.WithQuarantined {
		path = query.AddRaw(path, constants.IncludeQuarantineParam)
	}
	body, err := r.get(ctx, path)
	if err != nil || body == nil {
		return nil, err
	}
	return r.ser.Deserialize(ctx, body, opts.DeferHooks)
}

// MultiGet fetches ids in batches. Duplicate ids are requested once and the
// result follows the order of their first occurrence.
func (r *Remote) MultiGet(ctx context.Context, ids []string, opts GetOptions) ([]*models.Entity, error) {
	ids = dedupe(ids)
	out := make([]*models.Entity, 0, len(ids))

	for start := 0; start < len(ids); start += r.batchSize {
		end := min(start+r.batchSize, len(ids))
		chunk := ids[start:end]

		params := make([]string, len(chunk))
		for i, id := range chunk {
			params[i] = "k=" + url.QueryEscape(id)
		}
		path := constants.MultiGetPath + "?" + strings.Join(params, "&")
		if opts.WithQuarantined {
			path = query.AddRaw(path, constants.IncludeQuarantineParam)
		}

		body, err := r.get(ctx, path)
		if err != nil {
			return nil, err
		}
		found := map[string]*models.Entity{}
		if body != nil {
			found, err = r.ser.DeserializeMap(ctx, body, opts.DeferHooks)
			if err != nil {
				return nil, err
			}
		}
		for _, id := range chunk {
			e := found[id]
			if e == nil && opts.Collapse {
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// Create posts a new entity under its base type.
func (r *Remote) Create(ctx context.Context, e *models.Entity) (*Saved, error) {
	return r.save(ctx, http.MethodPost, constants.EntityPath+e.Type().Base().Name, e)
}

// Update replaces a persisted entity. The version the entity was loaded with
// is sent along; a stale one fails with constants.ErrObsoleteVersion.
func (r *Remote) Update(ctx context.Context, e *models.Entity) (*Saved, error) {
	if e.ID() == "" {
		return nil, fmt.Errorf("%w: update of an unsaved %s", constants.ErrInvalidArgument, e.Type().Name)
	}
	return r.save(ctx, http.MethodPut, constants.EntityPath+e.ID(), e)
}

func (r *Remote) save(ctx context.Context, method, path string, e *models.Entity) (*Saved, error) {
	body, err := r.ser.Serialize(e)
	if err != nil {
		return nil, err
	}
	r.log.Debug("save", "method", method, "path", path, "body", string(body))

	resp, err := r.conn.Do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if err := connection.Classify(resp); err != nil {
		return nil, err
	}

	saved := &Saved{ID: e.ID()}
	if id, err := jsonparser.GetString(resp.Body, serializer.IDField); err == nil {
		saved.ID = id
	}
	if v, err := jsonparser.GetInt(resp.Body, serializer.VersionField); err == nil {
		saved.Version = v
	}
	if saved.ID == "" {
		return nil, fmt.Errorf("%w: save response carries no id", constants.ErrPersistence)
	}
	return saved, nil
}

func (r *Remote) Destroy(ctx context.Context, id string) error {
	resp, err := r.conn.Do(ctx, http.MethodDelete, constants.EntityPath+id, nil)
	if err != nil {
		return err
	}
	return connection.Classify(resp)
}

// Scan reads one page of an index scan. An empty token reads the first page.
func (r *Remote) Scan(ctx context.Context, path, token string) (*Page, error) {
	body, err := r.get(ctx, query.WithToken(path, token))
	if err != nil {
		return nil, err
	}
	page := &Page{}
	if body == nil {
		return page, nil
	}

	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.Object {
			return
		}
		if id, err := jsonparser.GetString(value, serializer.IDField); err == nil {
			page.IDs = append(page.IDs, id)
		}
	}, "results")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, fmt.Errorf("%w: malformed index page: %s", constants.ErrPersistence, err)
	}
	page.Prev, page.Next = tokens(body)
	return page, nil
}

type counterEnvelope struct {
	Results []Row          `json:"results"`
	Query   map[string]any `json:"query"`
}

// Counters reads one page of counter rows. The query of the page is merged
// into every row; values already in a row are kept.
func (r *Remote) Counters(ctx context.Context, path, token string) (*CounterPage, error) {
	body, err := r.get(ctx, query.WithToken(path, token))
	if err != nil {
		return nil, err
	}
	page := &CounterPage{}
	if body == nil {
		return page, nil
	}

	var env counterEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: malformed counter page: %s", constants.ErrPersistence, err)
	}
	for _, row := range env.Results {
		for k, v := range env.Query {
			if _, ok := row[k]; !ok {
				row[k] = v
			}
		}
		page.Rows = append(page.Rows, row)
	}
	page.Prev, page.Next = tokens(body)
	return page, nil
}

// Unique returns the entity at a unique index entry, or nil.
func (r *Remote) Unique(ctx context.Context, path string, deferHooks bool) (*models.Entity, error) {
	body, err := r.get(ctx, path)
	if err != nil || empty(body) {
		return nil, err
	}
	return r.ser.Deserialize(ctx, body, deferHooks)
}

// Exists reads a single entry of the scan at path.
func (r *Remote) Exists(ctx context.Context, path string) (bool, error) {
	page, err := r.Scan(ctx, query.AddParam(path, "n", "1"), "")
	if err != nil {
		return false, err
	}
	return len(page.IDs) > 0, nil
}

func (r *Remote) Quarantine(ctx context.Context, id string) error {
	return r.quarantine(ctx, http.MethodPost, id)
}

func (r *Remote) Unquarantine(ctx context.Context, id string) error {
	return r.quarantine(ctx, http.MethodDelete, id)
}

func (r *Remote) quarantine(ctx context.Context, method, id string) error {
	resp, err := r.conn.Do(ctx, method, constants.QuarantinePath+id, nil)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return &constants.QuarantineError{Status: resp.Status, Body: resp.Text()}
	}
	return nil
}

// Quarantined reads the quarantine flag of id. A missing entity is
// constants.ErrNotFound.
func (r *Remote) Quarantined(ctx context.Context, id string) (bool, error) {
	resp, err := r.conn.Do(ctx, http.MethodGet, constants.QuarantinePath+id, nil)
	if err != nil {
		return false, err
	}
	if resp.NotFound() {
		return false, fmt.Errorf("%w: %s", constants.ErrNotFound, id)
	}
	if !resp.Success() {
		return false, &constants.QuarantineError{Status: resp.Status, Body: resp.Text()}
	}
	q, err := jsonparser.GetBoolean(resp.Body, constants.QuarantinedField)
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return false, &constants.QuarantineError{Status: resp.Status, Body: resp.Text()}
	}
	return q, nil
}

// GetSchema returns the published schema of a type, or nil when there is
// none.
func (r *Remote) GetSchema(ctx context.Context, typeName string) (*schema.Document, error) {
	body, err := r.get(ctx, constants.SchemaPath+typeName)
	if err != nil || empty(body) {
		return nil, err
	}
	doc := new(schema.Document)
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("%w: malformed schema: %s", constants.ErrPersistence, err)
	}
	return doc, nil
}

// PublishSchema creates the schema of a type, or replaces it using the
// version currently on the server.
func (r *Remote) PublishSchema(ctx context.Context, typeName string, doc *schema.Document) error {
	current, err := r.GetSchema(ctx, typeName)
	if err != nil {
		return err
	}

	method := http.MethodPost
	if current != nil {
		method = http.MethodPut
		var v int64
		if current.Version != nil {
			v = *current.Version
		}
		doc = doc.WithVersion(v)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	r.log.Debug("publish schema", "type", typeName, "method", method, "body", string(body))

	resp, err := r.conn.Do(ctx, method, constants.SchemaPath+typeName, body)
	if err != nil {
		return err
	}
	return connection.Classify(resp)
}

func (r *Remote) Ping(ctx context.Context) (bool, error) {
	resp, err := r.conn.Do(ctx, http.MethodGet, constants.PingPath, nil)
	if err != nil {
		return false, err
	}
	return resp.Success() && resp.Text() == "OK", nil
}

// Nuke wipes the store. Servers that do not allow it answer 403, reported as
// constants.ErrNukeDisabled.
func (r *Remote) Nuke(ctx context.Context, preserveSchema bool) error {
	path := constants.NukePath
	if preserveSchema {
		path = query.AddParam(path, "preserveSchema", "true")
	}
	resp, err := r.conn.Do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	if resp.Status == http.StatusForbidden {
		return constants.ErrNukeDisabled
	}
	if resp.Status != http.StatusOK {
		return &constants.PersistenceError{Kind: constants.ErrPersistence, Status: resp.Status, Body: resp.Text()}
	}
	return nil
}

// get returns the body of a successful GET, or nil on 404.
func (r *Remote) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := r.conn.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.NotFound() {
		return nil, nil
	}
	if err := connection.Classify(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func tokens(body []byte) (prev, next string) {
	prev, _ = jsonparser.GetString(body, "prev")
	next, _ = jsonparser.GetString(body, "next")
	return prev, next
}

func empty(body []byte) bool {
	switch string(bytes.TrimSpace(body)) {
	case "", "null", "{}":
		return true
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
