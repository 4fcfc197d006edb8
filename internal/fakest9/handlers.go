package fakest9

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/schema"
)

const defaultPageSize = 100

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func pathVar(r *http.Request, name string) string {
	v := mux.Vars(r)[name]
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func includeQuarantine(r *http.Request) bool {
	return r.URL.Query().Get("includeQuarantine") == "true"
}

func pageSize(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && n > 0 {
		return n
	}
	return defaultPageSize
}

func decodeBody(r *http.Request) (map[string]any, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// splitSpec splits "type.name" into its parts.
func splitSpec(spec string) (kind, name string, ok bool) {
	return strings.Cut(spec, ".")
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleNuke(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	enabled := s.nukeEnabled
	s.mu.RUnlock()
	if !enabled {
		writeText(w, http.StatusForbidden, "nuke disabled")
		return
	}
	s.db.mu.Lock()
	s.db.nuke(r.URL.Query().Get("preserveSchema") == "true")
	s.db.mu.Unlock()
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rec := s.db.lookup(pathVar(r, "id"))
	if rec == nil || rec.quarantined && !includeQuarantine(r) {
		writeText(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, rec.body())
}

func (s *Server) handleMultiGet(w http.ResponseWriter, r *http.Request) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	withQ := includeQuarantine(r)
	out := make(map[string]any)
	for _, id := range r.URL.Query()["k"] {
		rec := s.db.lookup(id)
		if rec == nil || rec.quarantined && !withQ {
			out[id] = nil
			continue
		}
		out[id] = rec.body()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind := pathVar(r, "type")
	fields, err := decodeBody(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	delete(fields, "id")
	delete(fields, "version")
	delete(fields, "kind")

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.violatesUnique(kind, "", fields) {
		writeText(w, http.StatusConflict, constants.UniqueViolationBody)
		return
	}
	rec := s.db.create(kind, fields)
	writeJSON(w, http.StatusOK, rec.body())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeBody(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec := s.db.lookup(pathVar(r, "id"))
	if rec == nil {
		writeText(w, http.StatusNotFound, "not found")
		return
	}
	if v, ok := fields["version"]; ok {
		if c, ok := compare(v, rec.version); !ok || c != 0 {
			writeText(w, http.StatusConflict, constants.VersionConflictBody)
			return
		}
	}
	delete(fields, "id")
	delete(fields, "version")
	delete(fields, "kind")
	if s.db.violatesUnique(rec.kind, rec.id, fields) {
		writeText(w, http.StatusConflict, constants.UniqueViolationBody)
		return
	}
	rec.fields = fields
	rec.version++
	writeJSON(w, http.StatusOK, rec.body())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rec := s.db.lookup(pathVar(r, "id"))
	if rec == nil {
		writeText(w, http.StatusNotFound, "not found")
		return
	}
	delete(s.db.entities, rec.id)
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := splitSpec(pathVar(r, "spec"))
	if !ok {
		writeText(w, http.StatusBadRequest, "malformed index path")
		return
	}
	terms, err := parseQuery(r.URL.Query().Get("q"))
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var cols []schema.ColumnDoc
	if name != constants.AllIndex {
		idx, ok := s.db.index(kind, name)
		if !ok {
			writeText(w, http.StatusBadRequest, "unknown index "+name)
			return
		}
		cols = idx.Cols
	}
	recs := s.db.scan(kind, terms, cols, includeQuarantine(r))
	recs, prev, next := page(recs, r.URL.Query().Get("s"), pageSize(r))

	results := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		row := map[string]any{"id": rec.id}
		for _, col := range cols {
			row[col.Name] = rec.get(col.Name)
		}
		results = append(results, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "prev": prev, "next": next})
}

func (s *Server) handleUnique(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := splitSpec(pathVar(r, "spec"))
	if !ok {
		writeText(w, http.StatusBadRequest, "malformed unique path")
		return
	}
	terms, err := parseQuery(r.URL.Query().Get("q"))
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	idx, ok := s.db.index(kind, name)
	if !ok || !idx.Unique {
		writeText(w, http.StatusBadRequest, "unknown unique index "+name)
		return
	}
	recs := s.db.scan(kind, terms, idx.Cols, false)
	if len(recs) == 0 {
		writeText(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, recs[0].body())
}

type counterRow struct {
	key   []any
	count int64
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(mux.Vars(r)["spec"], "/")
	kind, name, ok := splitSpec(parts[0])
	if !ok {
		writeText(w, http.StatusBadRequest, "malformed counter path")
		return
	}
	var prefix []string
	for _, p := range parts[1:] {
		v, err := url.QueryUnescape(p)
		if err != nil {
			writeText(w, http.StatusBadRequest, err.Error())
			return
		}
		prefix = append(prefix, v)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.counter(kind, name)
	if !ok {
		writeText(w, http.StatusBadRequest, "unknown counter "+name)
		return
	}
	if len(prefix) > len(c.Cols) {
		writeText(w, http.StatusBadRequest, "too many counter values")
		return
	}

	query := make(map[string]any, len(prefix))
	for i, v := range prefix {
		query[c.Cols[i].Name] = v
	}
	rest := c.Cols[len(prefix):]

	groups := map[string]*counterRow{}
	var rows []*counterRow
outer:
	for _, rec := range s.db.scan(kind, nil, nil, false) {
		for i, v := range prefix {
			if plain(rec.get(c.Cols[i].Name)) != v {
				continue outer
			}
		}
		key := make([]any, len(rest))
		var sig strings.Builder
		for i, col := range rest {
			key[i] = rec.get(col.Name)
			sig.WriteString(plain(key[i]))
			sig.WriteByte(0)
		}
		g, ok := groups[sig.String()]
		if !ok {
			g = &counterRow{key: key}
			groups[sig.String()] = g
			rows = append(rows, g)
		}
		g.count++
	}
	sortRows(rows, rest)

	rows, prev, next := page(rows, r.URL.Query().Get("s"), pageSize(r))
	results := make([]map[string]any, 0, len(rows))
	for _, g := range rows {
		row := map[string]any{"count": g.count}
		for i, col := range rest {
			row[col.Name] = g.key[i]
		}
		results = append(results, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "query": query, "prev": prev, "next": next})
}

func sortRows(rows []*counterRow, cols []schema.ColumnDoc) {
	sort.SliceStable(rows, func(i, j int) bool {
		for k, col := range cols {
			c, _ := compare(rows[i].key[k], rows[j].key[k])
			if c == 0 {
				continue
			}
			if descending(col) {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func plain(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return string(b)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	doc := s.db.schemas[pathVar(r, "type")]
	if doc == nil {
		writeText(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutSchema(w http.ResponseWriter, r *http.Request) {
	kind := pathVar(r, "type")
	doc := new(schema.Document)
	if err := json.NewDecoder(r.Body).Decode(doc); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	current := s.db.schemas[kind]
	var version int64 = 1
	switch r.Method {
	case http.MethodPost:
		if current != nil {
			writeText(w, http.StatusConflict, "schema exists")
			return
		}
	case http.MethodPut:
		if current == nil {
			writeText(w, http.StatusNotFound, "not found")
			return
		}
		if doc.Version == nil || current.Version == nil || *doc.Version != *current.Version {
			writeText(w, http.StatusConflict, constants.VersionConflictBody)
			return
		}
		version = *current.Version + 1
	}
	s.db.schemas[kind] = doc.WithVersion(version)
	writeJSON(w, http.StatusOK, map[string]any{"version": version})
}

func (s *Server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rec := s.db.lookup(pathVar(r, "id"))
	if rec == nil {
		writeText(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodPost:
		rec.quarantined = true
	case http.MethodDelete:
		rec.quarantined = false
	}
	writeJSON(w, http.StatusOK, map[string]any{constants.QuarantinedField: rec.quarantined})
}
