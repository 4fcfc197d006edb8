package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/st9db/st9.go/pkg/connection"
	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/schema"
	"github.com/st9db/st9.go/pkg/serializer"
)

type call struct {
	method string
	path   string
	body   string
}

// fakeConn answers from a handler and records every call.
type fakeConn struct {
	calls   []call
	handler func(method, path string, body []byte) (int, string)
}

func (f *fakeConn) Do(_ context.Context, method, path string, body []byte) (*connection.Response, error) {
	f.calls = append(f.calls, call{method, path, string(body)})
	status, out := f.handler(method, path, body)
	return &connection.Response{Status: status, Body: []byte(out)}, nil
}

type RemoteTestSuite struct {
	suite.Suite
	reg    *models.Registry
	widget *models.EntityType
	conn   *fakeConn
	remote *Remote
}

func TestRemoteTestSuite(t *testing.T) {
	suite.Run(t, new(RemoteTestSuite))
}

func (s *RemoteTestSuite) SetupTest() {
	s.reg = models.NewRegistry()
	s.widget = s.reg.MustRegister(models.TypeSpec{
		Name:       "widget",
		Attributes: []schema.Attribute{{Name: "count", Type: schema.Int32}},
	})
	s.conn = &fakeConn{handler: func(string, string, []byte) (int, string) { return http.StatusOK, "{}" }}
	s.remote = NewRemote(s.conn, serializer.New(s.reg), 2, nil)
}

func widgetJSON(id string, count int) string {
	return fmt.Sprintf(`{"id":%q,"kind":"widget","version":1,"count":%d}`, id, count)
}

func (s *RemoteTestSuite) TestGet() {
	s.conn.handler = func(_, path string, _ []byte) (int, string) {
		if strings.Contains(path, "missing") {
			return http.StatusNotFound, "not found"
		}
		return http.StatusOK, widgetJSON("@widget:0000000000000001", 7)
	}
	ctx := context.Background()

	e, err := s.remote.Get(ctx, "@widget:0000000000000001", GetOptions{WithQuarantined: true})
	s.Require().NoError(err)
	s.Equal(int32(7), e.Get("count"))
	s.Equal("/1.0/e/@widget:0000000000000001?includeQuarantine=true", s.conn.calls[0].path)

	e, err = s.remote.Get(ctx, "@widget:missing", GetOptions{})
	s.Require().NoError(err)
	s.Nil(e)
}

func (s *RemoteTestSuite) TestMultiGetChunksAndAligns() {
	s.conn.handler = func(_, path string, _ []byte) (int, string) {
		if strings.Contains(path, "0000000000000001") {
			return http.StatusOK, fmt.Sprintf(`{"@widget:0000000000000001":%s,"@widget:0000000000000002":null}`, widgetJSON("@widget:0000000000000001", 1))
		}
		return http.StatusOK, fmt.Sprintf(`{"@widget:0000000000000003":%s}`, widgetJSON("@widget:0000000000000003", 3))
	}
	ids := []string{"@widget:0000000000000001", "@widget:0000000000000002", "@widget:0000000000000001", "@widget:0000000000000003"}

	aligned, err := s.remote.MultiGet(context.Background(), ids, GetOptions{})
	s.Require().NoError(err)
	s.Require().Len(aligned, 3)
	s.Equal("@widget:0000000000000001", aligned[0].ID())
	s.Nil(aligned[1])
	s.Equal("@widget:0000000000000003", aligned[2].ID())

	s.Require().Len(s.conn.calls, 2)
	s.Equal("/1.0/e/multi?k=%40widget%3A0000000000000001&k=%40widget%3A0000000000000002", s.conn.calls[0].path)
	s.Equal("/1.0/e/multi?k=%40widget%3A0000000000000003", s.conn.calls[1].path)

	collapsed, err := s.remote.MultiGet(context.Background(), ids, GetOptions{Collapse: true, WithQuarantined: true})
	s.Require().NoError(err)
	s.Len(collapsed, 2)
	s.True(strings.HasSuffix(s.conn.calls[2].path, "&includeQuarantine=true"))
}

func (s *RemoteTestSuite) TestCreateAndUpdate() {
	s.conn.handler = func(method, _ string, _ []byte) (int, string) {
		if method == http.MethodPost {
			return http.StatusCreated, `{"id":"@widget:0000000000000009","version":1}`
		}
		return http.StatusOK, `{"id":"@widget:0000000000000009","version":2}`
	}
	e := s.widget.New()
	s.Require().NoError(e.Set("count", 5))

	saved, err := s.remote.Create(context.Background(), e)
	s.Require().NoError(err)
	s.Equal(&Saved{ID: "@widget:0000000000000009", Version: 1}, saved)
	s.Equal(call{http.MethodPost, "/1.0/e/widget", `{"count":5}`}, s.conn.calls[0])

	e.MarkSaved(saved.ID, saved.Version)
	saved, err = s.remote.Update(context.Background(), e)
	s.Require().NoError(err)
	s.Equal(int64(2), saved.Version)
	s.Equal("/1.0/e/@widget:0000000000000009", s.conn.calls[1].path)
	s.JSONEq(`{"count":5,"version":1}`, s.conn.calls[1].body)
}

func (s *RemoteTestSuite) TestSaveStatusContract() {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusConflict, constants.VersionConflictBody, constants.ErrObsoleteVersion},
		{http.StatusConflict, constants.UniqueViolationBody, constants.ErrDuplicateKey},
		{http.StatusBadRequest, "bad", constants.ErrInvalidClientRequest},
		{http.StatusInternalServerError, "oops", constants.ErrUnexpectedRemoteService},
		{http.StatusTeapot, "tea", constants.ErrPersistence},
	}
	for _, c := range cases {
		s.conn.handler = func(string, string, []byte) (int, string) { return c.status, c.body }
		_, err := s.remote.Create(context.Background(), s.widget.New())
		s.ErrorIs(err, c.want, c.body)
		s.ErrorIs(err, constants.ErrPersistence)
	}
	_, err := s.remote.Update(context.Background(), s.widget.New())
	s.ErrorIs(err, constants.ErrInvalidArgument)
}

func (s *RemoteTestSuite) TestScan() {
	s.conn.handler = func(string, string, []byte) (int, string) {
		return http.StatusOK, `{"results":[{"id":"@widget:0000000000000002"},{"id":"@widget:0000000000000001"}],"prev":null,"next":"abc"}`
	}
	page, err := s.remote.Scan(context.Background(), "/1.0/i/widget.by_count?q=x&n=2", "tok")
	s.Require().NoError(err)
	s.Equal([]string{"@widget:0000000000000002", "@widget:0000000000000001"}, page.IDs)
	s.Equal("", page.Prev)
	s.Equal("abc", page.Next)
	s.Equal("/1.0/i/widget.by_count?q=x&n=2&s=tok", s.conn.calls[0].path)

	ok, err := s.remote.Exists(context.Background(), "/1.0/i/widget.by_count?q=x")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("/1.0/i/widget.by_count?q=x&n=1", s.conn.calls[1].path)
}

func (s *RemoteTestSuite) TestCounters() {
	s.conn.handler = func(string, string, []byte) (int, string) {
		return http.StatusOK, `{"results":[{"count":3,"n":1},{"count":2,"n":2}],"query":{"user_id":"@user:0000000000000001"},"next":"z"}`
	}
	page, err := s.remote.Counters(context.Background(), "/1.0/c/widget.by_user/x", "")
	s.Require().NoError(err)
	s.Require().Len(page.Rows, 2)
	s.Equal(int64(3), page.Rows[0].Count())
	s.Equal("@user:0000000000000001", page.Rows[1]["user_id"])
	s.Equal("z", page.Next)
}

func (s *RemoteTestSuite) TestCountersKeepRowValues() {
	s.conn.handler = func(string, string, []byte) (int, string) {
		return http.StatusOK, `{"results":[{"count":4,"state":"sold"}],"query":{"state":"new","count":99,"shop_id":"@shop:0000000000000001"}}`
	}
	page, err := s.remote.Counters(context.Background(), "/1.0/c/widget.by_state", "")
	s.Require().NoError(err)
	s.Require().Len(page.Rows, 1)
	s.Equal(int64(4), page.Rows[0].Count())
	s.Equal("sold", page.Rows[0]["state"])
	s.Equal("@shop:0000000000000001", page.Rows[0]["shop_id"])
}

func (s *RemoteTestSuite) TestUnique() {
	s.conn.handler = func(string, string, []byte) (int, string) { return http.StatusOK, "" }
	e, err := s.remote.Unique(context.Background(), "/1.0/u/widget.by_name?q=x", false)
	s.Require().NoError(err)
	s.Nil(e)

	s.conn.handler = func(string, string, []byte) (int, string) {
		return http.StatusOK, widgetJSON("@widget:0000000000000004", 4)
	}
	e, err = s.remote.Unique(context.Background(), "/1.0/u/widget.by_name?q=x", false)
	s.Require().NoError(err)
	s.Equal("@widget:0000000000000004", e.ID())
}

func (s *RemoteTestSuite) TestQuarantine() {
	s.conn.handler = func(method, path string, _ []byte) (int, string) {
		switch {
		case strings.Contains(path, "missing"):
			return http.StatusNotFound, ""
		case strings.Contains(path, "broken"):
			return http.StatusInternalServerError, "boom"
		case method == http.MethodGet:
			return http.StatusOK, `{"$quarantined":true}`
		}
		return http.StatusOK, ""
	}
	ctx := context.Background()

	s.NoError(s.remote.Quarantine(ctx, "@widget:0000000000000001"))
	s.NoError(s.remote.Unquarantine(ctx, "@widget:0000000000000001"))
	s.Equal(call{http.MethodPost, "/1.0/q/@widget:0000000000000001", ""}, s.conn.calls[0])
	s.Equal(http.MethodDelete, s.conn.calls[1].method)

	q, err := s.remote.Quarantined(ctx, "@widget:0000000000000001")
	s.Require().NoError(err)
	s.True(q)

	_, err = s.remote.Quarantined(ctx, "@widget:missing")
	s.ErrorIs(err, constants.ErrNotFound)

	_, err = s.remote.Quarantined(ctx, "@widget:broken")
	s.ErrorIs(err, constants.ErrQuarantine)
	s.ErrorIs(s.remote.Quarantine(ctx, "@widget:broken"), constants.ErrQuarantine)
}

func (s *RemoteTestSuite) TestPublishSchema() {
	published := false
	s.conn.handler = func(method, _ string, _ []byte) (int, string) {
		switch method {
		case http.MethodGet:
			if !published {
				return http.StatusNotFound, ""
			}
			return http.StatusOK, `{"attributes":[],"indexes":[],"counters":[],"fulltexts":[],"version":4}`
		default:
			published = true
			return http.StatusOK, ""
		}
	}
	ctx := context.Background()
	doc := s.widget.Document()

	s.Require().NoError(s.remote.PublishSchema(ctx, "widget", doc))
	s.Equal(http.MethodPost, s.conn.calls[1].method)
	s.NotContains(s.conn.calls[1].body, "version")

	s.Require().NoError(s.remote.PublishSchema(ctx, "widget", doc))
	s.Equal(http.MethodPut, s.conn.calls[3].method)
	s.Contains(s.conn.calls[3].body, `"version":4`)
	s.Equal("/1.0/s/widget", s.conn.calls[3].path)
}

func (s *RemoteTestSuite) TestPingAndNuke() {
	s.conn.handler = func(_, path string, _ []byte) (int, string) {
		if path == constants.PingPath {
			return http.StatusOK, "OK\n"
		}
		return http.StatusForbidden, "no"
	}
	ctx := context.Background()

	ok, err := s.remote.Ping(ctx)
	s.Require().NoError(err)
	s.True(ok)

	s.ErrorIs(s.remote.Nuke(ctx, true), constants.ErrNukeDisabled)
	s.Equal("/1.0/nuke?preserveSchema=true", s.conn.calls[1].path)

	s.conn.handler = func(string, string, []byte) (int, string) { return http.StatusAccepted, "" }
	s.ErrorIs(s.remote.Nuke(ctx, false), constants.ErrPersistence)

	s.conn.handler = func(string, string, []byte) (int, string) { return http.StatusOK, "" }
	s.NoError(s.remote.Nuke(ctx, false))
}
