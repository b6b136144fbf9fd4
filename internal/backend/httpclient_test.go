package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *HTTP {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, DefaultEndpoints(), 0)
	require.NoError(t, err)
	return c
}

func TestStartQuery(t *testing.T) {
	var got StartRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sqleditor/query_tool/start/42", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"status":true,"can_edit":true,"can_filter":true,"info_notifier_timeout":5}}`))
	}))

	resp, err := c.StartQuery(context.Background(), "42", StartRequest{SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, StartRequest{SQL: "SELECT 1", ExplainPlan: false}, got)
	assert.True(t, resp.Data.Status)
	assert.True(t, resp.Data.CanEdit)
	assert.Equal(t, 5, resp.Data.InfoNotifierTimeout)
}

func TestPoll_Success(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sqleditor/poll/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"status":"Success","result":[[1,"a"],[2,"b"]],
			"colinfo":[{"name":"id"},{"name":"name"}],"rows_affected":2}}`))
	}))

	resp, err := c.Poll(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Data.Status)
	assert.Equal(t, int64(2), resp.Data.RowsAffected)

	rows, err := resp.Data.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{float64(1), "a"}, {float64(2), "b"}}, rows)
}

func TestPollData_RowsFromObjects(t *testing.T) {
	d := PollData{
		Result:  json.RawMessage(`[{"name":"x","id":1}]`),
		ColInfo: []ColumnInfo{{Name: "id"}, {Name: "name"}},
	}
	rows, err := d.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{float64(1), "x"}}, rows)
}

func TestPollData_Message(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{"string", `"still running"`, "still running"},
		{"null", `null`, ""},
		{"rows", `[[1]]`, ""},
		{"absent", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := PollData{Result: json.RawMessage(tt.result)}
			assert.Equal(t, tt.want, d.Message())
		})
	}
}

func TestErrorResponses(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":0,"errormsg":"Login required","info":"PGADMIN_LOGIN_REQUIRED"}`))
	}))

	_, err := c.Poll(context.Background(), "1")
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, ReadyStateDone, he.ReadyState)
	assert.Equal(t, http.StatusUnauthorized, he.Status)
	assert.Equal(t, InfoLoginRequired, he.Info())
	assert.Equal(t, "Login required", he.Message())
}

func TestErrorResponses_PlainBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))

	_, err := c.StartQuery(context.Background(), "1", StartRequest{SQL: "SELECT 1"})
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Nil(t, he.Response)
	assert.Equal(t, "gateway exploded", he.Message())
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(srv.URL, DefaultEndpoints(), 0)
	require.NoError(t, err)

	_, err = c.Poll(context.Background(), "1")
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, ReadyStateUnsent, he.ReadyState)
	assert.Zero(t, he.Status)
	assert.NotNil(t, he.Err)
}

func TestInitializeQueryTool(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"numeric id", `{"data":{"gridTransId":8123}}`, "8123"},
		{"string id", `{"data":{"gridTransId":"abc"}}`, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/datagrid/initialize/query_tool/1/2/3", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			id, err := c.InitializeQueryTool(context.Background(), Target{ServerGroupID: 1, ServerID: 2, DatabaseID: 3})
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestLogin_SendsCSRFTokenAndKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "pga4_session", Value: "pre", Path: "/"})
		_, _ = w.Write([]byte(`<html><form><input type="hidden" name="csrf_token" value="tok-1"/></form></html>`))
	})
	mux.HandleFunc("/authenticate/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok-1", r.PostForm.Get("csrf_token"))
		assert.Equal(t, "admin@example.com", r.PostForm.Get("email"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		c, err := r.Cookie("pga4_session")
		require.NoError(t, err)
		assert.Equal(t, "pre", c.Value)
		http.SetCookie(w, &http.Cookie{Name: "pga4_session", Value: "authed", Path: "/"})
	})
	mux.HandleFunc("/sqleditor/poll/1", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("pga4_session")
		if err != nil || c.Value != "authed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"status":"Busy"}}`))
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.Login(context.Background(), "admin@example.com", "secret"))
	resp, err := c.Poll(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, StatusBusy, resp.Data.Status)
}

func TestExtractCSRFToken(t *testing.T) {
	tok, err := extractCSRFToken(strings.NewReader(`<input name="email"><input value="v" name="csrf_token">`))
	require.NoError(t, err)
	assert.Equal(t, "v", tok)

	tok, err = extractCSRFToken(strings.NewReader(`<p>no form</p>`))
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestGetVersion(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"4.2"}`))
	}))
	v, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.2", v)
}
