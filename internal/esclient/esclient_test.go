package esclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadReportsExistence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blocks/_doc/present" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")

	exists, err := c.DocExists(context.Background(), "blocks", "present")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.DocExists(context.Background(), "blocks", "absent")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetReturnsErrNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")
	var out map[string]interface{}
	err := c.Get(context.Background(), "accounts", "alice", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"abi":null,"name":"alice"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")
	var out map[string]interface{}
	require.NoError(t, c.Get(context.Background(), "accounts", "alice", &out))
	assert.Equal(t, "alice", out["name"])
}

func TestBulkReportsErrorsTrueAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":true,"items":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")
	err := c.Bulk(context.Background(), "", []byte(`{"index":{}}`+"\n"+`{"a":1}`+"\n"))
	require.Error(t, err)
	var bulkErr *BulkErrorsError
	assert.ErrorAs(t, err, &bulkErr)
}

func TestBulkSucceedsWhenErrorsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":false,"items":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")
	err := c.Bulk(context.Background(), "", []byte(`{"index":{}}`+"\n"+`{"a":1}`+"\n"))
	assert.NoError(t, err)
}

func TestDeleteIndexTolerates404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")
	assert.NoError(t, c.DeleteIndex(context.Background(), "blocks"))
}

func TestCreateToleratesConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")
	status, err := c.Create(context.Background(), "action_traces", []byte(`{}`), "trx1-0")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, status)
}

func TestResponseCodeErrorOnUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", "")
	err := c.Update(context.Background(), "accounts", "alice", []byte(`{}`))
	var rce *ResponseCodeError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, http.StatusInternalServerError, rce.StatusCode)
}
