package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mnbhttp "github.com/aretw0/mnb/pkg/adapters/http"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ExecutionHandler = (*mnbhttp.Client)(nil)

func TestClient_Execute(t *testing.T) {
	var got domain.ExecutionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"type":"transformation","code":"g()","message":"done"}`))
	}))
	defer srv.Close()

	client, err := mnbhttp.NewClient(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/execute", client.Endpoint())

	resp, err := client.Execute(context.Background(), domain.ExecutionRequest{Code: "f()", AllCellContent: "f()\n"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransformationResponse{Message: "done", Code: "g()"}, resp)
	assert.Equal(t, "f()\n", got.AllCellContent)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "kaboom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := mnbhttp.NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), domain.ExecutionRequest{Code: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "kaboom")
}

func TestClient_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := mnbhttp.NewClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Execute(ctx, domain.ExecutionRequest{Code: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_EmptyAddress(t *testing.T) {
	_, err := mnbhttp.NewClient("  ")
	assert.ErrorIs(t, err, mnbhttp.ErrEmptyAddress)
}

func TestStreamManager_Unsubscribe(t *testing.T) {
	sm := mnbhttp.NewStreamManager(nil)
	ch, cancel := sm.Subscribe("nb")
	assert.Equal(t, 1, sm.Subscribers("nb"))

	sm.Broadcast("nb", "hello")
	assert.Equal(t, "hello", <-ch)

	cancel()
	cancel()
	assert.Equal(t, 0, sm.Subscribers("nb"))
	_, open := <-ch
	assert.False(t, open)

	sm.Broadcast("nb", "nobody listens")
}
