package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdata/askdata/internal/gateway"
	"github.com/askdata/askdata/internal/server"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := server.New(nil, server.Options{JobStepDelay: 10 * time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterAndListDatasets(t *testing.T) {
	ts := newTestServer(t)

	var ds gateway.Dataset
	resp := postJSON(t, ts.URL+"/datasets/register", map[string]string{"name": "inventory"}, &ds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "inventory", ds.Name)
	assert.Equal(t, gateway.DatasetRegistered, ds.Status)

	var list struct {
		Datasets []gateway.Dataset `json:"datasets"`
	}
	getJSON(t, ts.URL+"/datasets", &list)
	assert.Len(t, list.Datasets, 3, "two seed datasets plus the new one")
}

func TestRegisterRequiresName(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/datasets/register", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadMultipart(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("dataset_id", "ds_orders"))
	part, err := w.CreateFormFile("file", "orders.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("id,total\n1,10.5\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(ts.URL+"/datasets/upload", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngestProgressesToDone(t *testing.T) {
	ts := newTestServer(t)

	var job gateway.Job
	resp := postJSON(t, ts.URL+"/datasets/ds_tickets/ingest", nil, &job)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gateway.JobQueued, job.Status)

	// Poll until the job reaches done.
	var done bool
	deadline := time.Now().Add(2 * time.Second)
	for !done && time.Now().Before(deadline) {
		var list struct {
			Jobs []gateway.Job `json:"jobs"`
		}
		getJSON(t, ts.URL+"/jobs", &list)
		for _, j := range list.Jobs {
			if j.ID == job.ID && j.Status == gateway.JobDone {
				require.NotNil(t, j.FinishedAt)
				done = true
			}
		}
		if !done {
			time.Sleep(10 * time.Millisecond)
		}
	}
	require.True(t, done, "job never reached done")

	var list struct {
		Datasets []gateway.Dataset `json:"datasets"`
	}
	getJSON(t, ts.URL+"/datasets", &list)
	for _, d := range list.Datasets {
		if d.ID == "ds_tickets" {
			assert.Equal(t, gateway.DatasetReady, d.Status)
			assert.NotNil(t, d.LastIngestAt)
		}
	}
}

func TestIngestUnknownDataset(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/datasets/nope/ingest", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatAndExecuteRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	var chat gateway.ChatResponse
	postJSON(t, ts.URL+"/chat", gateway.ChatRequest{
		DatasetID: "ds_orders",
		Message:   "how did revenue trend?",
	}, &chat)
	require.NoError(t, chat.Validate())
	require.Equal(t, gateway.VariantRunQueries, chat.Type)
	require.Len(t, chat.RunQueries, 2)

	var exec struct {
		Results []gateway.Table `json:"results"`
	}
	postJSON(t, ts.URL+"/queries/execute", map[string]any{
		"dataset_id": "ds_orders",
		"queries":    chat.RunQueries,
	}, &exec)
	require.Len(t, exec.Results, 2)
	assert.Len(t, exec.Results[0].Rows, 6)

	var followup gateway.ChatResponse
	postJSON(t, ts.URL+"/chat", gateway.ChatRequest{
		DatasetID: "ds_orders",
		Message:   "how did revenue trend?",
		Results:   exec.Results,
	}, &followup)
	require.NoError(t, followup.Validate())
	assert.Equal(t, gateway.VariantFinalAnswer, followup.Type)
	assert.Len(t, followup.Answer.Tables, 2)
}

func TestCatalogEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var catalog gateway.Catalog
	getJSON(t, ts.URL+"/datasets/ds_orders/catalog", &catalog)
	assert.Equal(t, "ds_orders", catalog.DatasetID)
	require.Len(t, catalog.Tables, 2)
}

func TestEventsStreamDeliversJobTransitions(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var job gateway.Job
	postJSON(t, ts.URL+"/datasets/ds_tickets/ingest", nil, &job)

	seen := map[gateway.JobStatus]bool{}
	deadline := time.Now().Add(2 * time.Second)
	for !seen[gateway.JobDone] {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var ev gateway.Job
		require.NoError(t, conn.ReadJSON(&ev), "should receive job events before deadline")
		if ev.ID == job.ID {
			seen[ev.Status] = true
		}
	}
	assert.True(t, seen[gateway.JobQueued], "queued transition should be streamed")
	assert.True(t, seen[gateway.JobRunning], "running transition should be streamed")
}

// TestLivePathParity drives the client's live source against this handler and
// checks the shapes match what the mock path produces.
func TestLivePathParity(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	live := gateway.NewLiveSource(ts.URL, 5*time.Second)
	mock := gateway.NewMockSource()

	require.NoError(t, live.Health(ctx))

	liveDatasets, err := live.ListDatasets(ctx)
	require.NoError(t, err)
	mockDatasets, err := mock.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Len(t, liveDatasets, len(mockDatasets))

	liveChat, err := live.Chat(ctx, gateway.ChatRequest{DatasetID: "ds_orders", Message: "show trend"})
	require.NoError(t, err)
	mockChat, err := mock.Chat(ctx, gateway.ChatRequest{DatasetID: "ds_orders", Message: "show trend"})
	require.NoError(t, err)
	require.NoError(t, liveChat.Validate())
	assert.Equal(t, mockChat.Type, liveChat.Type)
	assert.Equal(t, mockChat.RunQueries, liveChat.RunQueries)

	liveResults, err := live.ExecuteQueries(ctx, "ds_orders", liveChat.RunQueries)
	require.NoError(t, err)
	mockResults, err := mock.ExecuteQueries(ctx, "ds_orders", mockChat.RunQueries)
	require.NoError(t, err)
	require.Len(t, liveResults, len(mockResults))
	for i := range liveResults {
		assert.Equal(t, mockResults[i].Name, liveResults[i].Name)
		assert.Equal(t, mockResults[i].Columns, liveResults[i].Columns)
		assert.Len(t, liveResults[i].Rows, len(mockResults[i].Rows))
	}

	liveCatalog, err := live.Catalog(ctx, "ds_orders")
	require.NoError(t, err)
	mockCatalog, err := mock.Catalog(ctx, "ds_orders")
	require.NoError(t, err)
	assert.Equal(t, mockCatalog, liveCatalog)
}
