package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-hub/form"
)

// scrape renders the metrics in the text exposition format.
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestInstrument_CountsOutcomes(t *testing.T) {
	m := NewMetrics()
	replies := []struct {
		reply form.Reply
		err   error
	}{
		{form.Reply{Successful: true}, nil},
		{form.Reply{Successful: false, Message: "no"}, nil},
		{form.Reply{}, errors.New("timeout")},
		{form.Reply{Successful: true}, nil},
	}

	i := 0
	collab := m.Instrument(form.CollaboratorFunc(func(context.Context, form.Submission) (form.Reply, error) {
		r := replies[i]
		i++
		return r.reply, r.err
	}))
	for range replies {
		collab.SubmitRequest(context.Background(), form.Submission{Form: "leave"})
	}

	out := scrape(t, m)
	assert.Contains(t, out, `workforce_hub_submissions_total{form="leave",outcome="succeeded"} 2`)
	assert.Contains(t, out, `workforce_hub_submissions_total{form="leave",outcome="rejected"} 1`)
	assert.Contains(t, out, `workforce_hub_submissions_total{form="leave",outcome="transport_error"} 1`)
	assert.Contains(t, out, `workforce_hub_submission_duration_seconds_count{form="leave"} 4`)
}

func TestInstrument_NilMetrics(t *testing.T) {
	var m *Metrics
	collab := form.CollaboratorFunc(func(context.Context, form.Submission) (form.Reply, error) {
		return form.Reply{Successful: true}, nil
	})
	reply, err := m.Instrument(collab).SubmitRequest(context.Background(), form.Submission{})
	require.NoError(t, err)
	assert.True(t, reply.Successful)

	m.sessionOpened("leave")
	m.sessionClosed(true)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createSession(t, "leave")

	resp, err := env.server.Client().Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `workforce_hub_sessions_created_total{form="leave"} 1`)
	assert.Contains(t, string(body), "workforce_hub_sessions_active 1")
}
