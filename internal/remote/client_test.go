package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaiFongPan/dermascan-cli/internal/config"
	"github.com/HaiFongPan/dermascan-cli/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ServiceConfig{
		BaseURL:     srv.URL,
		UploadPath:  "/upload",
		AnalyzePath: "/analyze",
		Timeout:     5,
	}, opts...)
}

func lesion() *session.CandidateFile {
	return &session.CandidateFile{Name: "lesion.png", ContentType: "image/png", Data: []byte("\x89PNG fake body")}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireSessionError(t *testing.T, err error) *session.Error {
	t.Helper()
	require.Error(t, err)
	var se *session.Error
	require.True(t, errors.As(err, &se), "expected *session.Error, got %T", err)
	return se
}

func TestUpload_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)

		assert.Equal(t, "lesion.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "\x89PNG fake body", string(data))

		writeJSON(w, http.StatusOK, map[string]string{"message": "File uploaded successfully", "filename": "abc123.png"})
	})

	ref, err := c.Upload(context.Background(), lesion())
	require.NoError(t, err)
	assert.Equal(t, "abc123.png", ref)
}

func TestUpload_ServerErrorMessageSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File type not allowed"})
	})

	_, err := c.Upload(context.Background(), lesion())
	se := requireSessionError(t, err)
	assert.Equal(t, session.KindUpload, se.Kind)
	assert.Equal(t, "File type not allowed", se.Message)

	var svc *ServiceError
	require.True(t, errors.As(err, &svc))
	assert.Equal(t, http.StatusBadRequest, svc.StatusCode)
}

func TestUpload_FallbackMessage(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx without error", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{})
		}},
		{"non-json body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}},
		{"2xx without filename", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		}},
		{"2xx malformed", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Upload(context.Background(), lesion())
			se := requireSessionError(t, err)
			assert.Equal(t, session.MsgUploadFailed, se.Message)
		})
	}
}

func TestUpload_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.ServiceConfig{BaseURL: url, Timeout: 1})
	_, err := c.Upload(context.Background(), lesion())
	se := requireSessionError(t, err)
	assert.Equal(t, session.MsgUploadFailed, se.Message)
}

func TestUpload_ReportsProgress(t *testing.T) {
	var last atomic.Int64
	var total atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusOK, map[string]string{"filename": "x.png"})
	}, WithUploadProgress(func(sent, t int64) {
		last.Store(sent)
		total.Store(t)
	}))

	_, err := c.Upload(context.Background(), lesion())
	require.NoError(t, err)
	assert.Positive(t, total.Load())
	assert.Equal(t, total.Load(), last.Load())
}

func TestUpload_ContextProgressWins(t *testing.T) {
	var clientCalls, ctxCalls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusOK, map[string]string{"filename": "x.png"})
	}, WithUploadProgress(func(int64, int64) { clientCalls.Add(1) }))

	ctx := ContextWithProgress(context.Background(), func(int64, int64) { ctxCalls.Add(1) })
	_, err := c.Upload(ctx, lesion())
	require.NoError(t, err)
	assert.Positive(t, ctxCalls.Load())
	assert.Zero(t, clientCalls.Load())
}

func TestAnalyze_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc123.png", body["filename"])

		writeJSON(w, http.StatusOK, map[string]any{
			"classification": "Melanoma",
			"confidence":     0.87,
			"description":    "A serious form of skin cancer that develops in melanocytes.",
		})
	})

	res, err := c.Analyze(context.Background(), "abc123.png")
	require.NoError(t, err)
	assert.Equal(t, "Melanoma", res.Classification)
	assert.InDelta(t, 0.87, res.Confidence, 1e-9)
	assert.Equal(t, "87.00%", res.ConfidenceText())
}

func TestAnalyze_ClampsAndDefaults(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantClass      string
		wantConfidence float64
		wantDesc       string
	}{
		{"clamped above one", `{"confidence":1.4}`, "", 1.0, ""},
		{"negative", `{"classification":"Melanoma","confidence":-0.2}`, "Melanoma", 0, ""},
		{"numeric string", `{"classification":"Melanoma","confidence":"0.87","description":"d"}`, "Melanoma", 0.87, "d"},
		{"padded string", `{"confidence":" 0.5 "}`, "", 0.5, ""},
		{"non numeric string", `{"confidence":"high"}`, "", 0, ""},
		{"null fields", `{"classification":null,"confidence":null,"description":null}`, "", 0, ""},
		{"object confidence", `{"confidence":{"v":1}}`, "", 0, ""},
		{"numeric classification", `{"classification":3,"confidence":0.4}`, "3", 0.4, ""},
		{"empty object", `{}`, "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := c.Analyze(context.Background(), "abc123.png")
			require.NoError(t, err)
			assert.Equal(t, tt.wantClass, res.Classification)
			assert.InDelta(t, tt.wantConfidence, res.Confidence, 1e-12)
			assert.Equal(t, tt.wantDesc, res.Description)
		})
	}
}

func TestAnalyze_FailuresUseFixedMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot identify image file"})
	})

	_, err := c.Analyze(context.Background(), "abc123.png")
	se := requireSessionError(t, err)
	assert.Equal(t, session.KindAnalysis, se.Kind)
	assert.Equal(t, session.MsgAnalyzeFailed, se.Message)

	var svc *ServiceError
	require.True(t, errors.As(err, &svc))
	assert.Equal(t, "cannot identify image file", svc.Message)
}

func TestAnalyze_EmptyRefMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.Analyze(context.Background(), "")
	assert.True(t, errors.Is(err, session.ErrMissingUpload))
	assert.Zero(t, calls.Load())
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Analyze(ctx, "abc123.png")
	se := requireSessionError(t, err)
	assert.Equal(t, session.MsgAnalyzeFailed, se.Message)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
