// Package remote talks to the lesion analysis service over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/config"
	"github.com/HaiFongPan/dermascan-cli/internal/session"
	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

// maxResponseBytes bounds how much of a response body is decoded
const maxResponseBytes = 1 << 20

// ServiceError is a non-2xx response from the analysis service
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: service returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: service returned %d", e.Op, e.StatusCode)
}

// Client is the upload and analysis client
type Client struct {
	httpClient  *http.Client
	baseURL     string
	uploadPath  string
	analyzePath string
	progress    utils.ProgressCallback
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUploadProgress reports request body bytes as they are sent
func WithUploadProgress(cb utils.ProgressCallback) Option {
	return func(c *Client) { c.progress = cb }
}

// NewClient creates a client for the service described by cfg
func NewClient(cfg config.ServiceConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout()},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		uploadPath:  cfg.UploadPath,
		analyzePath: cfg.AnalyzePath,
	}
	if c.uploadPath == "" {
		c.uploadPath = "/upload"
	}
	if c.analyzePath == "" {
		c.analyzePath = "/analyze"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type progressKey struct{}

// ContextWithProgress attaches a per-call upload progress callback. It takes
// precedence over WithUploadProgress for uploads made with the returned ctx.
func ContextWithProgress(ctx context.Context, cb utils.ProgressCallback) context.Context {
	return context.WithValue(ctx, progressKey{}, cb)
}

func (c *Client) progressFor(ctx context.Context) utils.ProgressCallback {
	if cb, ok := ctx.Value(progressKey{}).(utils.ProgressCallback); ok && cb != nil {
		return cb
	}
	return c.progress
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type analyzeRequest struct {
	Filename string `json:"filename"`
}

type analyzeResponse struct {
	Classification looseString `json:"classification"`
	Confidence     looseFloat  `json:"confidence"`
	Description    looseString `json:"description"`
	Error          string      `json:"error"`
}

func (r analyzeResponse) result() session.Result {
	return session.Result{
		Classification: string(r.Classification),
		Confidence:     float64(r.Confidence),
		Description:    string(r.Description),
	}.Normalize()
}

// looseFloat accepts a number, a numeric string, a bool or null. Anything
// that is not a number becomes NaN and is clamped later.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*f = looseFloat(t)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			n = math.NaN()
		}
		*f = looseFloat(n)
	case bool:
		if t {
			*f = 1
		} else {
			*f = 0
		}
	case nil:
		*f = 0
	default:
		*f = looseFloat(math.NaN())
	}
	return nil
}

// looseString keeps strings as they are, null as "" and renders other values as JSON text
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = looseString(t)
	case nil:
		*s = ""
	default:
		*s = looseString(strings.TrimSpace(string(data)))
	}
	return nil
}

// Upload sends the file as the multipart field "file" and returns the
// reference the service assigned to it. A server-provided error message is
// surfaced verbatim; every other failure gets the generic upload message.
func (c *Client) Upload(ctx context.Context, file *session.CandidateFile) (string, error) {
	if file == nil {
		return "", session.NewError(session.KindUpload, session.MsgUploadFailed, fmt.Errorf("no file"))
	}

	body, contentType, err := encodeMultipart(file)
	if err != nil {
		return "", session.NewError(session.KindUpload, session.MsgUploadFailed, err)
	}

	var reader io.Reader = body
	if cb := c.progressFor(ctx); cb != nil {
		reader = utils.NewProgressReader(body, int64(body.Len()), cb)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.uploadPath, reader)
	if err != nil {
		return "", session.NewError(session.KindUpload, session.MsgUploadFailed, err)
	}
	req.ContentLength = int64(body.Len())
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	logrus.WithFields(logrus.Fields{
		"file": file.Name,
		"size": file.Size(),
		"url":  req.URL.String(),
	}).Debug("uploading image")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", session.NewError(session.KindUpload, session.MsgUploadFailed, err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out)

	if !isSuccess(resp.StatusCode) {
		svcErr := &ServiceError{Op: "upload", StatusCode: resp.StatusCode, Message: out.Error}
		message := session.MsgUploadFailed
		if decodeErr == nil && out.Error != "" {
			message = out.Error
		}
		logrus.WithError(svcErr).Warn("upload rejected")
		return "", session.NewError(session.KindUpload, message, svcErr)
	}
	if decodeErr != nil {
		return "", session.NewError(session.KindUpload, session.MsgUploadFailed,
			fmt.Errorf("decode upload response: %w", decodeErr))
	}
	if out.Filename == "" {
		return "", session.NewError(session.KindUpload, session.MsgUploadFailed,
			fmt.Errorf("upload response has no filename"))
	}

	logrus.WithFields(logrus.Fields{"file": file.Name, "ref": out.Filename}).Info("image uploaded")
	return out.Filename, nil
}

// Analyze asks the service to classify a previously uploaded image. Every
// failure surfaces as the fixed analyze message; details only go to the log.
func (c *Client) Analyze(ctx context.Context, ref string) (session.Result, error) {
	if ref == "" {
		return session.Result{}, session.ErrMissingUpload
	}

	payload, err := json.Marshal(analyzeRequest{Filename: ref})
	if err != nil {
		return session.Result{}, analyzeFailed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.analyzePath, bytes.NewReader(payload))
	if err != nil {
		return session.Result{}, analyzeFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return session.Result{}, analyzeFailed(err)
	}
	defer resp.Body.Close()

	var out analyzeResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out)

	if !isSuccess(resp.StatusCode) {
		return session.Result{}, analyzeFailed(&ServiceError{Op: "analyze", StatusCode: resp.StatusCode, Message: out.Error})
	}
	if decodeErr != nil {
		return session.Result{}, analyzeFailed(fmt.Errorf("decode analyze response: %w", decodeErr))
	}

	result := out.result()
	logrus.WithFields(logrus.Fields{
		"ref":            ref,
		"classification": result.Classification,
		"confidence":     result.Confidence,
		"elapsed":        time.Since(start),
	}).Info("image analyzed")
	return result, nil
}

func analyzeFailed(cause error) error {
	logrus.WithError(cause).Warn("analyze failed")
	return session.NewError(session.KindAnalysis, session.MsgAnalyzeFailed, cause)
}

func encodeMultipart(file *session.CandidateFile) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
