package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/plant-inspector-go/internal/config"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/metrics"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/recognition"
	"github.com/anime-shed/plant-inspector-go/internal/service"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/internal/token"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeUpstreams struct {
	tokenCalls int32
	plantBody  string
	ossStatus  int
	ossBody    string
	ossKey     atomic.Value
}

func (f *fakeUpstreams) baidu(t *testing.T) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case token.Path:
			atomic.AddInt32(&f.tokenCalls, 1)
			w.Write([]byte(`{"access_token":"tok","expires_in":2592000}`))
		case recognition.Path:
			w.Write([]byte(f.plantBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (f *fakeUpstreams) oss(t *testing.T) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); assert.NoError(t, err) {
			f.ossKey.Store(r.FormValue("key"))
		}
		w.WriteHeader(f.ossStatus)
		w.Write([]byte(f.ossBody))
	}))
	t.Cleanup(s.Close)
	return s
}

func setupRouter(t *testing.T, f *fakeUpstreams) (http.Handler, *storage.PolicySigner) {
	t.Helper()
	cfg := config.Default()
	cfg.MaxUploadSize = 1 << 20

	m := metrics.New()
	events := observer.NewEventPublisher()
	events.Subscribe(m)

	aip := upstream.New(f.baidu(t).URL, time.Second)
	provider := token.NewProvider(aip, "id", "secret", token.NewCache(), events)
	recognizer := recognition.NewClient(aip, provider, recognition.WithEvents(events))

	signer := storage.NewPolicySigner("oss-id", "oss-secret", f.oss(t).URL)
	uploader := storage.NewOSSUploader(upstream.New("", time.Second), signer)

	svc := service.NewPlantService(recognizer, uploader, signer, validation.NewUploadValidator(cfg.MaxUploadSize), events)
	return NewHandler(svc, m, cfg), signer
}

func doJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file here"))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	h, _ := setupRouter(t, &fakeUpstreams{})

	rec := doJSON(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "available", resp.Status)
	assert.Equal(t, "oss", resp.Storage)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestIdentifyPlant(t *testing.T) {
	f := &fakeUpstreams{plantBody: `{"log_id":42,"result":[{"name":"玫瑰","score":0.9231},{"name":"月季","score":0.0412}]}`}
	h, _ := setupRouter(t, f)

	for i := 0; i < 2; i++ {
		rec := doJSON(h, http.MethodPost, "/api/plant", `{"image":"aW1hZ2U=","expected_label":"玫瑰"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result recognition.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Len(t, result.Items, 2)
		assert.Equal(t, uint64(42), result.LogID)
		assert.Equal(t, "玫瑰", result.Items[0].Label)
		assert.Equal(t, "92.31%", result.Items[0].FormattedScore)
		assert.Equal(t, "4.12%", result.Items[1].FormattedScore)
		require.NotNil(t, result.BestMatch)
		assert.Equal(t, "玫瑰", result.BestMatch.Label)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls), "cached token is reused")
}

func TestIdentifyPlant_Errors(t *testing.T) {
	tests := []struct {
		name       string
		plantBody  string
		body       string
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{
			name:       "missing image",
			body:       `{"image":""}`,
			wantStatus: http.StatusBadRequest,
			wantType:   "input",
			wantMsg:    "recognition failed: no image selected",
		},
		{
			name:       "malformed json",
			body:       `{"image":`,
			wantStatus: http.StatusBadRequest,
			wantType:   "input",
			wantMsg:    "invalid request format: invalid request body",
		},
		{
			name:       "provider error",
			plantBody:  `{"error_code":216201,"error_msg":"image format error"}`,
			body:       `{"image":"aW1hZ2U="}`,
			wantStatus: http.StatusInternalServerError,
			wantType:   "provider",
			wantMsg:    "recognition failed: image format error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupRouter(t, &fakeUpstreams{plantBody: tt.plantBody})

			rec := doJSON(h, http.MethodPost, "/api/plant", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, http.StatusText(tt.wantStatus), resp.Error)
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestUploadFile(t *testing.T) {
	f := &fakeUpstreams{ossStatus: http.StatusOK}
	h, signer := setupRouter(t, f)

	body, contentType := multipartBody(t, "file", "my rose.jpg", "image/jpeg", jpegBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, signer.ObjectURL("my_20rose.jpg"), resp.URL)
	assert.Equal(t, "my rose.jpg", resp.Name)
	assert.Equal(t, int64(len(jpegBytes)), resp.Size)
	assert.Equal(t, "my_20rose.jpg", f.ossKey.Load())
}

func TestUploadFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		h, _ := setupRouter(t, &fakeUpstreams{ossStatus: http.StatusOK})
		body, contentType := multipartBody(t, "", "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "upload failed: no file selected", decodeError(t, rec).Message)
	})

	t.Run("not multipart", func(t *testing.T) {
		h, _ := setupRouter(t, &fakeUpstreams{ossStatus: http.StatusOK})
		rec := doJSON(h, http.MethodPost, "/api/upload", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("storage rejects", func(t *testing.T) {
		h, _ := setupRouter(t, &fakeUpstreams{
			ossStatus: http.StatusForbidden,
			ossBody:   `<Error><Code>AccessDenied</Code><Message>denied</Message><RequestId>1</RequestId></Error>`,
		})
		body, contentType := multipartBody(t, "file", "a.jpg", "image/jpeg", jpegBytes)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "storage", resp.Type)
		assert.Equal(t, "upload failed: AccessDenied: denied", resp.Message)
	})
}

func TestUploadFile_AnyFileType(t *testing.T) {
	f := &fakeUpstreams{ossStatus: http.StatusOK}
	h, _ := setupRouter(t, f)

	body, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "notes.txt", f.ossKey.Load())
}

func TestSignUpload(t *testing.T) {
	h, signer := setupRouter(t, &fakeUpstreams{})

	rec := doJSON(h, http.MethodGet, "/api/upload/policy?filename=my%20rose.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.PolicyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, signer.Host(), resp.UploadURL)
	assert.Equal(t, "my_20rose.jpg", resp.Key)
	assert.Equal(t, storage.Sign("oss-secret", resp.Fields["policy"]), resp.Fields["signature"])
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.Expiration, 5*time.Second)

	rec = doJSON(h, http.MethodGet, "/api/upload/policy", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := setupRouter(t, &fakeUpstreams{plantBody: `{"result":[]}`})
	doJSON(h, http.MethodPost, "/api/plant", `{"image":"aW1hZ2U="}`)

	rec := doJSON(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `plant_inspector_events_total{event="token_refreshed"} 1`)
	assert.Contains(t, body, `plant_inspector_events_total{event="recognition_completed"} 1`)
}
