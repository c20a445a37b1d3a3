// handlers_generate_test.go - Tests for preview handlers
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptcad/backend/internal/models"
	"github.com/promptcad/backend/internal/preview"
	"github.com/promptcad/backend/internal/testutil"
)

func newGenerateHandler(t *testing.T) (*GenerateHandlerImpl, *testutil.MockKernel) {
	t.Helper()
	k := testutil.NewMockKernel()
	previews, err := preview.NewManager(t.TempDir(), k, nil)
	require.NoError(t, err)
	return NewGenerateHandler(nil, previews, nil, nil).(*GenerateHandlerImpl), k
}

func jsonContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requireAPIError(t *testing.T, err error, status int, code string) *APIError {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected APIError, got %T", err)
	assert.Equal(t, status, apiErr.Status)
	assert.Equal(t, code, apiErr.Code)
	return apiErr
}

func TestGenerateHandler_HandleGenerate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantParams models.ShapeParameters
		wantErr    bool
		errCode    string
	}{
		{
			name:       "lying cylinder",
			body:       `{"prompt":"cylinder radius 7 height 20 lying"}`,
			wantParams: models.NewCylinder(7, 20, models.Vec3{0, 90, 0}),
		},
		{
			name:       "empty prompt falls back to box",
			body:       `{"prompt":""}`,
			wantParams: models.NewBox(10, 10, 10, models.Vec3{}),
		},
		{
			name:    "missing prompt",
			body:    `{}`,
			wantErr: true,
			errCode: CodeInvalidInput,
		},
		{
			name:    "malformed body",
			body:    `{"prompt":`,
			wantErr: true,
			errCode: CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newGenerateHandler(t)
			c, rec := jsonContext(http.MethodPost, "/generate", tt.body)

			err := h.HandleGenerate(c)
			if tt.wantErr {
				requireAPIError(t, err, http.StatusBadRequest, tt.errCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)

			var resp struct {
				Success   bool                   `json:"success"`
				Params    models.ShapeParameters `json:"params"`
				FileURL   string                 `json:"file_url"`
				PreviewID string                 `json:"preview_id"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantParams, resp.Params)
			assert.Equal(t, "/download/stl/"+resp.PreviewID, resp.FileURL)
		})
	}
}

func TestGenerateHandler_HandleGenerateFromParams(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "sphere with defaults",
			body:       `{"shape":"sphere"}`,
			wantStatus: http.StatusOK,
			wantJSON:   `{"shape":"sphere","radius":5,"rotation":[0,0,0]}`,
		},
		{
			name:       "box with rotation",
			body:       `{"shape":"box","width":2,"rotation":[10,0,0]}`,
			wantStatus: http.StatusOK,
			wantJSON:   `{"shape":"box","width":2,"depth":10,"height":10,"rotation":[10,0,0]}`,
		},
		{name: "unknown kind", body: `{"shape":"cone","radius":1}`, wantStatus: http.StatusBadRequest},
		{name: "missing kind", body: `{"radius":1}`, wantStatus: http.StatusBadRequest},
		{name: "negative radius", body: `{"shape":"cylinder","radius":-1}`, wantStatus: http.StatusBadRequest},
		{name: "short rotation", body: `{"shape":"box","rotation":[1,2]}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, k := newGenerateHandler(t)
			c, rec := jsonContext(http.MethodPost, "/generate_from_params", tt.body)

			err := h.HandleGenerateFromParams(c)
			if tt.wantStatus != http.StatusOK {
				requireAPIError(t, err, tt.wantStatus, CodeInvalidInput)
				assert.Equal(t, 0, k.Calls("build"))
				return
			}
			require.NoError(t, err)

			var resp map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.JSONEq(t, tt.wantJSON, string(resp["params"]))
		})
	}
}

func TestGenerateHandler_KernelFailure(t *testing.T) {
	h, k := newGenerateHandler(t)
	k.ExportMeshErr = errors.New("tessellation failed")
	c, _ := jsonContext(http.MethodPost, "/generate", `{"prompt":"sphere"}`)

	apiErr := requireAPIError(t, h.HandleGenerate(c), http.StatusInternalServerError, CodeInternal)
	assert.Contains(t, apiErr.Detail, "tessellation failed")
}

func TestGenerateHandler_Download(t *testing.T) {
	h, _ := newGenerateHandler(t)

	c, rec := jsonContext(http.MethodGet, "/download/stl", "")
	requireAPIError(t, h.HandleDownloadLatest(c), http.StatusNotFound, CodeNotFound)

	c, rec = jsonContext(http.MethodPost, "/generate", `{"prompt":"box"}`)
	require.NoError(t, h.HandleGenerate(c))
	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	c, rec = jsonContext(http.MethodGet, "/download/stl", "")
	require.NoError(t, h.HandleDownloadLatest(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEOctetStream, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "shape.stl")
	assert.Equal(t, 80+4+12*50, rec.Body.Len())

	c, rec = jsonContext(http.MethodGet, "/download/stl/"+resp.PreviewID, "")
	c.SetParamNames("id")
	c.SetParamValues(resp.PreviewID)
	require.NoError(t, h.HandleDownloadPreview(c))
	assert.Equal(t, 80+4+12*50, rec.Body.Len())

	c, _ = jsonContext(http.MethodGet, "/download/stl/nope", "")
	c.SetParamNames("id")
	c.SetParamValues("nope")
	requireAPIError(t, h.HandleDownloadPreview(c), http.StatusNotFound, CodeNotFound)
}
