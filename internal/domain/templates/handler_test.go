package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func fixturePNGBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture png: %v", err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc, _, _ := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

func multipartPDF(t *testing.T, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", "upload.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestHandler_CreateAndGet(t *testing.T) {
	e, _ := newTestServer(t)

	body, contentType := multipartPDF(t, fixturePDF(t, 1), map[string]string{
		"name":       "Discharge Form",
		"created_by": "jsilva",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created Template
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Name != "Discharge Form" || created.PageCount != 1 {
		t.Errorf("unexpected response: %+v", created)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/templates/1", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
}

func TestHandler_CreateRejectsGarbage(t *testing.T) {
	e, _ := newTestServer(t)

	body, contentType := multipartPDF(t, []byte("not a pdf"), map[string]string{"name": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_CreateRequiresFile(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_NotFoundMapping(t *testing.T) {
	e, _ := newTestServer(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/templates/42"},
		{http.MethodGet, "/api/v1/templates/42/pdf"},
		{http.MethodDelete, "/api/v1/templates/42"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestHandler_InvalidID(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_FieldsRoundTrip(t *testing.T) {
	e, svc := newTestServer(t)
	created := mustCreate(t, svc, fixturePDF(t, 1))

	payload := `{"fields":[{"field_id":"patient_name","name":"Patient Name","type":"text","x":100,"y":200,"width":150,"height":20,"font_size":12}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/templates/1/fields", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/templates/1/fields", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	fields, err := svc.GetFields(context.Background(), created.ID)
	if err != nil || len(fields) != 1 || fields[0].ID != "patient_name" {
		t.Errorf("fields not persisted: (%+v, %v)", fields, err)
	}
}

func TestHandler_SaveFieldsRejectsBadGeometry(t *testing.T) {
	e, svc := newTestServer(t)
	mustCreate(t, svc, fixturePDF(t, 1))

	payload := `{"fields":[{"field_id":"x","name":"X","type":"teleport","x":0,"y":0,"width":100,"height":20}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/templates/1/fields", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_Generate(t *testing.T) {
	e, svc := newTestServer(t)
	mustCreate(t, svc, fixturePDF(t, 1))
	fields := `{"fields":[{"field_id":"patient_name","name":"Patient Name","type":"text","x":100,"y":200,"width":150,"height":20}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/templates/1/fields", strings.NewReader(fields))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save fields: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/templates/1/generate",
		strings.NewReader(`{"form_data":{"patient_name":"Jane Doe"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF")
	}
}

func TestHandler_Duplicate(t *testing.T) {
	e, svc := newTestServer(t)
	mustCreate(t, svc, fixturePDF(t, 1))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates/1/duplicate",
		strings.NewReader(`{"created_by":"jsilva"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var dup Template
	if err := json.Unmarshal(rec.Body.Bytes(), &dup); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasSuffix(dup.Name, " (Copy)") {
		t.Errorf("Name = %q, want Copy suffix", dup.Name)
	}
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	e, svc := newTestServer(t)
	mustCreate(t, svc, fixturePDF(t, 1))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/templates/1",
		strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated Template
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", updated.Name)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/templates/1", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	// Default listing no longer shows it.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var summaries []Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("deleted template still listed: %+v", summaries)
	}
}

func TestHandler_IngestImage(t *testing.T) {
	e, _ := newTestServer(t)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", "sig.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(fixturePNGBytes(t, 50, 20)); err != nil {
		t.Fatalf("write image: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp["data_url"], "data:image/png;base64,") {
		t.Errorf("unexpected data_url: %.40s", resp["data_url"])
	}
}
