package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"strings"
	"testing"

	"menu_translator/vision_agent"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

type fakeVisionClient struct {
	result vision_agent.GenerateResult
	err    error
	calls  int
	last   vision_agent.GenerateRequest
}

func (f *fakeVisionClient) Generate(_ context.Context, req vision_agent.GenerateRequest) (vision_agent.GenerateResult, error) {
	f.calls++
	f.last = req
	return f.result, f.err
}

type fakeLister struct {
	names []string
	err   error
	calls int
}

func (f *fakeLister) ListFoods(context.Context, string, string) ([]string, error) {
	f.calls++
	return f.names, f.err
}

type formFile struct {
	contentType string
	data        []byte
}

func newForm(t *testing.T, fields map[string]string, file *formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="menu.png"`)
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(file.data)
	}
	_ = w.Close()
	return body, w.FormDataContentType()
}

func newEngine(h *VisionHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/translate", h.TranslateHandle)
	r.POST("/api/recognize", h.RecognizeHandle)
	return r
}

func doForm(t *testing.T, r http.Handler, path string, fields map[string]string, file *formFile) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body, contentType := newForm(t, fields, file)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %q", w.Body.String())
	}
	return w, decoded
}

func pngFile() *formFile {
	return &formFile{contentType: "image/png", data: pngBytes}
}

func TestRecognizeReturnsFoodList(t *testing.T) {
	client := &fakeVisionClient{result: vision_agent.GenerateResult{
		ImageMIMEType: "image/png",
		ImageBase64:   "TEFCRUxFRA==",
		Text:          `["Apple","Rice"]`,
	}}
	r := newEngine(NewVisionHandler(client, nil, 1<<20))

	w, body := doForm(t, r, "/api/recognize", map[string]string{"toLang": "English"}, pngFile())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["imageDataUrl"] != "data:image/png;base64,TEFCRUxFRA==" {
		t.Errorf("imageDataUrl = %v", body["imageDataUrl"])
	}
	if got := body["foodList"]; !reflect.DeepEqual(got, []interface{}{"Apple", "Rice"}) {
		t.Errorf("foodList = %v", got)
	}
	if client.last.MIMEType != "image/png" || !strings.Contains(client.last.Prompt, "English") {
		t.Errorf("request = %+v", client.last)
	}
}

func TestTranslateWithLanguageName(t *testing.T) {
	client := &fakeVisionClient{result: vision_agent.GenerateResult{
		ImageMIMEType: "image/jpeg",
		ImageBase64:   "Q0FGRQ==",
		Text:          "OK",
	}}
	r := newEngine(NewVisionHandler(client, nil, 1<<20))

	w, body := doForm(t, r, "/api/translate",
		map[string]string{"toLang": "French", "fromLang": "ja"},
		&formFile{contentType: "image/jpeg", data: []byte("fake jpeg bytes")})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if body["textResponse"] != "OK" {
		t.Errorf("textResponse = %v", body["textResponse"])
	}
	if _, ok := body["foodList"]; ok {
		t.Error("translate must not return foodList")
	}
	if !strings.Contains(client.last.Prompt, "French") || !strings.Contains(client.last.Prompt, "Japanese") {
		t.Errorf("prompt should name both languages: %q", client.last.Prompt)
	}
	if client.last.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q", client.last.MIMEType)
	}
}

func TestVisionRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		fields map[string]string
		file   *formFile
		status int
	}{
		{"missing image", "/api/translate", map[string]string{"toLang": "en"}, nil, http.StatusBadRequest},
		{"missing language", "/api/recognize", nil, pngFile(), http.StatusBadRequest},
		{"unsupported language", "/api/recognize", map[string]string{"toLang": "Klingon"}, pngFile(), http.StatusBadRequest},
		{"unsupported source", "/api/translate", map[string]string{"toLang": "en", "fromLang": "xx-invalid"}, pngFile(), http.StatusBadRequest},
		{"not an image", "/api/translate", map[string]string{"toLang": "en"}, &formFile{contentType: "text/plain", data: []byte("hello")}, http.StatusBadRequest},
		{"too large", "/api/recognize", map[string]string{"toLang": "en"}, &formFile{contentType: "image/png", data: bytes.Repeat([]byte{1}, 4096)}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeVisionClient{}
			r := newEngine(NewVisionHandler(client, nil, 1024))

			w, body := doForm(t, r, tt.path, tt.fields, tt.file)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.status, w.Body.String())
			}
			if body["success"] != false || body["error"] == "" {
				t.Errorf("body = %v", body)
			}
			if client.calls != 0 {
				t.Errorf("vision client called %d times for rejected input", client.calls)
			}
		})
	}
}

func TestVisionMissingAPIKey(t *testing.T) {
	r := newEngine(NewVisionHandler(nil, nil, 1<<20))

	w, _ := doForm(t, r, "/api/translate", map[string]string{"toLang": "en"}, pngFile())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestVisionUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"rate limited", &vision_agent.UpstreamError{StatusCode: 429, Message: "quota"}, http.StatusTooManyRequests},
		{"unauthorized", &vision_agent.UpstreamError{StatusCode: 401, Message: "bad key"}, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("wrapped: %w", &vision_agent.UpstreamError{StatusCode: 403}), http.StatusUnauthorized},
		{"no candidates", vision_agent.ErrNoCandidates, http.StatusInternalServerError},
		{"other", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(NewVisionHandler(&fakeVisionClient{err: tt.err}, nil, 1<<20))

			w, body := doForm(t, r, "/api/recognize", map[string]string{"toLang": "en"}, pngFile())
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if body["details"] == nil || body["details"] == "" {
				t.Errorf("details missing: %v", body)
			}
		})
	}
}

func TestVisionNoImageReturnsText(t *testing.T) {
	client := &fakeVisionClient{result: vision_agent.GenerateResult{Text: "I can only describe this menu."}}
	r := newEngine(NewVisionHandler(client, nil, 1<<20))

	w, body := doForm(t, r, "/api/translate", map[string]string{"toLang": "en"}, pngFile())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body["textResponse"] != "I can only describe this menu." {
		t.Errorf("textResponse = %v", body["textResponse"])
	}
	if !strings.Contains(body["error"].(string), "I can only describe this menu.") {
		t.Errorf("error should carry the model text: %v", body["error"])
	}
}

func TestRecognizeFoodListFallback(t *testing.T) {
	image := vision_agent.GenerateResult{ImageBase64: "AAAA", Text: "Here you go, I labeled the apple."}

	tests := []struct {
		name   string
		lister *fakeLister
		want   []interface{}
	}{
		{"no labeler", nil, []interface{}{}},
		{"labeler answers", &fakeLister{names: []string{"Apple"}}, []interface{}{"Apple"}},
		{"labeler fails", &fakeLister{err: errors.New("boom")}, []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lister FoodLister
			if tt.lister != nil {
				lister = tt.lister
			}
			r := newEngine(NewVisionHandler(&fakeVisionClient{result: image}, lister, 1<<20))

			w, body := doForm(t, r, "/api/recognize", map[string]string{"targetLang": "English"}, pngFile())
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if got := body["foodList"]; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("foodList = %#v, want %#v", got, tt.want)
			}
			if tt.lister != nil && tt.lister.calls != 1 {
				t.Errorf("labeler calls = %d, want 1", tt.lister.calls)
			}
		})
	}
}

func TestRecognizeSkipsLabelerWhenArrayParsed(t *testing.T) {
	lister := &fakeLister{names: []string{"ignored"}}
	client := &fakeVisionClient{result: vision_agent.GenerateResult{ImageBase64: "AAAA", Text: "```json\n[]\n```"}}
	r := newEngine(NewVisionHandler(client, lister, 1<<20))

	w, body := doForm(t, r, "/api/recognize", map[string]string{"toLang": "en"}, pngFile())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := body["foodList"]; !reflect.DeepEqual(got, []interface{}{}) {
		t.Errorf("foodList = %#v, want empty array", got)
	}
	if lister.calls != 0 {
		t.Errorf("labeler should not run when the model returned an array")
	}
}

func TestVisionAcceptsDataURLField(t *testing.T) {
	client := &fakeVisionClient{result: vision_agent.GenerateResult{ImageBase64: "AAAA"}}
	r := newEngine(NewVisionHandler(client, nil, 1<<20))

	dataURL := vision_agent.ImageDataURL("image/png", vision_agent.EncodeImage(pngBytes))
	w, _ := doForm(t, r, "/api/translate", map[string]string{"toLang": "de", "image": dataURL}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if client.last.ImageBase64 != vision_agent.EncodeImage(pngBytes) {
		t.Errorf("ImageBase64 = %q", client.last.ImageBase64)
	}
}
