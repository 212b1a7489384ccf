package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pet-skin-triage/internal/platform/logger"
	"pet-skin-triage/internal/ports/classifier"
	"pet-skin-triage/internal/ports/location"
	"pet-skin-triage/internal/ports/places"
)

// -------------------------
// Fake ports
// -------------------------

type fakeClassifier struct {
	outcome classifier.Outcome
	err     error
}

func (f *fakeClassifier) Classify(ctx context.Context, _ classifier.Submission) (classifier.Outcome, error) {
	return f.outcome, f.err
}

type fakeSearcher struct {
	refs []places.PlaceRef
}

func (f *fakeSearcher) NearbySearch(ctx context.Context, center places.LatLng, radius int, category string) ([]places.PlaceRef, error) {
	return f.refs, nil
}

func (f *fakeSearcher) Details(ctx context.Context, ref places.PlaceRef, fields []string) (places.Details, error) {
	return places.Details{Name: ref.Name, Address: "addr " + ref.ID, Phone: "02-555-0100", Rating: 4.4, OpenNow: true}, nil
}

type fakePositions struct{}

func (fakePositions) CurrentPosition(ctx context.Context, _ location.Options) (location.Coordinates, error) {
	return location.Coordinates{Lat: 37.50, Lng: 127.00}, nil
}

// -------------------------
// Helpers
// -------------------------

func confPtr(v float64) *float64 { return &v }

func newTestServer(t *testing.T, cls classifier.Classifier) *httptest.Server {
	t.Helper()
	h := NewRouter(Options{
		Classifier: cls,
		Searcher: &fakeSearcher{refs: []places.PlaceRef{
			{ID: "p1", Name: "Vet One", Lat: 37.501, Lng: 127.00},
			{ID: "p2", Name: "Vet Two", Lat: 37.505, Lng: 127.00},
		}},
		Positions: fakePositions{},
		Logger:    logger.Nop(),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, url, err, raw)
		}
	}
	return resp, decoded
}

func postPhoto(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 80, A: 255})
		}
	}
	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("photo", "capture.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(jpegBuf.Bytes()); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	for k, v := range map[string]string{
		"crop_x": "20", "crop_y": "20", "crop_size": "150",
		"view_width": "320", "view_height": "240",
	} {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post photo: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func sessionState(t *testing.T, m map[string]any) string {
	t.Helper()
	s, _ := m["state"].(string)
	return s
}

// -------------------------
// Tests
// -------------------------

func TestWizard_HappyPathEndToEnd(t *testing.T) {
	cls := &fakeClassifier{outcome: classifier.Outcome{
		Status: classifier.StatusOK,
		Payload: classifier.Payload{
			DiseaseName: "atopic dermatitis",
			Confidence:  confPtr(0.87),
			Description: "chronic itching",
		},
	}}
	srv := newTestServer(t, cls)

	// Health primero.
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}

	// Abrir sesión.
	resp, sess := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"locale": "es"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start = %d", resp.StatusCode)
	}
	id, _ := sess["id"].(string)
	if id == "" {
		t.Fatal("missing session id")
	}
	if sessionState(t, sess) != "collecting_profile" {
		t.Fatalf("state = %s", sessionState(t, sess))
	}
	base := srv.URL + "/sessions/" + id

	// Perfil.
	resp, sess = doJSON(t, http.MethodPost, base+"/profile", map[string]any{
		"pet_name":   "Milo",
		"birth_date": "2021-03-14",
		"breed":      "beagle",
		"weight":     "9.5",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile = %d", resp.StatusCode)
	}
	if sessionState(t, sess) != "collecting_symptoms" {
		t.Fatalf("state = %s", sessionState(t, sess))
	}

	// Síntomas (dispara posición + descubrimiento en background).
	resp, sess = doJSON(t, http.MethodPost, base+"/symptoms", map[string]any{
		"pruritus_level": 6,
		"odor_present":   true,
		"hair_loss":      true,
		"affected_areas": []string{"ears", "belly"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("symptoms = %d", resp.StatusCode)
	}
	if sessionState(t, sess) != "awaiting_image" {
		t.Fatalf("state = %s", sessionState(t, sess))
	}

	// Foto.
	resp, sess = postPhoto(t, base+"/photo")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("photo = %d", resp.StatusCode)
	}
	if hasImage, _ := sess["has_image"].(bool); !hasImage {
		t.Fatal("has_image should be true after photo")
	}

	// Submit.
	resp, body := doJSON(t, http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit = %d", resp.StatusCode)
	}
	if outcome, _ := body["outcome"].(string); outcome != "diagnosed" {
		t.Fatalf("outcome = %v", body["outcome"])
	}
	inner, _ := body["session"].(map[string]any)
	if sessionState(t, inner) != "showing_diagnosis" {
		t.Fatalf("state = %s", sessionState(t, inner))
	}

	// Providers rankeados (el descubrimiento corre en background).
	waitForProviders(t, base+"/providers", 2)

	// Resultado agregado.
	resp, body = doJSON(t, http.MethodGet, base+"/result", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result = %d", resp.StatusCode)
	}
	diag, _ := body["diagnosis"].(map[string]any)
	if diag["condition_name"] != "atopic dermatitis" {
		t.Fatalf("diagnosis = %v", diag)
	}
	if pct, _ := diag["confidence_percent"].(float64); pct != 87 {
		t.Fatalf("confidence_percent = %v", diag["confidence_percent"])
	}

	// Export PNG.
	exportResp, err := http.Get(base + "/result/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer exportResp.Body.Close()
	if exportResp.StatusCode != http.StatusOK {
		t.Fatalf("export = %d", exportResp.StatusCode)
	}
	if ct := exportResp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("export content-type = %s", ct)
	}
	if _, err := png.Decode(exportResp.Body); err != nil {
		t.Fatalf("export not decodable png: %v", err)
	}

	// Cierre y restart.
	resp, sess = doJSON(t, http.MethodPost, base+"/complete", nil)
	if resp.StatusCode != http.StatusOK || sessionState(t, sess) != "complete" {
		t.Fatalf("complete = %d state=%s", resp.StatusCode, sessionState(t, sess))
	}
	resp, sess = doJSON(t, http.MethodPost, base+"/restart", nil)
	if resp.StatusCode != http.StatusOK || sessionState(t, sess) != "collecting_profile" {
		t.Fatalf("restart = %d state=%s", resp.StatusCode, sessionState(t, sess))
	}
	record, _ := sess["record"].(map[string]any)
	if record["pet_name"] != "" {
		t.Fatalf("restart must clear record, got %v", record)
	}
}

func TestWizard_RejectionFlow(t *testing.T) {
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusRejected}}
	srv := newTestServer(t, cls)

	_, sess := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	id, _ := sess["id"].(string)
	base := srv.URL + "/sessions/" + id

	doJSON(t, http.MethodPost, base+"/profile", map[string]any{
		"pet_name": "Luna", "birth_date": "2020-01-01", "breed": "poodle", "weight": "4",
	})
	doJSON(t, http.MethodPost, base+"/symptoms", map[string]any{
		"pruritus_level": 3, "affected_areas": []string{"head"},
	})
	postPhoto(t, base+"/photo")

	resp, body := doJSON(t, http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit = %d", resp.StatusCode)
	}
	if outcome, _ := body["outcome"].(string); outcome != "rejected" {
		t.Fatalf("outcome = %v", body["outcome"])
	}

	inner, _ := body["session"].(map[string]any)
	if sessionState(t, inner) != "awaiting_image" {
		t.Fatalf("state after rejection = %s", sessionState(t, inner))
	}
	if hasImage, _ := inner["has_image"].(bool); hasImage {
		t.Fatal("rejected image must be discarded")
	}
	record, _ := inner["record"].(map[string]any)
	if record["pet_name"] != "Luna" {
		t.Fatalf("record must survive rejection, got %v", record)
	}

	// El resultado todavía no existe.
	resp, _ = doJSON(t, http.MethodGet, base+"/result", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("result before diagnosis = %d", resp.StatusCode)
	}
}

func TestWizard_PushedPositionRanksProviders(t *testing.T) {
	srv := newTestServer(t, &fakeClassifier{})

	_, sess := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	id, _ := sess["id"].(string)
	base := srv.URL + "/sessions/" + id

	resp, sess := doJSON(t, http.MethodPost, base+"/position", map[string]any{"lat": 37.50, "lng": 127.00})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("position = %d", resp.StatusCode)
	}
	if sess["position"] == nil {
		t.Fatal("position not persisted")
	}

	providers := waitForProviders(t, base+"/providers", 2)
	first, _ := providers[0].(map[string]any)
	if first["id"] != "p1" {
		t.Fatalf("nearest provider = %v", first["id"])
	}
	if first["address"] == "" {
		t.Fatal("provider missing enriched address")
	}
}

func TestWizard_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, &fakeClassifier{})

	// Sesión inexistente.
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/sessions/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session = %d", resp.StatusCode)
	}

	_, sess := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	id, _ := sess["id"].(string)
	base := srv.URL + "/sessions/" + id

	// Validación: breed desconocida => 422 con field.
	resp, body := doJSON(t, http.MethodPost, base+"/profile", map[string]any{
		"pet_name": "X", "birth_date": "2020-01-01", "breed": "dragon", "weight": "1",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid breed = %d", resp.StatusCode)
	}
	if body["field"] != "breed" {
		t.Fatalf("field = %v", body["field"])
	}

	// Transición inválida: submit desde collecting_profile (sin imagen) => 422,
	// y un evento fuera de orden => 409.
	resp, _ = doJSON(t, http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("submit without image = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/complete", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("complete from first step = %d", resp.StatusCode)
	}

	// Body malformado.
	req, _ := http.NewRequest(http.MethodPost, base+"/profile", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rawResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	rawResp.Body.Close()
	if rawResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body = %d", rawResp.StatusCode)
	}
}

func TestWizard_OversizedPhotoRejected(t *testing.T) {
	srv := newTestServer(t, &fakeClassifier{})

	_, sess := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	id, _ := sess["id"].(string)
	base := srv.URL + "/sessions/" + id

	doJSON(t, http.MethodPost, base+"/profile", map[string]any{
		"pet_name": "Max", "birth_date": "2022-02-02", "breed": "bulldog", "weight": "18",
	})
	doJSON(t, http.MethodPost, base+"/symptoms", map[string]any{"pruritus_level": 4})

	// Un byte por encima del límite: debe rechazarse, no truncarse.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("photo", "huge.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(bytes.Repeat([]byte{0xab}, 10<<20+1)); err != nil {
		t.Fatalf("write oversized photo: %v", err)
	}
	for k, v := range map[string]string{
		"crop_x": "0", "crop_y": "0", "crop_size": "100",
		"view_width": "320", "view_height": "240",
	} {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	mw.Close()

	resp, err := http.Post(base+"/photo", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post photo: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized photo = %d, want 413", resp.StatusCode)
	}

	// La sesión sigue esperando imagen.
	_, sess = doJSON(t, http.MethodGet, base, nil)
	if sessionState(t, sess) != "awaiting_image" {
		t.Fatalf("state after rejected upload = %s", sessionState(t, sess))
	}
	if hasImage, _ := sess["has_image"].(bool); hasImage {
		t.Fatal("truncated upload must not be stored")
	}
}

func TestWizard_TransientSubmitFailure(t *testing.T) {
	cls := &fakeClassifier{err: fmt.Errorf("upstream down")}
	srv := newTestServer(t, cls)

	_, sess := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	id, _ := sess["id"].(string)
	base := srv.URL + "/sessions/" + id

	doJSON(t, http.MethodPost, base+"/profile", map[string]any{
		"pet_name": "Rex", "birth_date": "2019-06-01", "breed": "labrador", "weight": "28",
	})
	doJSON(t, http.MethodPost, base+"/symptoms", map[string]any{"pruritus_level": 2})
	postPhoto(t, base+"/photo")

	resp, body := doJSON(t, http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("transient failure = %d", resp.StatusCode)
	}
	if retryable, _ := body["retryable"].(bool); !retryable {
		t.Fatalf("expected retryable flag, got %v", body)
	}

	// La imagen sigue ahí: el retry no re-sube la foto.
	_, sess = doJSON(t, http.MethodGet, base, nil)
	if hasImage, _ := sess["has_image"].(bool); !hasImage {
		t.Fatal("image must survive a transient failure")
	}
}

func waitForProviders(t *testing.T, url string, want int) []any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, body := doJSON(t, http.MethodGet, url, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("providers = %d", resp.StatusCode)
		}
		if phase, _ := body["phase"].(string); phase == "ranked" {
			providers, _ := body["providers"].([]any)
			if len(providers) != want {
				t.Fatalf("expected %d providers, got %d", want, len(providers))
			}
			return providers
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("providers never ranked")
	return nil
}
