package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/strata-gfx/strata/pkg/engine"
	"github.com/strata-gfx/strata/pkg/layer"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	e, err := engine.New([]layer.State{
		{ID: 1, Name: "wallpaper", Z: 0, Visible: true},
		{ID: 2, Name: "app", Parent: 1, Z: 2, Visible: true},
		{ID: 3, Name: "status-bar", Parent: 1, Z: 1, Visible: true},
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return New(e)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	rec := get(t, testServer(t), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Request-Id"); got == "" {
		t.Error("response has no request id header")
	}
}

func TestHierarchy(t *testing.T) {
	rec := get(t, testServer(t), "/v1/hierarchy")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Root struct {
			Name     string `json:"name"`
			Children []struct {
				Layer    uint32 `json:"layer"`
				Children []struct {
					Layer uint32 `json:"layer"`
				} `json:"children"`
			} `json:"children"`
		} `json:"root"`
	}
	decodeBody(t, rec, &resp)

	if resp.Root.Name != "root" {
		t.Errorf("root name = %q, want root", resp.Root.Name)
	}
	if len(resp.Root.Children) != 1 || resp.Root.Children[0].Layer != 1 {
		t.Fatalf("root children = %+v, want layer 1", resp.Root.Children)
	}
	if got := len(resp.Root.Children[0].Children); got != 2 {
		t.Errorf("layer 1 has %d children, want 2", got)
	}
}

func TestSubtree(t *testing.T) {
	s := testServer(t)

	rec := get(t, s, "/v1/hierarchy/2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var tree struct {
		Layer uint32 `json:"layer"`
		Name  string `json:"name"`
	}
	decodeBody(t, rec, &tree)
	if tree.Layer != 2 || tree.Name != "app" {
		t.Errorf("subtree root = %+v, want layer 2 app", tree)
	}

	if rec := get(t, s, "/v1/hierarchy/99"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown layer status = %d, want 404", rec.Code)
	}
	if rec := get(t, s, "/v1/hierarchy/zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestZOrder(t *testing.T) {
	s := testServer(t)

	rec := get(t, s, "/v1/zorder?display=0")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Display uint32 `json:"display"`
		Entries []struct {
			Layer uint32 `json:"layer"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &resp)

	want := []uint32{1, 3, 2}
	if len(resp.Entries) != len(want) {
		t.Fatalf("entries = %+v, want layers %v", resp.Entries, want)
	}
	for i, e := range resp.Entries {
		if e.Layer != want[i] {
			t.Errorf("entries[%d].Layer = %d, want %d", i, e.Layer, want[i])
		}
	}

	if rec := get(t, s, "/v1/zorder?display=nope"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad display status = %d, want 400", rec.Code)
	}
}

func TestValidate(t *testing.T) {
	s := testServer(t)

	rec := get(t, s, "/v1/validate")
	var resp struct {
		OK        bool   `json:"ok"`
		LoopLayer uint32 `json:"loop_layer"`
	}
	decodeBody(t, rec, &resp)
	if !resp.OK {
		t.Error("validate reports a loop on a clean scene")
	}

	// Introduce a relative loop, then re-validate.
	post := httptest.NewRequest(http.MethodPost, "/v1/transactions", strings.NewReader(`{
		"name": "loop",
		"create": [
			{"id": 4, "parent": 1, "relative_parent": 5, "z": 1, "visible": true},
			{"id": 5, "parent": 1, "relative_parent": 4, "z": 2, "visible": true}
		]
	}`))
	postRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(postRec, post)
	if postRec.Code != http.StatusOK {
		t.Fatalf("transaction status = %d: %s", postRec.Code, postRec.Body.String())
	}

	rec = get(t, s, "/v1/validate")
	decodeBody(t, rec, &resp)
	if resp.OK {
		t.Error("validate reports clean after loop transaction")
	}
	if resp.LoopLayer != 4 && resp.LoopLayer != 5 {
		t.Errorf("loop_layer = %d, want a loop member", resp.LoopLayer)
	}
}

func TestTransactions(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/transactions", strings.NewReader(`{
		"name": "open-dialog",
		"create": [{"id": 4, "name": "dialog", "parent": 2, "z": 1, "visible": true}],
		"destroy": [3]
	}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Changed   int `json:"changed"`
		Destroyed int `json:"destroyed"`
		Nodes     int `json:"nodes"`
	}
	decodeBody(t, rec, &resp)
	if resp.Changed != 1 || resp.Destroyed != 1 {
		t.Errorf("result = %+v, want changed 1 destroyed 1", resp)
	}
	if resp.Nodes != 3 {
		t.Errorf("nodes = %d, want 3", resp.Nodes)
	}
}

func TestTransactions_Invalid(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/transactions", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/transactions", strings.NewReader(`{"destroy": [99]}`))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown destroy status = %d, want 400", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error.Code != "INVALID_TRANSACTION" {
		t.Errorf("error code = %q, want INVALID_TRANSACTION", resp.Error.Code)
	}
}

func TestRenderSVG(t *testing.T) {
	if testing.Short() {
		t.Skip("graphviz rendering is slow")
	}
	rec := get(t, testServer(t), "/v1/render.svg")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Errorf("content type = %q, want image/svg+xml", got)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("response does not look like SVG")
	}
}
