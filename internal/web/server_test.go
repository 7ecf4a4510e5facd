package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/masterdata/internal/config"
	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/history"
	"github.com/JonMunkholm/masterdata/internal/masterdata"
)

// fakeMasterData is an in-process master-data API.
type fakeMasterData struct {
	mu     sync.Mutex
	posts  []postedRecord
	failOn int // 1-based POST that fails with 400; 0 never fails
	rows   []map[string]any
}

type postedRecord struct {
	Path string
	Body map[string]any
}

func (f *fakeMasterData) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.rows)
		return
	}

	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	f.posts = append(f.posts, postedRecord{Path: r.URL.Path, Body: body})
	if f.failOn > 0 && len(f.posts) == f.failOn {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message":"item_code already exists"}`)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeMasterData) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 10 * time.Second},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20, Timeout: 10 * time.Second, SessionTTL: time.Hour},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

type testEnv struct {
	server *Server
	api    *fakeMasterData
	store  *history.MemoryStore
	cookie *http.Cookie
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	api := &fakeMasterData{}
	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)

	client, err := masterdata.New(apiServer.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("masterdata.New: %v", err)
	}
	store := history.NewMemoryStore(10)
	svc := core.NewService(client, store, core.Options{UploadTimeout: cfg.Upload.Timeout})

	return &testEnv{server: NewServer(svc, cfg), api: api, store: store}
}

// do sends req, carrying the session cookie between calls.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) postJSON(path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) postFile(path, name, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", name)
	io.WriteString(fw, content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) core.Snapshot {
	t.Helper()
	var snap core.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v\n%s", err, rec.Body.String())
	}
	return snap
}

const itemsCSV = "item_code,item_description\nA1,Widget\nA2,Gadget\n"

func TestImportFlow_JSON(t *testing.T) {
	env := newTestEnv(t, testConfig())

	if rec := env.postJSON("/api/import/target", map[string]string{"target": "items"}); rec.Code != http.StatusOK {
		t.Fatalf("select target = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.postFile("/api/import/file", "items.csv", itemsCSV); rec.Code != http.StatusOK {
		t.Fatalf("select file = %d: %s", rec.Code, rec.Body.String())
	}

	rec := env.postJSON("/api/import/parse", core.ParseOptions{Header: true, Encoding: "utf-8"})
	if rec.Code != http.StatusOK {
		t.Fatalf("parse = %d: %s", rec.Code, rec.Body.String())
	}
	snap := decodeSnapshot(t, rec)
	if snap.State != core.StateData || len(snap.Records) != 2 {
		t.Fatalf("state = %s with %d records, want data with 2", snap.State, len(snap.Records))
	}

	rec = env.postJSON("/api/import/upload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	snap = decodeSnapshot(t, rec)
	if snap.Notice != core.MsgUploadSucceeded {
		t.Errorf("notice = %q, want %q", snap.Notice, core.MsgUploadSucceeded)
	}

	if env.api.count() != 2 {
		t.Fatalf("API received %d records, want 2", env.api.count())
	}
	first := env.api.posts[0]
	if first.Path != "/items" {
		t.Errorf("path = %q, want /items", first.Path)
	}
	if first.Body["item_code"] != "A1" {
		t.Errorf("item_code = %v, want A1", first.Body["item_code"])
	}
	if _, ok := first.Body["created_at"].(string); !ok {
		t.Errorf("created_at missing: %v", first.Body)
	}
	if v, ok := first.Body["deleted_at"]; !ok || v != nil {
		t.Errorf("deleted_at = %v (present %v), want explicit null", v, ok)
	}

	runs, _ := env.store.Recent(t.Context(), 0)
	if len(runs) != 1 || runs[0].Status != history.StatusSucceeded || runs[0].Submitted != 2 {
		t.Errorf("history = %+v, want one succeeded run of 2", runs)
	}
}

func TestFormPost_RedirectsAndSetsCookie(t *testing.T) {
	env := newTestEnv(t, testConfig())

	form := url.Values{"target": {"process"}}
	req := httptest.NewRequest(http.MethodPost, "/import/target", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if env.cookie == nil || env.cookie.Value == "" || !env.cookie.HttpOnly {
		t.Fatalf("session cookie = %+v", env.cookie)
	}

	page := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if page.Code != http.StatusOK {
		t.Fatalf("page = %d", page.Code)
	}
	if !strings.Contains(page.Body.String(), `value="process" class="selected"`) {
		t.Errorf("page does not show selected target")
	}
}

func TestParseForm_HeaderUnchecked(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.postFile("/api/import/file", "raw.csv", "a,b\nc,d\n")

	form := url.Values{"encoding": {"utf-8"}}
	req := httptest.NewRequest(http.MethodPost, "/import/parse", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rec := env.do(req); rec.Code != http.StatusSeeOther {
		t.Fatalf("parse = %d, want 303", rec.Code)
	}

	state := env.do(httptest.NewRequest(http.MethodGet, "/api/import/state", nil))
	snap := decodeSnapshot(t, state)
	if len(snap.Records) != 2 {
		t.Fatalf("records = %d, want 2 with header off", len(snap.Records))
	}
	if snap.Records[0]["0"] != "a" {
		t.Errorf("record[0][\"0\"] = %v, want a", snap.Records[0]["0"])
	}
}

func TestParseJSON_HeaderDefaultsOff(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.postFile("/api/import/file", "raw.csv", "a,b\nc,d\n")

	rec := env.postJSON("/api/import/parse", map[string]string{"encoding": "utf-8"})
	if rec.Code != http.StatusOK {
		t.Fatalf("parse = %d: %s", rec.Code, rec.Body.String())
	}
	snap := decodeSnapshot(t, rec)
	if snap.Options.Header || len(snap.Records) != 2 {
		t.Fatalf("header = %v, records = %d; want positional parse of 2 rows", snap.Options.Header, len(snap.Records))
	}
}

func TestUpload_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(e *testEnv)
		wantMsg string
	}{
		{
			name:    "no target",
			setup:   func(e *testEnv) {},
			wantMsg: core.MsgSelectTarget,
		},
		{
			name: "no data",
			setup: func(e *testEnv) {
				e.postJSON("/api/import/target", map[string]string{"target": "items"})
			},
			wantMsg: core.MsgNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig())
			tt.setup(env)

			rec := env.postJSON("/api/import/upload", nil)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			snap := decodeSnapshot(t, rec)
			if len(snap.Errors) != 1 || snap.Errors[0].Message != tt.wantMsg {
				t.Errorf("errors = %+v, want %q", snap.Errors, tt.wantMsg)
			}
			if env.api.count() != 0 {
				t.Errorf("API received %d records, want 0", env.api.count())
			}
		})
	}
}

func TestUpload_FailFast(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.api.failOn = 1

	env.postJSON("/api/import/target", map[string]string{"target": "items"})
	env.postFile("/api/import/file", "items.csv", itemsCSV)
	env.postJSON("/api/import/parse", core.ParseOptions{Header: true})

	rec := env.postJSON("/api/import/upload", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	snap := decodeSnapshot(t, rec)
	if len(snap.Errors) != 1 || snap.Errors[0].Message != "item_code already exists" {
		t.Errorf("errors = %+v, want server message", snap.Errors)
	}
	if len(snap.Records) != 2 {
		t.Errorf("records kept = %d, want 2", len(snap.Records))
	}
	if env.api.count() != 1 {
		t.Errorf("API received %d records, want 1", env.api.count())
	}

	runs, _ := env.store.Recent(t.Context(), 0)
	if len(runs) != 1 || runs[0].Status != history.StatusFailed {
		t.Errorf("history = %+v, want one failed run", runs)
	}
}

func TestSelectTarget_Errors(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.postJSON("/api/import/target", map[string]string{"target": "items"})

	tests := []struct {
		target     string
		wantStatus int
		wantCode   string
	}{
		{"process", http.StatusConflict, "SES002"},
		{"widgets", http.StatusBadRequest, "SES003"},
	}
	for _, tt := range tests {
		rec := env.postJSON("/api/import/target", map[string]string{"target": tt.target})
		if rec.Code != tt.wantStatus {
			t.Errorf("target %q: status = %d, want %d", tt.target, rec.Code, tt.wantStatus)
			continue
		}
		var resp ErrorResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Code != tt.wantCode {
			t.Errorf("target %q: code = %q, want %q", tt.target, resp.Code, tt.wantCode)
		}
	}

	// Same target again is a no-op.
	if rec := env.postJSON("/api/import/target", map[string]string{"target": "items"}); rec.Code != http.StatusOK {
		t.Errorf("reselect = %d, want 200", rec.Code)
	}
}

func TestSelectFile_Errors(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.postFile("/api/import/file", "notes.txt", "hello")
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("unsupported = %d, want 415", rec.Code)
	}
	snap := decodeSnapshot(t, rec)
	if len(snap.Errors) != 1 || !strings.Contains(snap.Errors[0].Message, `".txt"`) {
		t.Errorf("errors = %+v", snap.Errors)
	}

	if rec := env.postFile("/api/import/file", "empty.csv", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty file = %d, want 400", rec.Code)
	}

	big := strings.Repeat("x", 3<<19)
	if rec := env.postFile("/api/import/file", "big.csv", big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large file = %d, want 413", rec.Code)
	}
}

func TestCancelAndReset(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.postJSON("/api/import/target", map[string]string{"target": "items"})
	env.postFile("/api/import/file", "items.csv", itemsCSV)
	env.postJSON("/api/import/parse", core.ParseOptions{Header: true})

	snap := decodeSnapshot(t, env.postJSON("/api/import/cancel", nil))
	if snap.FileName != "" || len(snap.Records) != 0 || snap.Target != core.TargetItems {
		t.Errorf("after cancel: %+v", snap)
	}

	oldID := snap.ID
	snap = decodeSnapshot(t, env.postJSON("/api/import/reset", nil))
	if snap.ID == oldID || snap.Target != "" {
		t.Errorf("after reset: id %q (old %q), target %q", snap.ID, oldID, snap.Target)
	}
	if env.cookie.Value != snap.ID {
		t.Errorf("cookie = %q, want new session %q", env.cookie.Value, snap.ID)
	}
}

func TestReadOnlyRequests_DoNotCreateSessions(t *testing.T) {
	env := newTestEnv(t, testConfig())

	for _, path := range []string{"/", "/api/import/state"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
		if c := rec.Header().Get("Set-Cookie"); c != "" {
			t.Errorf("GET %s set cookie %q", path, c)
		}
	}
	if n := env.server.service.SessionCount(); n != 0 {
		t.Errorf("SessionCount = %d after read-only requests, want 0", n)
	}

	snap := decodeSnapshot(t, env.do(httptest.NewRequest(http.MethodGet, "/api/import/state", nil)))
	if snap.State != core.StateReady || snap.ID != "" {
		t.Errorf("empty state = %+v", snap)
	}

	env.postJSON("/api/import/target", map[string]string{"target": "items"})
	if n := env.server.service.SessionCount(); n != 1 {
		t.Errorf("SessionCount = %d after selecting a target, want 1", n)
	}
	if snap := decodeSnapshot(t, env.do(httptest.NewRequest(http.MethodGet, "/api/import/state", nil))); snap.Target != core.TargetItems {
		t.Errorf("state target = %q, want items", snap.Target)
	}
}

func TestDownloadTemplate(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.api.rows = []map[string]any{{"item_code": "A1", "item_description": "Widget"}}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/templates/items?format=csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="items-template.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if body := rec.Body.String(); !strings.HasPrefix(body, "item_code,item_description\nA1,Widget") {
		t.Errorf("body = %q", body)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/templates/widgets", http.StatusNotFound},
		{"/api/templates/items?format=json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil)); rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestPages(t *testing.T) {
	env := newTestEnv(t, testConfig())

	tests := []struct {
		path string
		want string
	}{
		{"/", "Bulk Data Upload"},
		{"/templates", "Download Templates"},
		{"/history", "No imports yet."},
	}
	for _, tt := range tests {
		rec := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", tt.path, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s Content-Type = %q", tt.path, ct)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("GET %s missing %q", tt.path, tt.want)
		}
	}
}

func TestImportPage_EscapesRecords(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.postFile("/api/import/file", "x.csv", "name\n<script>alert(1)</script>\n")
	env.postJSON("/api/import/parse", core.ParseOptions{Header: true})

	body := env.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if strings.Contains(body, "<script>alert") {
		t.Error("record content rendered unescaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("escaped record content missing")
	}
}

func TestHistoryAPI(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.store.Record(t.Context(), history.Run{
		Target:     "items",
		FileName:   "a.csv",
		Records:    3,
		Submitted:  3,
		Status:     history.StatusSucceeded,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Runs []history.Run `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].FileName != "a.csv" {
		t.Errorf("runs = %+v", resp.Runs)
	}
}

func TestHistoryLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", defaultHistoryLimit},
		{"limit=abc", defaultHistoryLimit},
		{"limit=-1", defaultHistoryLimit},
		{"limit=10", 10},
		{"limit=100000", maxHistoryLimit},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/history?"+tt.query, nil)
		if got := historyLimit(r); got != tt.want {
			t.Errorf("historyLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "import_sessions_active") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	env := newTestEnv(t, cfg)

	var last *httptest.ResponseRecorder
	for range 3 {
		last = env.do(httptest.NewRequest(http.MethodGet, "/api/import/state", nil))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(last.Body.Bytes(), &resp)
	if resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path, accept string
		want         bool
	}{
		{"/api/import/state", "", true},
		{"/import/parse", "application/json", true},
		{"/import/parse", "text/html", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, tt.path, nil)
		if tt.accept != "" {
			r.Header.Set("Accept", tt.accept)
		}
		if got := wantsJSON(r); got != tt.want {
			t.Errorf("wantsJSON(%s, %q) = %v, want %v", tt.path, tt.accept, got, tt.want)
		}
	}
}
