package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rowanvale/draftforge/internal/canvas"
	"github.com/rowanvale/draftforge/internal/testutil"
	"github.com/rowanvale/draftforge/internal/workspace"
)

func testRouter(t *testing.T, authToken string) http.Handler {
	t.Helper()
	svc, _ := testutil.TestService(t, nil)
	return NewRouter(svc, authToken != "", authToken, nil)
}

// doJSON issues a request with an optional body and workspace cookie.
func doJSON(t *testing.T, router http.Handler, method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func workspaceCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == WorkspaceCookie {
			return c
		}
	}
	t.Fatal("workspace cookie not set")
	return nil
}

func TestWorkspaceLatest_MintsCookie(t *testing.T) {
	router := testRouter(t, "")

	w := doJSON(t, router, http.MethodGet, "/workspace/latest", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	c := workspaceCookie(t, w)
	if c.Value == "" || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", c)
	}

	var resp WorkspaceLatestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.WorkspaceID != c.Value {
		t.Errorf("workspaceId = %q, cookie = %q", resp.WorkspaceID, c.Value)
	}
	if resp.Workspace.ID != c.Value {
		t.Errorf("workspace identity = %q", resp.Workspace.ID)
	}
}

func TestWorkspaceLatest_ReusesCookie(t *testing.T) {
	router := testRouter(t, "")

	first := doJSON(t, router, http.MethodGet, "/workspace/latest", nil, nil)
	c := workspaceCookie(t, first)

	second := doJSON(t, router, http.MethodGet, "/workspace/latest", nil, c)
	if second.Code != http.StatusOK {
		t.Fatalf("status = %d", second.Code)
	}
	for _, sc := range second.Result().Cookies() {
		if sc.Name == WorkspaceCookie {
			t.Error("cookie re-minted for a returning client")
		}
	}

	var resp WorkspaceLatestResponse
	_ = json.Unmarshal(second.Body.Bytes(), &resp)
	if resp.WorkspaceID != c.Value {
		t.Errorf("workspaceId = %q, want %q", resp.WorkspaceID, c.Value)
	}
}

func TestSaveNote_AppliesPatches(t *testing.T) {
	router := testRouter(t, "")

	w := doJSON(t, router, http.MethodPost, "/workspace/note", NoteSaveRequest{
		Patches: []canvas.Patch{
			{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "b1", Content: "an idea"}},
		},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp NoteSaveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Note.ID == "" {
		t.Error("note identity missing")
	}
	if len(resp.Note.Canvas.Blocks) != 1 {
		t.Errorf("blocks = %d, want 1", len(resp.Note.Canvas.Blocks))
	}
	if len(resp.AreaSummaries) != 1 {
		t.Errorf("areas = %d, want 1", len(resp.AreaSummaries))
	}
}

func TestSaveNote_RequiresPatches(t *testing.T) {
	router := testRouter(t, "")

	w := doJSON(t, router, http.MethodPost, "/workspace/note", NoteSaveRequest{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/workspace/note", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestRunLifecycle(t *testing.T) {
	router := testRouter(t, "")

	// Seed a note with content.
	saved := doJSON(t, router, http.MethodPost, "/workspace/note", NoteSaveRequest{
		Patches: []canvas.Patch{
			{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "b1", Content: "Plan a trail app. Maps and offline routes."}},
		},
	}, nil)
	cookie := workspaceCookie(t, saved)

	var savedResp NoteSaveResponse
	if err := json.Unmarshal(saved.Body.Bytes(), &savedResp); err != nil {
		t.Fatal(err)
	}
	areaID := savedResp.AreaSummaries[0].ID

	// Enqueue.
	created := doJSON(t, router, http.MethodPost, "/runs", RunCreateRequest{
		NoteID: savedResp.Note.ID,
		AreaID: areaID,
	}, cookie)
	if created.Code != http.StatusOK {
		t.Fatalf("enqueue status = %d, body = %s", created.Code, created.Body.String())
	}
	var createdResp RunCreateResponse
	if err := json.Unmarshal(created.Body.Bytes(), &createdResp); err != nil {
		t.Fatal(err)
	}
	if createdResp.AlreadyActive || createdResp.Skipped {
		t.Fatalf("flags = %+v", createdResp)
	}

	// Poll until the background pipeline lands on a terminal state.
	deadline := time.Now().Add(5 * time.Second)
	var run workspace.RunRecord
	for {
		polled := doJSON(t, router, http.MethodGet, "/runs/"+createdResp.Run.ID, nil, cookie)
		if polled.Code != http.StatusOK {
			t.Fatalf("poll status = %d", polled.Code)
		}
		var resp RunResponse
		if err := json.Unmarshal(polled.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		run = resp.Run
		if run.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run stuck in %q", run.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if run.Status != workspace.RunReady {
		t.Fatalf("status = %q (error %q), want ready", run.Status, run.Error)
	}
	if run.ProjectID == "" {
		t.Error("ready run missing project pointer")
	}

	// Re-enqueueing the unchanged area returns the cached ready run.
	again := doJSON(t, router, http.MethodPost, "/runs", RunCreateRequest{
		NoteID: savedResp.Note.ID,
		AreaID: areaID,
	}, cookie)
	var againResp RunCreateResponse
	if err := json.Unmarshal(again.Body.Bytes(), &againResp); err != nil {
		t.Fatal(err)
	}
	if !againResp.Skipped {
		t.Errorf("flags = %+v, want skipped", againResp)
	}
}

func TestCreateRun_Validation(t *testing.T) {
	router := testRouter(t, "")

	w := doJSON(t, router, http.MethodPost, "/runs", RunCreateRequest{NoteID: "", AreaID: ""}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/runs", RunCreateRequest{NoteID: "ghost", AreaID: "a"}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown note status = %d, want 404", w.Code)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	router := testRouter(t, "")
	w := doJSON(t, router, http.MethodGet, "/runs/ghost", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSetRepository_NotFound(t *testing.T) {
	router := testRouter(t, "")
	w := doJSON(t, router, http.MethodPut, "/projects/ghost/repository", RepositoryRequest{Repository: "octo/x"}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestShipEndpoints(t *testing.T) {
	router := testRouter(t, "")

	// Drive a run to ready so a project exists.
	saved := doJSON(t, router, http.MethodPost, "/workspace/note", NoteSaveRequest{
		Patches: []canvas.Patch{
			{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "b1", Content: "Shippable product idea."}},
		},
	}, nil)
	cookie := workspaceCookie(t, saved)
	var savedResp NoteSaveResponse
	_ = json.Unmarshal(saved.Body.Bytes(), &savedResp)

	created := doJSON(t, router, http.MethodPost, "/runs", RunCreateRequest{
		NoteID: savedResp.Note.ID,
		AreaID: savedResp.AreaSummaries[0].ID,
	}, cookie)
	var createdResp RunCreateResponse
	_ = json.Unmarshal(created.Body.Bytes(), &createdResp)

	deadline := time.Now().Add(5 * time.Second)
	var projectID string
	for projectID == "" {
		polled := doJSON(t, router, http.MethodGet, "/runs/"+createdResp.Run.ID, nil, cookie)
		var resp RunResponse
		_ = json.Unmarshal(polled.Body.Bytes(), &resp)
		if resp.Run.Status == workspace.RunFailed {
			t.Fatalf("run failed: %s", resp.Run.Error)
		}
		projectID = resp.Run.ProjectID
		if time.Now().After(deadline) {
			t.Fatal("run never finished")
		}
		if projectID == "" {
			time.Sleep(10 * time.Millisecond)
		}
	}

	// Link a repository.
	repo := doJSON(t, router, http.MethodPut, "/projects/"+projectID+"/repository", RepositoryRequest{Repository: "octo/trail"}, cookie)
	if repo.Code != http.StatusOK {
		t.Fatalf("repository status = %d, body = %s", repo.Code, repo.Body.String())
	}
	var repoResp ProjectResponse
	_ = json.Unmarshal(repo.Body.Bytes(), &repoResp)
	if repoResp.Project.Repository != "octo/trail" {
		t.Errorf("repository = %q", repoResp.Project.Repository)
	}

	// Queue a ship job.
	started := doJSON(t, router, http.MethodPost, "/ship/start", ShipStartRequest{ProjectID: projectID}, cookie)
	if started.Code != http.StatusOK {
		t.Fatalf("ship start status = %d, body = %s", started.Code, started.Body.String())
	}
	var startResp ShipStartResponse
	_ = json.Unmarshal(started.Body.Bytes(), &startResp)
	if startResp.Job.Status != workspace.ShipQueued {
		t.Errorf("job status = %q, want queued", startResp.Job.Status)
	}

	// Poll the job.
	polled := doJSON(t, router, http.MethodGet, "/ship/jobs/"+startResp.Job.ID, nil, cookie)
	if polled.Code != http.StatusOK {
		t.Fatalf("ship job status = %d", polled.Code)
	}

	// Unknown project cannot ship.
	missing := doJSON(t, router, http.MethodPost, "/ship/start", ShipStartRequest{ProjectID: "ghost"}, cookie)
	if missing.Code != http.StatusNotFound {
		t.Errorf("ghost ship status = %d, want 404", missing.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := testRouter(t, "sekret")

	w := doJSON(t, router, http.MethodGet, "/workspace/latest", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/workspace/latest", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/workspace/latest", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want 401", rec.Code)
	}
}
