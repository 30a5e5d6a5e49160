package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperengineering/inkwell/internal/auth"
	"github.com/hyperengineering/inkwell/internal/migration"
	"github.com/hyperengineering/inkwell/internal/store"
	inksync "github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/types"
)

const (
	guestToken = "guest-session-token"
	userToken  = "user-session-token"
)

type testAPI struct {
	router   http.Handler
	store    *store.SQLiteStore
	provider *auth.Static
}

// newTestAPI wires the full router against an in-memory store. The sync
// engine runs without a remote, matching offline mode.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	provider := auth.NewStatic()
	provider.Register(guestToken, auth.Identity{GuestID: "guest-1"})
	provider.Register(userToken, auth.Identity{UserID: "user-1"})

	engine := inksync.NewEngine(st, nil, nil)
	migrator := migration.NewMigrator(st, nil)
	h := NewHandler(st, engine, migrator, provider, "test")

	return &testAPI{
		router:   NewRouter(h, provider),
		store:    st,
		provider: provider,
	}
}

// do performs a request against the router and returns the recorder.
func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// createProject is a shortcut for tests that need one in place.
func (a *testAPI) createProject(t *testing.T, token, title string) types.Project {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/projects", token, ProjectRequest{Title: title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeBody[types.Project](t, w)
}

func TestHealth_NoAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	resp := decodeBody[map[string]any](t, w)
	if resp["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", resp["status"])
	}
	if resp["sync_status"] != "idle" {
		t.Errorf("sync_status = %v, want idle", resp["sync_status"])
	}
}

func TestProjects_RequireAuth(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreateProject_GuestOwnership(t *testing.T) {
	a := newTestAPI(t)

	p := a.createProject(t, guestToken, "Untitled Novel")
	if p.ID == "" {
		t.Error("project id not generated")
	}
	if p.GuestID != "guest-1" || p.UserID != "" {
		t.Errorf("ownership = user:%q guest:%q, want guest-1 only", p.UserID, p.GuestID)
	}
	if p.SyncStatus != types.SyncPending {
		t.Errorf("sync_status = %q, want pending", p.SyncStatus)
	}
}

func TestCreateProject_ValidationErrors(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/projects", guestToken, ProjectRequest{Title: "   "})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	resp := decodeBody[ProblemWithErrors](t, w)
	if len(resp.Errors) == 0 {
		t.Error("expected field errors in problem response")
	}
}

func TestListProjects_ScopedToIdentity(t *testing.T) {
	a := newTestAPI(t)

	a.createProject(t, guestToken, "Guest Novel")
	a.createProject(t, userToken, "User Novel")

	guestList := decodeBody[[]types.Project](t, a.do(t, http.MethodGet, "/api/v1/projects", guestToken, nil))
	if len(guestList) != 1 || guestList[0].Title != "Guest Novel" {
		t.Errorf("guest list = %+v, want only Guest Novel", guestList)
	}

	userList := decodeBody[[]types.Project](t, a.do(t, http.MethodGet, "/api/v1/projects", userToken, nil))
	if len(userList) != 1 || userList[0].Title != "User Novel" {
		t.Errorf("user list = %+v, want only User Novel", userList)
	}
}

func TestGetProject_ForeignProjectReadsAsNotFound(t *testing.T) {
	a := newTestAPI(t)

	p := a.createProject(t, guestToken, "Guest Novel")

	w := a.do(t, http.MethodGet, "/api/v1/projects/"+p.ID, userToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for foreign project", w.Code)
	}
}

func TestUpdateAndDeleteProject(t *testing.T) {
	a := newTestAPI(t)

	p := a.createProject(t, guestToken, "Draft")

	w := a.do(t, http.MethodPut, "/api/v1/projects/"+p.ID, guestToken,
		ProjectRequest{Title: "Final", Genre: "fantasy"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decodeBody[types.Project](t, w)
	if updated.Title != "Final" || updated.Genre != "fantasy" {
		t.Errorf("updated = %+v", updated)
	}

	w = a.do(t, http.MethodDelete, "/api/v1/projects/"+p.ID, guestToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = a.do(t, http.MethodGet, "/api/v1/projects/"+p.ID, guestToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted project status = %d, want 404", w.Code)
	}
}

func TestChapters_CRUDAndDerivedFields(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	content := json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Opening line"}]}]}`)
	w := a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/chapters", guestToken,
		ChapterRequest{Title: "Chapter One", Content: content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chapter status = %d, body = %s", w.Code, w.Body.String())
	}
	c := decodeBody[types.Chapter](t, w)
	if c.PlainText != "Opening line" {
		t.Errorf("PlainText = %q, want derived text", c.PlainText)
	}
	if c.WordCount != 11 {
		t.Errorf("WordCount = %d, want 11", c.WordCount)
	}
	if c.Position != 0 {
		t.Errorf("Position = %d, want 0 for first chapter", c.Position)
	}

	w = a.do(t, http.MethodGet, "/api/v1/chapters/"+c.ID, guestToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get chapter status = %d", w.Code)
	}

	w = a.do(t, http.MethodDelete, "/api/v1/chapters/"+c.ID, guestToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete chapter status = %d", w.Code)
	}
}

func TestReorderChapters(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	var ids []string
	for i := 1; i <= 3; i++ {
		w := a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/chapters", guestToken,
			ChapterRequest{Title: fmt.Sprintf("Chapter %d", i)})
		ids = append(ids, decodeBody[types.Chapter](t, w).ID)
	}

	reversed := []string{ids[2], ids[1], ids[0]}
	w := a.do(t, http.MethodPut, "/api/v1/projects/"+p.ID+"/chapters/reorder", guestToken,
		ReorderRequest{IDs: reversed})
	if w.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body = %s", w.Code, w.Body.String())
	}

	chapters := decodeBody[[]types.Chapter](t, w)
	if chapters[0].ID != ids[2] || chapters[2].ID != ids[0] {
		t.Errorf("order not applied: %+v", chapters)
	}
}

func TestReorderChapters_PartialListRejected(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	var ids []string
	for i := 1; i <= 2; i++ {
		w := a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/chapters", guestToken,
			ChapterRequest{Title: fmt.Sprintf("Chapter %d", i)})
		ids = append(ids, decodeBody[types.Chapter](t, w).ID)
	}

	w := a.do(t, http.MethodPut, "/api/v1/projects/"+p.ID+"/chapters/reorder", guestToken,
		ReorderRequest{IDs: ids[:1]})
	if w.Code != http.StatusBadRequest {
		t.Errorf("partial reorder status = %d, want 400", w.Code)
	}
}

func TestSynopsis_PutCreatesThenUpdates(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	w := a.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/synopsis", guestToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing synopsis status = %d, want 404", w.Code)
	}

	content := json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"A tale of two cities"}]}]}`)
	w = a.do(t, http.MethodPut, "/api/v1/projects/"+p.ID+"/synopsis", guestToken, SynopsisRequest{Content: content})
	if w.Code != http.StatusCreated {
		t.Fatalf("first put status = %d, body = %s", w.Code, w.Body.String())
	}
	sy := decodeBody[types.Synopsis](t, w)
	if sy.PlainText != "A tale of two cities" {
		t.Errorf("PlainText = %q", sy.PlainText)
	}

	w = a.do(t, http.MethodPut, "/api/v1/projects/"+p.ID+"/synopsis", guestToken, SynopsisRequest{Content: content})
	if w.Code != http.StatusOK {
		t.Errorf("second put status = %d, want 200", w.Code)
	}
}

func TestCharactersAndRelationships(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	w := a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/characters", guestToken,
		CharacterRequest{Name: "Alice", Role: "protagonist"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create character status = %d, body = %s", w.Code, w.Body.String())
	}
	alice := decodeBody[types.Character](t, w)

	w = a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/characters", guestToken,
		CharacterRequest{Name: "Bob"})
	bob := decodeBody[types.Character](t, w)

	w = a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/relationships", guestToken,
		RelationshipRequest{SourceCharacterID: alice.ID, TargetCharacterID: bob.ID, Label: "rivals"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create relationship status = %d, body = %s", w.Code, w.Body.String())
	}
	rel := decodeBody[types.Relationship](t, w)
	if rel.Label != "rivals" {
		t.Errorf("Label = %q", rel.Label)
	}

	// Deleting an endpoint character removes its relationships.
	w = a.do(t, http.MethodDelete, "/api/v1/characters/"+bob.ID, guestToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete character status = %d", w.Code)
	}
	rels := decodeBody[[]types.Relationship](t, a.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/relationships", guestToken, nil))
	if len(rels) != 0 {
		t.Errorf("relationships after character delete = %+v, want none", rels)
	}
}

func TestCreateRelationship_SelfLinkRejected(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	w := a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/characters", guestToken,
		CharacterRequest{Name: "Alice"})
	alice := decodeBody[types.Character](t, w)

	w = a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/relationships", guestToken,
		RelationshipRequest{SourceCharacterID: alice.ID, TargetCharacterID: alice.ID, Label: "self"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("self relationship status = %d, want 422", w.Code)
	}
}

func TestCharacterVersions_SnapshotAndDedupe(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	w := a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/characters", guestToken,
		CharacterRequest{Name: "Alice", Notes: "draft one"})
	alice := decodeBody[types.Character](t, w)

	w = a.do(t, http.MethodPost, "/api/v1/characters/"+alice.ID+"/versions", guestToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first snapshot status = %d, body = %s", w.Code, w.Body.String())
	}

	// Identical snapshot is skipped.
	w = a.do(t, http.MethodPost, "/api/v1/characters/"+alice.ID+"/versions", guestToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unchanged snapshot status = %d, want 204", w.Code)
	}

	a.do(t, http.MethodPut, "/api/v1/characters/"+alice.ID, guestToken,
		CharacterRequest{Name: "Alice", Notes: "draft two"})
	w = a.do(t, http.MethodPost, "/api/v1/characters/"+alice.ID+"/versions", guestToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("changed snapshot status = %d", w.Code)
	}

	versions := decodeBody[[]types.Version](t, a.do(t, http.MethodGet, "/api/v1/characters/"+alice.ID+"/versions", guestToken, nil))
	if len(versions) != 2 {
		t.Errorf("version count = %d, want 2", len(versions))
	}
}

func TestCharacterVersions_DedupeSurvivesSyncBookkeeping(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, guestToken, "Novel")

	w := a.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/characters", guestToken,
		CharacterRequest{Name: "Alice", Notes: "draft one"})
	alice := decodeBody[types.Character](t, w)

	w = a.do(t, http.MethodPost, "/api/v1/characters/"+alice.ID+"/versions", guestToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first snapshot status = %d", w.Code)
	}

	// A push flips sync bookkeeping without touching authored content;
	// the next snapshot must still dedupe.
	if err := a.store.MarkSynced(context.Background(), inksync.EntityCharacter, alice.ID, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	w = a.do(t, http.MethodPost, "/api/v1/characters/"+alice.ID+"/versions", guestToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("snapshot after push status = %d, want 204", w.Code)
	}
}

func TestSyncRun_OfflineModeUnavailable(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/sync/run", guestToken, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a remote", w.Code)
	}
}

func TestSyncStatus_ReportsQueueDepth(t *testing.T) {
	a := newTestAPI(t)
	a.createProject(t, guestToken, "Novel")

	w := a.do(t, http.MethodGet, "/api/v1/sync/status", guestToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	resp := decodeBody[SyncStatusResponse](t, w)
	if resp.Status != inksync.StatusIdle {
		t.Errorf("Status = %q, want idle", resp.Status)
	}
	if resp.QueueDepth != 1 {
		t.Errorf("QueueDepth = %d, want 1", resp.QueueDepth)
	}
	if resp.PoisonedEntries != 0 {
		t.Errorf("PoisonedEntries = %d, want 0", resp.PoisonedEntries)
	}
}

func TestSyncPull_GuestForbidden(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/sync/pull", guestToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for guest", w.Code)
	}
}

func TestSignIn_MigratesGuestDataAndRebindsToken(t *testing.T) {
	a := newTestAPI(t)

	p := a.createProject(t, guestToken, "Guest Novel")

	// The device records its guest identity at first launch.
	if err := a.store.SetSetting(context.Background(), migration.GuestIDKey, "guest-1"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}

	w := a.do(t, http.MethodPost, "/api/v1/session/signin", guestToken, SignInRequest{UserID: "user-9"})
	if w.Code != http.StatusOK {
		t.Fatalf("signin status = %d, body = %s", w.Code, w.Body.String())
	}
	result := decodeBody[types.MigrationResult](t, w)
	if !result.Success || result.Projects != 1 {
		t.Errorf("migration result = %+v", result)
	}

	// The same token now resolves to the user and sees the adopted project.
	list := decodeBody[[]types.Project](t, a.do(t, http.MethodGet, "/api/v1/projects", guestToken, nil))
	if len(list) != 1 || list[0].ID != p.ID || list[0].UserID != "user-9" {
		t.Errorf("post-signin list = %+v, want adopted project", list)
	}
}

func TestSignIn_MissingUserIDRejected(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/session/signin", guestToken, SignInRequest{})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}
