package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/invite"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/server"
)

// --- fakes ---

// fakeServerRepo implements server.Repository for handler tests.
type fakeServerRepo struct {
	servers map[uuid.UUID]*server.Server
	invites *fakeInviteRepo
}

func newFakeServerRepo() *fakeServerRepo {
	return &fakeServerRepo{
		servers: make(map[uuid.UUID]*server.Server),
		invites: newFakeInviteRepo(),
	}
}

func (r *fakeServerRepo) Create(_ context.Context, name string, ownerID uuid.UUID) (*server.Server, error) {
	srv := &server.Server{ID: uuid.New(), Name: name, OwnerID: ownerID}
	r.servers[srv.ID] = srv
	r.invites.seed(srv.ID, invite.NewCode())
	return srv, nil
}

func (r *fakeServerRepo) GetByID(_ context.Context, id uuid.UUID) (*server.Server, error) {
	srv, ok := r.servers[id]
	if !ok {
		return nil, server.ErrNotFound
	}
	return srv, nil
}

func (r *fakeServerRepo) Rename(_ context.Context, id uuid.UUID, name string) (*server.Server, error) {
	srv, ok := r.servers[id]
	if !ok {
		return nil, server.ErrNotFound
	}
	srv.Name = name
	return srv, nil
}

func (r *fakeServerRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.servers[id]; !ok {
		return server.ErrNotFound
	}
	delete(r.servers, id)
	return nil
}

func (r *fakeServerRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]server.Server, error) {
	var out []server.Server
	for _, srv := range r.servers {
		if srv.OwnerID == userID {
			out = append(out, *srv)
		}
	}
	return out, nil
}

// fakeInviteRepo implements invite.Repository for handler tests.
type fakeInviteRepo struct {
	byCode map[string]*invite.Invite
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{byCode: make(map[string]*invite.Invite)}
}

func (r *fakeInviteRepo) seed(serverID uuid.UUID, code string) *invite.Invite {
	inv := &invite.Invite{ID: uuid.New(), ServerID: serverID, Code: code}
	r.byCode[code] = inv
	return inv
}

func (r *fakeInviteRepo) GetByCode(_ context.Context, code string) (*invite.Invite, error) {
	inv, ok := r.byCode[code]
	if !ok {
		return nil, invite.ErrNotFound
	}
	return inv, nil
}

func (r *fakeInviteRepo) ListByServer(_ context.Context, serverID uuid.UUID) ([]invite.Invite, error) {
	var out []invite.Invite
	for _, inv := range r.byCode {
		if inv.ServerID == serverID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// --- test app factory ---

func testServerApp(t *testing.T, repo *fakeServerRepo, callerID uuid.UUID) (*fiber.App, *redis.Client) {
	t.Helper()
	events, rdb := testPublisher(t)
	handler := NewServerHandler(repo, repo.invites, events, zerolog.Nop())

	app := fiber.New()
	app.Use(fakeAuth(callerID))
	app.Post("/servers", handler.Create)
	app.Post("/servers/:serverID", handler.Update)
	app.Delete("/servers/:serverID", handler.Delete)
	app.Get("/servers/:serverID/invites", handler.ListInvites)
	return app, rdb
}

// --- tests ---

func TestCreateServer_Success(t *testing.T) {
	t.Parallel()
	repo := newFakeServerRepo()
	ownerID := uuid.New()
	app, rdb := testServerApp(t, repo, ownerID)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/servers", `{"name":"my server"}`))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusCreated, body)
	}

	env := parseSuccess(t, body)
	var got model.ServerView
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("unmarshal server view: %v", err)
	}
	if got.Name != "my server" || got.OwnerID != ownerID {
		t.Errorf("view = %+v, want name %q owner %s", got, "my server", ownerID)
	}

	events := publishedEvents(t, rdb)
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	want := broker.Event{Kind: broker.KindNewServer, UserID: ownerID, ServerID: got.ID}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}
}

func TestCreateServer_NameValidation(t *testing.T) {
	t.Parallel()
	app, rdb := testServerApp(t, newFakeServerRepo(), uuid.New())

	// Three runes after trimming.
	resp := doReq(t, app, jsonReq(http.MethodPost, "/servers", `{"name":"  abc  "}`))
	readBody(t, resp)

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	if events := publishedEvents(t, rdb); len(events) != 0 {
		t.Errorf("published %d events, want 0", len(events))
	}
}

func TestUpdateServer_TrimsName(t *testing.T) {
	t.Parallel()
	repo := newFakeServerRepo()
	ownerID := uuid.New()
	srv, _ := repo.Create(context.Background(), "old name", ownerID)
	app, rdb := testServerApp(t, repo, ownerID)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/servers/"+srv.ID.String(), `{"name":"  new name  "}`))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusOK, body)
	}
	if srv.Name != "new name" {
		t.Errorf("stored name = %q, want %q", srv.Name, "new name")
	}

	events := publishedEvents(t, rdb)
	want := broker.Event{Kind: broker.KindUpdateServer, ServerID: srv.ID}
	if len(events) != 1 || events[0] != want {
		t.Errorf("events = %+v, want [%+v]", events, want)
	}
}

func TestUpdateServer_NotOwner(t *testing.T) {
	t.Parallel()
	repo := newFakeServerRepo()
	srv, _ := repo.Create(context.Background(), "the server", uuid.New())
	app, rdb := testServerApp(t, repo, uuid.New())

	resp := doReq(t, app, jsonReq(http.MethodPost, "/servers/"+srv.ID.String(), `{"name":"hijacked"}`))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
	env := parseError(t, body)
	if env.Error.Code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", env.Error.Code)
	}
	if events := publishedEvents(t, rdb); len(events) != 0 {
		t.Errorf("published %d events, want 0", len(events))
	}
}

func TestDeleteServer_Success(t *testing.T) {
	t.Parallel()
	repo := newFakeServerRepo()
	ownerID := uuid.New()
	srv, _ := repo.Create(context.Background(), "doomed server", ownerID)
	app, rdb := testServerApp(t, repo, ownerID)

	resp := doReq(t, app, jsonReq(http.MethodDelete, "/servers/"+srv.ID.String(), ""))
	readBody(t, resp)

	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusNoContent)
	}
	if _, ok := repo.servers[srv.ID]; ok {
		t.Error("server still present after delete")
	}

	events := publishedEvents(t, rdb)
	want := broker.Event{Kind: broker.KindDeleteServer, ServerID: srv.ID}
	if len(events) != 1 || events[0] != want {
		t.Errorf("events = %+v, want [%+v]", events, want)
	}
}

func TestDeleteServer_NotOwner(t *testing.T) {
	t.Parallel()
	repo := newFakeServerRepo()
	srv, _ := repo.Create(context.Background(), "the server", uuid.New())
	app, rdb := testServerApp(t, repo, uuid.New())

	resp := doReq(t, app, jsonReq(http.MethodDelete, "/servers/"+srv.ID.String(), ""))
	readBody(t, resp)

	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
	if events := publishedEvents(t, rdb); len(events) != 0 {
		t.Errorf("published %d events, want 0", len(events))
	}
}

func TestDeleteServer_AbsentIs500(t *testing.T) {
	t.Parallel()
	app, _ := testServerApp(t, newFakeServerRepo(), uuid.New())

	resp := doReq(t, app, jsonReq(http.MethodDelete, "/servers/"+uuid.NewString(), ""))
	readBody(t, resp)

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusInternalServerError)
	}
}

func TestListInvites(t *testing.T) {
	t.Parallel()
	repo := newFakeServerRepo()
	ownerID := uuid.New()
	srv, _ := repo.Create(context.Background(), "my server", ownerID)
	app, _ := testServerApp(t, repo, ownerID)

	resp := doReq(t, app, jsonReq(http.MethodGet, "/servers/"+srv.ID.String()+"/invites", ""))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusOK, body)
	}

	env := parseSuccess(t, body)
	var invites []model.InviteView
	if err := json.Unmarshal(env.Data, &invites); err != nil {
		t.Fatalf("unmarshal invites: %v", err)
	}
	if len(invites) != 1 || invites[0].ServerID != srv.ID {
		t.Errorf("invites = %+v, want one invite for %s", invites, srv.ID)
	}
	if len(invites) == 1 && len(invites[0].Code) != 10 {
		t.Errorf("code length = %d, want 10", len(invites[0].Code))
	}
}
