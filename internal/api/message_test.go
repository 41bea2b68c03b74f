package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/message"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/user"
)

// --- fakes ---

// fakeMessageRepo implements message.Repository for handler tests.
type fakeMessageRepo struct {
	messages []message.Message
	users    *fakeUserRepo
}

func newFakeMessageRepo(users *fakeUserRepo) *fakeMessageRepo {
	return &fakeMessageRepo{users: users}
}

func (r *fakeMessageRepo) Create(_ context.Context, channelID, authorID uuid.UUID, content string) (*message.Message, error) {
	m := message.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	r.messages = append(r.messages, m)
	return &r.messages[len(r.messages)-1], nil
}

func (r *fakeMessageRepo) ListByChannel(_ context.Context, channelID uuid.UUID) ([]message.Message, error) {
	var out []message.Message
	for _, m := range r.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) GetWithAuthor(ctx context.Context, id uuid.UUID) (*message.Message, *user.User, error) {
	for i := range r.messages {
		if r.messages[i].ID == id {
			author, err := r.users.GetByID(ctx, r.messages[i].AuthorID)
			if err != nil {
				return nil, nil, err
			}
			return &r.messages[i], author, nil
		}
	}
	return nil, nil, message.ErrNotFound
}

// messageFixture wires the channel, membership, and user fakes a message
// test needs: one server with one channel and one member.
type messageFixture struct {
	users    *fakeUserRepo
	members  *fakeMemberRepo
	channels *fakeChannelRepo
	messages *fakeMessageRepo
	author   *user.User
	channel  uuid.UUID
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	users := newFakeUserRepo()
	members := newFakeMemberRepo(users)
	channels := newFakeChannelRepo(members)

	author := seedUser(t, users, "alice", "alice@example.com", "password123")
	serverID := uuid.New()
	ch, _ := channels.Create(context.Background(), serverID, "general")
	_ = members.Join(context.Background(), author.ID, serverID)

	return &messageFixture{
		users:    users,
		members:  members,
		channels: channels,
		messages: newFakeMessageRepo(users),
		author:   author,
		channel:  ch.ID,
	}
}

func testMessageApp(t *testing.T, f *messageFixture, callerID uuid.UUID) (*fiber.App, *redis.Client) {
	t.Helper()
	events, rdb := testPublisher(t)
	handler := NewMessageHandler(f.messages, f.channels, f.users, events, zerolog.Nop())

	app := fiber.New()
	app.Use(fakeAuth(callerID))
	app.Post("/channels/:channelID/messages", handler.Create)
	app.Get("/channels/:channelID/messages", handler.List)
	return app, rdb
}

// --- tests ---

func TestCreateMessage_Success(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	app, rdb := testMessageApp(t, f, f.author.ID)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/channels/"+f.channel.String()+"/messages",
		`{"content":"hello"}`))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusCreated, body)
	}

	env := parseSuccess(t, body)
	var got model.MessageView
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("unmarshal message view: %v", err)
	}
	if got.Content != "hello" || got.ChannelID != f.channel || got.User.ID != f.author.ID {
		t.Errorf("view = %+v, want hello in %s by %s", got, f.channel, f.author.ID)
	}

	events := publishedEvents(t, rdb)
	want := broker.Event{Kind: broker.KindNewMessage, ChannelID: f.channel, MessageID: got.ID}
	if len(events) != 1 || events[0] != want {
		t.Errorf("events = %+v, want [%+v]", events, want)
	}
}

func TestCreateMessage_StripsMarkup(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	app, _ := testMessageApp(t, f, f.author.ID)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/channels/"+f.channel.String()+"/messages",
		`{"content":"hi <script>alert(1)</script>there"}`))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusCreated, body)
	}

	env := parseSuccess(t, body)
	var got model.MessageView
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("unmarshal message view: %v", err)
	}
	if strings.Contains(got.Content, "<script>") {
		t.Errorf("content %q still contains markup", got.Content)
	}
}

func TestCreateMessage_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"markup only", "<b></b>"},
		{"too long", strings.Repeat("x", 1001)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newMessageFixture(t)
			app, rdb := testMessageApp(t, f, f.author.ID)

			payload, _ := json.Marshal(CreateMessageRequest{Content: tt.content})
			resp := doReq(t, app, jsonReq(http.MethodPost, "/channels/"+f.channel.String()+"/messages", string(payload)))
			readBody(t, resp)

			if resp.StatusCode != fiber.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
			}
			if events := publishedEvents(t, rdb); len(events) != 0 {
				t.Errorf("published %d events, want 0", len(events))
			}
		})
	}
}

func TestCreateMessage_NotMember(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	outsider := seedUser(t, f.users, "mallory", "mallory@example.com", "password123")
	app, rdb := testMessageApp(t, f, outsider.ID)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/channels/"+f.channel.String()+"/messages",
		`{"content":"hello"}`))
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

func TestListMessages(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	_, _ = f.messages.Create(context.Background(), f.channel, f.author.ID, "first")
	_, _ = f.messages.Create(context.Background(), f.channel, f.author.ID, "second")
	app, _ := testMessageApp(t, f, f.author.ID)

	resp := doReq(t, app, jsonReq(http.MethodGet, "/channels/"+f.channel.String()+"/messages", ""))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusOK, body)
	}

	env := parseSuccess(t, body)
	var views []model.MessageView
	if err := json.Unmarshal(env.Data, &views); err != nil {
		t.Fatalf("unmarshal messages: %v", err)
	}
	if len(views) != 2 || views[0].Content != "first" || views[1].Content != "second" {
		t.Errorf("views = %+v, want first then second", views)
	}
	for _, v := range views {
		if v.User.Username != "alice" {
			t.Errorf("author = %q, want alice", v.User.Username)
		}
	}
}

func TestListMessages_NotMember(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	outsider := seedUser(t, f.users, "mallory", "mallory@example.com", "password123")
	app, _ := testMessageApp(t, f, outsider.ID)

	resp := doReq(t, app, jsonReq(http.MethodGet, "/channels/"+f.channel.String()+"/messages", ""))
	readBody(t, resp)

	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
}
