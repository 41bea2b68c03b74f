package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/channel"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/user"
)

// commandBuffer sizes the Hub mailbox. Sessions and the bus consumer block
// when it fills, which is the intended backpressure.
const commandBuffer = 64

// storeTimeout bounds the store queries issued while handling one command.
const storeTimeout = 10 * time.Second

// Hub is the process-wide authority over which user has a live session. It
// runs as a single goroutine that exclusively owns the user-to-session map;
// sessions and the bus consumer talk to it only through typed commands.
type Hub struct {
	store    Store
	log      zerolog.Logger
	commands chan command
}

type command interface{ isCommand() }

type identifyCmd struct {
	userID uuid.UUID
	sess   *Session
	reply  chan identifyReply
}

type identifyReply struct {
	ready ready
	err   error
}

// ready carries the entitlements a freshly identified session caches:
// server IDs and channel IDs, each channel mapped to its owning server.
type ready struct {
	servers  []uuid.UUID
	channels map[uuid.UUID]uuid.UUID
}

type closedCmd struct {
	userID uuid.UUID
	sess   *Session
}

type eventCmd struct {
	event broker.Event
	done  chan struct{}
}

func (identifyCmd) isCommand() {}
func (closedCmd) isCommand()   {}
func (eventCmd) isCommand()    {}

// NewHub creates a Hub over the given store.
func NewHub(store Store, logger zerolog.Logger) *Hub {
	return &Hub{
		store:    store,
		log:      logger.With().Str("component", "hub").Logger(),
		commands: make(chan command, commandBuffer),
	}
}

// identify registers a session for a user, displacing any prior session,
// and returns the user's current entitlements. Called from the session
// goroutine; blocks until the Hub has processed the command.
func (h *Hub) identify(userID uuid.UUID, sess *Session) (ready, error) {
	reply := make(chan identifyReply, 1)
	h.commands <- identifyCmd{userID: userID, sess: sess, reply: reply}
	r := <-reply
	return r.ready, r.err
}

// closed tells the Hub a session is gone. The removal is identity-checked,
// so an out-of-order close never erases a newer session.
func (h *Hub) closed(userID uuid.UUID, sess *Session) {
	h.commands <- closedCmd{userID: userID, sess: sess}
}

// HandleEvent feeds one broker event into the Hub and waits until its
// fan-out has been dispatched, so the caller can acknowledge the broker
// delivery afterwards. It satisfies broker.Handler.
func (h *Hub) HandleEvent(ctx context.Context, event broker.Event) error {
	done := make(chan struct{})
	select {
	case h.commands <- eventCmd{event: event, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands until the context is cancelled, then evicts every
// remaining session. The byUser map lives entirely inside this method.
func (h *Hub) Run(ctx context.Context) error {
	byUser := make(map[uuid.UUID]*Session)

	for {
		select {
		case <-ctx.Done():
			for userID, sess := range byUser {
				sess.evict()
				delete(byUser, userID)
			}
			h.log.Info().Msg("Hub shut down")
			return ctx.Err()
		case cmd := <-h.commands:
			switch c := cmd.(type) {
			case identifyCmd:
				h.handleIdentify(ctx, byUser, c)
			case closedCmd:
				if byUser[c.userID] == c.sess {
					delete(byUser, c.userID)
					h.log.Debug().Stringer("user_id", c.userID).Msg("Session removed")
				}
			case eventCmd:
				h.handleEvent(ctx, byUser, c.event)
				close(c.done)
			}
		}
	}
}

func (h *Hub) handleIdentify(ctx context.Context, byUser map[uuid.UUID]*Session, cmd identifyCmd) {
	if existing, ok := byUser[cmd.userID]; ok && existing != cmd.sess {
		h.log.Debug().Stringer("user_id", cmd.userID).Msg("Displacing existing session")
		existing.evict()
		delete(byUser, cmd.userID)
	}

	qctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	servers, err := h.store.ServersOfUser(qctx, cmd.userID)
	if err != nil {
		cmd.reply <- identifyReply{err: fmt.Errorf("load servers of user: %w", err)}
		return
	}
	channels, err := h.store.ChannelsOfUser(qctx, cmd.userID)
	if err != nil {
		cmd.reply <- identifyReply{err: fmt.Errorf("load channels of user: %w", err)}
		return
	}

	r := ready{
		servers:  make([]uuid.UUID, 0, len(servers)),
		channels: make(map[uuid.UUID]uuid.UUID, len(channels)),
	}
	for _, srv := range servers {
		r.servers = append(r.servers, srv.ID)
	}
	for _, ch := range channels {
		r.channels[ch.ID] = ch.ServerID
	}

	byUser[cmd.userID] = cmd.sess
	h.log.Debug().Stringer("user_id", cmd.userID).Int("total", len(byUser)).Msg("Session identified")

	cmd.reply <- identifyReply{ready: r}
}

// handleEvent expands one broker event into per-session deliveries. Store
// failures drop the fan-out step: the event is still acknowledged upstream
// and the next event reconciles.
func (h *Hub) handleEvent(ctx context.Context, byUser map[uuid.UUID]*Session, event broker.Event) {
	qctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	switch event.Kind {
	case broker.KindNewChannel:
		ch, err := h.store.ChannelByID(qctx, event.ChannelID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		members, err := h.store.MembersOfServer(qctx, ch.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		for _, m := range members {
			h.sendTo(byUser, m.ID, AddChannel{Channel: ch.ToView()})
		}

	case broker.KindNewServer:
		if _, ok := byUser[event.UserID]; !ok {
			return
		}
		add, err := h.loadAddServer(qctx, event.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		h.sendTo(byUser, event.UserID, add)

	case broker.KindUserJoined:
		add, err := h.loadAddServer(qctx, event.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}

		// The joining user gains the whole server; existing members just
		// learn about the new user.
		h.sendTo(byUser, event.UserID, add)

		joined, ok := findUser(add.Users, event.UserID)
		if !ok {
			return
		}
		members, err := h.store.MembersOfServer(qctx, event.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		for _, m := range members {
			if m.ID == event.UserID {
				continue
			}
			h.sendTo(byUser, m.ID, AddUser{ServerID: event.ServerID, User: joined})
		}

	case broker.KindUserLeft:
		h.sendTo(byUser, event.UserID, RemoveServer{ServerID: event.ServerID})

		members, err := h.store.MembersOfServer(qctx, event.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		for _, m := range members {
			if m.ID == event.UserID {
				continue
			}
			h.sendTo(byUser, m.ID, RemoveUser{ServerID: event.ServerID, UserID: event.UserID})
		}

	case broker.KindDeleteServer:
		// The membership list is gone with the cascade, so broadcast and
		// let each session's server filter drop the event.
		h.broadcast(byUser, RemoveServer{ServerID: event.ServerID})

	case broker.KindDeleteChannel:
		members, err := h.store.MembersOfServer(qctx, event.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		for _, m := range members {
			h.sendTo(byUser, m.ID, RemoveChannel{ChannelID: event.ChannelID})
		}

	case broker.KindUpdateServer:
		srv, err := h.store.ServerByID(qctx, event.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		members, err := h.store.MembersOfServer(qctx, event.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		for _, m := range members {
			h.sendTo(byUser, m.ID, UpdateServer{Server: srv.ToView()})
		}

	case broker.KindUpdateChannel:
		ch, err := h.store.ChannelByID(qctx, event.ChannelID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		members, err := h.store.MembersOfServer(qctx, ch.ServerID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		for _, m := range members {
			h.sendTo(byUser, m.ID, UpdateChannel{Channel: ch.ToView()})
		}

	case broker.KindNewMessage:
		msg, author, err := h.store.MessageByID(qctx, event.MessageID)
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		frame, err := NewFrame(TagNewMessage, msg.ToView(author))
		if err != nil {
			h.dropFanout(event, err)
			return
		}
		// Serialised once, broadcast to every session; the per-session
		// channel filter drops it for uninterested clients.
		h.broadcast(byUser, Data{Frame: frame, ChannelID: event.ChannelID})

	default:
		h.log.Warn().Str("kind", string(event.Kind)).Msg("Ignoring unknown broker event")
	}
}

// loadAddServer assembles the AddServer delivery for a server: the server,
// its channels, and its members.
func (h *Hub) loadAddServer(ctx context.Context, serverID uuid.UUID) (AddServer, error) {
	srv, err := h.store.ServerByID(ctx, serverID)
	if err != nil {
		return AddServer{}, err
	}
	channels, err := h.store.ChannelsOfServer(ctx, serverID)
	if err != nil {
		return AddServer{}, err
	}
	members, err := h.store.MembersOfServer(ctx, serverID)
	if err != nil {
		return AddServer{}, err
	}
	return AddServer{
		Server:   srv.ToView(),
		Channels: channelViews(channels),
		Users:    userViews(members),
	}, nil
}

// sendTo delivers to the given user's session, if live. A full mailbox
// means the session is stuck, so it is evicted on the spot.
func (h *Hub) sendTo(byUser map[uuid.UUID]*Session, userID uuid.UUID, d Delivery) {
	sess, ok := byUser[userID]
	if !ok {
		return
	}
	if !sess.deliver(d) {
		h.log.Warn().Stringer("user_id", userID).Msg("Session mailbox full, evicting")
		sess.evict()
		delete(byUser, userID)
	}
}

// broadcast delivers to every live session.
func (h *Hub) broadcast(byUser map[uuid.UUID]*Session, d Delivery) {
	for userID := range byUser {
		h.sendTo(byUser, userID, d)
	}
}

func (h *Hub) dropFanout(event broker.Event, err error) {
	h.log.Warn().Err(err).Str("kind", string(event.Kind)).Msg("Dropping fan-out after store failure")
}

func channelViews(channels []channel.Channel) []model.ChannelView {
	views := make([]model.ChannelView, len(channels))
	for i := range channels {
		views[i] = channels[i].ToView()
	}
	return views
}

func userViews(users []user.User) []model.UserView {
	views := make([]model.UserView, len(users))
	for i := range users {
		views[i] = users[i].ToView()
	}
	return views
}

func findUser(users []model.UserView, id uuid.UUID) (model.UserView, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return model.UserView{}, false
}
