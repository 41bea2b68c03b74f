package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/auth"
	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/channel"
	"github.com/accord-chat/accord-server/internal/invite"
	"github.com/accord-chat/accord-server/internal/member"
	"github.com/accord-chat/accord-server/internal/message"
	"github.com/accord-chat/accord-server/internal/server"
	"github.com/accord-chat/accord-server/internal/user"
)

// Repositories groups the data-access dependencies of the HTTP API.
type Repositories struct {
	Users    user.Repository
	Servers  server.Repository
	Channels channel.Repository
	Members  member.Repository
	Invites  invite.Repository
	Messages message.Repository
}

// NewRepositories builds the full set of PostgreSQL-backed repositories.
func NewRepositories(db *pgxpool.Pool) Repositories {
	return Repositories{
		Users:    user.NewPGRepository(db),
		Servers:  server.NewPGRepository(db),
		Channels: channel.NewPGRepository(db),
		Members:  member.NewPGRepository(db),
		Invites:  invite.NewPGRepository(db),
		Messages: message.NewPGRepository(db),
	}
}

// RegisterRoutes wires every API endpoint onto the app. Everything except
// /health, /register, and /login requires a bearer token.
func RegisterRoutes(
	app *fiber.App,
	repos Repositories,
	events *broker.Publisher,
	db *pgxpool.Pool,
	rdb *redis.Client,
	jwtSecret string,
	log zerolog.Logger,
) {
	health := &HealthHandler{DB: db, Broker: rdb}
	app.Get("/health", health.Health)

	authHandler := NewAuthHandler(repos.Users, jwtSecret, log)
	app.Post("/register", authHandler.Register)
	app.Post("/login", authHandler.Login)

	protected := app.Group("", auth.RequireAuth(jwtSecret))

	serverHandler := NewServerHandler(repos.Servers, repos.Invites, events, log)
	protected.Post("/servers", serverHandler.Create)
	protected.Post("/servers/:serverID", serverHandler.Update)
	protected.Delete("/servers/:serverID", serverHandler.Delete)
	protected.Get("/servers/:serverID/invites", serverHandler.ListInvites)

	memberHandler := NewMemberHandler(repos.Members, repos.Invites, repos.Servers, events, log)
	protected.Put("/servers/:inviteCode/users", memberHandler.Join)
	protected.Delete("/servers/:serverID/users", memberHandler.Leave)
	protected.Get("/servers/:serverID/users", memberHandler.ListUsers)

	channelHandler := NewChannelHandler(repos.Channels, repos.Servers, events, log)
	protected.Post("/servers/:serverID/channels", channelHandler.Create)
	protected.Get("/servers/:serverID/channels", channelHandler.ListByServer)
	protected.Post("/channels/:channelID", channelHandler.Update)
	protected.Delete("/channels/:channelID", channelHandler.Delete)

	messageHandler := NewMessageHandler(repos.Messages, repos.Channels, repos.Users, events, log)
	protected.Post("/channels/:channelID/messages", messageHandler.Create)
	protected.Get("/channels/:channelID/messages", messageHandler.List)

	userHandler := NewUserHandler(repos.Users, repos.Servers, log)
	protected.Get("/users", userHandler.Get)
	protected.Get("/users/servers", userHandler.ListServers)
}
