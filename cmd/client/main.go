package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"vanish-client/internal/api"
	"vanish-client/internal/config"
	"vanish-client/internal/creds"
	"vanish-client/internal/models"
	"vanish-client/internal/session"
	"vanish-client/internal/upload"
	"vanish-client/pkg/logger"
)

func main() {
	serverID := flag.String("server", "", "ID of the room to join")
	flag.Parse()

	if *serverID == "" {
		logger.Fatal("-server is required")
	}

	// Load configuration
	cfg := config.Load()

	// Open the device credential store
	credStore, err := creds.Open(cfg.Creds.Path, cfg.Creds.SecretPath)
	if err != nil {
		logger.Fatal("Failed to open credential store: %v", err)
	}
	defer credStore.Close()

	apiClient := api.NewClient(cfg.API)
	uploader := upload.New(cfg.Upload)

	// Look up the room
	ctx := context.Background()
	server, err := apiClient.GetServer(ctx, *serverID)
	if err != nil {
		logger.Fatal("Room lookup failed: %v", err)
	}
	logger.Info("Joining %q (expires %s)", server.ServerName, server.Expiration.Format("15:04:05"))

	ctl := session.NewController(cfg.Socket, apiClient, credStore, uploader)

	fatal := make(chan *session.FatalError, 1)
	ctl.SetHooks(session.Hooks{
		Notice: func(n models.ServerNotice) {
			logger.Info("[server] %s", n.Content)
		},
		Message: func(msg models.Message) {
			if msg.AttachmentURL != "" {
				logger.Info("<%s> %s (attachment: %s)", msg.SenderID, msg.Content, msg.AttachmentURL)
				return
			}
			logger.Info("<%s> %s", msg.SenderID, msg.Content)
		},
		Fatal: func(ferr *session.FatalError) {
			select {
			case fatal <- ferr:
			default:
			}
		},
	})

	if err := ctl.Open(ctx, *server); err != nil {
		logger.Fatal("Session open failed: %v", err)
	}
	defer ctl.Close()

	go readInput(ctx, ctl)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Leaving room...")
	case ferr := <-fatal:
		if ferr.Kind == session.FatalAuth {
			logger.Error("Not authorized for this room: %v", ferr)
		} else {
			logger.Error("Session ended: %v", ferr)
		}
	}
}

// readInput turns stdin lines into message sends. A guest always talks to
// the owner; the owner picks a guest with "/to <userId> <message>".
func readInput(ctx context.Context, ctl *session.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		receiver, content := resolveReceiver(ctl, line)
		if receiver == "" {
			logger.Warn("No one to send to; use /to <userId> <message>")
			continue
		}

		if _, err := ctl.SendMessage(ctx, receiver, content, nil); err != nil {
			logger.Error("Send failed: %v", err)
		}
	}
}

func resolveReceiver(ctl *session.Controller, line string) (string, string) {
	if strings.HasPrefix(line, "/to ") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 3 {
			return "", ""
		}
		return parts[1], parts[2]
	}
	if peer, ok := ctl.Peer(); ok {
		return peer.UserID, line
	}
	// Owner fallback: most recently active guest.
	if users := ctl.ActiveUsers(); len(users) > 0 {
		return users[0].UserID, line
	}
	return "", ""
}
