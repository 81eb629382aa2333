// Command bridge wires a Telegram chat to a persistent coding-agent child
// process: it loads configuration, starts the agent runner, and dispatches
// incoming messages to the Turn Coordinator until the process is asked to
// shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nevindra/chatbridge"
	"github.com/nevindra/chatbridge/coordinator"
	"github.com/nevindra/chatbridge/frontend/telegram"
	"github.com/nevindra/chatbridge/internal/config"
	"github.com/nevindra/chatbridge/internal/media"
	"github.com/nevindra/chatbridge/internal/toolserver"
	"github.com/nevindra/chatbridge/runner"
)

func main() {
	configPath := flag.String("config", "bridge.toml", "path to an optional TOML config file")
	toolServerPath := flag.String("tool-servers", "", "path to a JSON tool-server registration file")
	unprivileged := flag.Bool("unprivileged", false, "run the agent with --dangerously-skip-permissions")
	flag.Parse()

	cfg := config.Load(*configPath)
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg, *toolServerPath, *unprivileged); err != nil {
		log.Fatalf("bridge: %v", err)
	}
}

func run(cfg config.Config, toolServerPath string, unprivileged bool) error {
	uploadDir := filepath.Join(cfg.WorkDir, ".chatbridge-uploads")
	mediaTracker, err := media.New(uploadDir)
	if err != nil {
		return fmt.Errorf("media: %w", err)
	}
	mediaTracker.CleanupAll()

	bot := telegram.NewBot(cfg.BotToken)

	runnerOpts := []runner.Option{
		runner.WithWorkDir(cfg.WorkDir),
		runner.WithModel(cfg.Model),
		runner.WithMaxBudgetUSD(cfg.MaxBudgetUSD),
	}
	if unprivileged {
		runnerOpts = append(runnerOpts, runner.WithUnprivileged())
	}
	if toolServerPath != "" {
		names, err := toolserver.Names(toolServerPath)
		if err != nil {
			log.Printf("toolserver: %v", err)
		} else {
			runnerOpts = append(runnerOpts, runner.WithToolServers(names))
		}
	}
	agent := runner.New(runnerOpts...)

	coordOpts := []coordinator.Option{
		coordinator.WithUpdateInterval(cfg.UpdateInterval),
		coordinator.WithSessionTimeout(cfg.SessionTimeout),
	}
	if cfg.Verbose {
		coordOpts = append(coordOpts, coordinator.WithVerbose())
	}
	coord := coordinator.New(bot, agent, mediaTracker, cfg.ChatID, cfg.ChatID, coordOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs, err := bot.Poll(ctx)
	if err != nil {
		return fmt.Errorf("poll: %w", err)
	}

	log.Println("bridge: running")

	for {
		select {
		case <-ctx.Done():
			log.Println("bridge: shutting down")
			agent.Stop()
			return nil
		case msg, ok := <-msgs:
			if !ok {
				agent.Stop()
				return nil
			}
			dispatch(ctx, coord, bot, msg)
		}
	}
}

// dispatch routes one incoming message to the Coordinator, after the
// single-identity authorization check.
func dispatch(ctx context.Context, coord *coordinator.Coordinator, bot *telegram.Bot, msg chatbridge.IncomingMessage) {
	if msg.CallbackData != "" {
		if !coord.Authorized(msg.UserID) {
			return
		}
		_ = bot.AnswerCallback(ctx, msg.ID)
		if msg.CallbackData == chatbridge.CancelCallbackData {
			coord.HandleCancelCallback(ctx)
		}
		return
	}

	if !coord.Authorized(msg.UserID) {
		log.Printf("bridge: dropped message from unauthorized user=%s", msg.UserID)
		return
	}

	if msg.Document != nil {
		if err := coord.HandleDocument(ctx, *msg.Document, msg.Caption); err != nil {
			log.Printf("bridge: document download: %v", err)
		}
		return
	}
	if len(msg.Photos) > 0 {
		largest := msg.Photos[len(msg.Photos)-1]
		if err := coord.HandlePhoto(ctx, largest, msg.Caption); err != nil {
			log.Printf("bridge: photo download: %v", err)
		}
		return
	}
	if msg.Voice != nil {
		coord.HandleVoice(ctx)
		return
	}

	if cmd, arg, ok := parseCommand(msg.Text); ok {
		switch cmd {
		case "/cancel":
			coord.HandleCancel(ctx)
		case "/clear", "/new":
			coord.HandleClear(ctx)
		case "/cost":
			coord.HandleCost(ctx)
		case "/model":
			coord.HandleModel(ctx, arg)
		case "/compact":
			coord.HandleCompact(ctx)
		default:
			coord.HandleText(ctx, msg.Text)
		}
		return
	}

	if msg.Text != "" {
		coord.HandleText(ctx, msg.Text)
	}
}

// parseCommand recognizes a leading Telegram bot command, returning its
// name, the remaining argument text, and whether the message was a command
// at all.
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.SplitN(text, " ", 2)
	cmd = fields[0]
	if idx := strings.Index(cmd, "@"); idx != -1 {
		cmd = cmd[:idx]
	}
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}
	return cmd, arg, true
}
