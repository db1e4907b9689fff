// Package bot is the Discord surface: slash command registration, dispatch,
// and reply formatting over one gateway connection.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/kaodean/monco/internal/config"
	"github.com/kaodean/monco/internal/sessions"
	"github.com/kaodean/monco/internal/store"
	"github.com/kaodean/monco/internal/telemetry"
	"github.com/kaodean/monco/internal/workspace"
)

// UsageSource reads a user's lifetime usage totals. May be nil when the
// ledger is unavailable; /status then shows session totals only.
type UsageSource interface {
	UserUsage(userID string) (store.Usage, error)
}

// Bot runs the Discord gateway connection and routes slash commands to the
// session registry.
type Bot struct {
	dg       *discordgo.Session
	registry *sessions.Registry
	ws       *workspace.Manager
	cfg      *config.Config
	usage    UsageSource
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	handlers map[string]func(ctx context.Context, ic *discordgo.InteractionCreate) error
}

// New creates the bot and its gateway session. Call Start to connect.
func New(cfg *config.Config, registry *sessions.Registry, ws *workspace.Manager, usage UsageSource, metrics *telemetry.Metrics, logger *slog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("bot: create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		dg:       dg,
		registry: registry,
		ws:       ws,
		cfg:      cfg,
		usage:    usage,
		metrics:  metrics,
		logger:   logger,
	}
	b.handlers = map[string]func(ctx context.Context, ic *discordgo.InteractionCreate) error{
		"help":    b.handleHelp,
		"run":     b.handleRun,
		"code":    b.handleCode,
		"reset":   b.handleReset,
		"status":  b.handleStatus,
		"cleanup": b.handleCleanup,
	}
	return b, nil
}

// Start opens the gateway connection and registers the global slash
// commands. It returns once the bot is serving.
func (b *Bot) Start(ctx context.Context) error {
	b.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("discord gateway ready", "user", r.User.Username)
	})
	b.dg.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
		b.dispatch(ctx, ic)
	})

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("bot: open gateway: %w", err)
	}

	if _, err := b.dg.ApplicationCommandBulkOverwrite(b.dg.State.User.ID, "", commandDefinitions()); err != nil {
		_ = b.dg.Close()
		return fmt.Errorf("bot: register commands: %w", err)
	}

	b.logger.Info("slash commands registered", "count", len(commandDefinitions()))
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.dg.Close()
}

// dispatch routes one interaction to its handler. Every command gets a
// deferred acknowledgement first; handler panics and errors become a single
// apologetic reply instead of a silent timeout.
func (b *Bot) dispatch(ctx context.Context, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := ic.ApplicationCommandData().Name
	handler, ok := b.handlers[name]
	if !ok {
		return
	}

	go func() {
		status := "ok"
		defer func() {
			if r := recover(); r != nil {
				status = "panic"
				b.logger.Error("command handler panic", "command", name, "panic", fmt.Sprintf("%v", r))
				b.editReply(ic, "An unexpected error occurred. Please try again.")
			}
			if b.metrics != nil {
				b.metrics.CommandsTotal.WithLabelValues(name, status).Inc()
			}
		}()

		if err := b.defer_(ic); err != nil {
			status = "error"
			b.logger.Warn("interaction ack failed", "command", name, "error", err)
			return
		}

		log := telemetry.CommandLogger(b.logger, name, userID(ic))
		log.Info("command received")
		start := time.Now()

		if err := handler(ctx, ic); err != nil {
			status = "error"
			log.Error("command failed", "error", err)
			b.editReply(ic, fmt.Sprintf("Error: %v", err))
			return
		}
		log.Info("command completed", "duration", time.Since(start).String())
	}()
}

// userID resolves the invoking user for both guild and DM interactions.
func userID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

// option returns the named string option of a command, or "".
func option(ic *discordgo.InteractionCreate, name string) string {
	for _, opt := range ic.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// boolOption returns the named boolean option, false when absent.
func boolOption(ic *discordgo.InteractionCreate, name string) bool {
	for _, opt := range ic.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt.BoolValue()
		}
	}
	return false
}

// intOption returns the named integer option, 0 when absent.
func intOption(ic *discordgo.InteractionCreate, name string) int {
	for _, opt := range ic.ApplicationCommandData().Options {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return 0
}

func (b *Bot) defer_(ic *discordgo.InteractionCreate) error {
	return b.dg.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

// editReply replaces the deferred response with content.
func (b *Bot) editReply(ic *discordgo.InteractionCreate, content string) {
	if _, err := b.dg.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		b.logger.Warn("reply edit failed", "error", err)
	}
}

// followUp posts an additional message after the initial response.
func (b *Bot) followUp(ic *discordgo.InteractionCreate, content string) {
	if _, err := b.dg.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content: content,
	}); err != nil {
		b.logger.Warn("follow-up failed", "error", err)
	}
}

// sendChunked delivers long output as an edit of the deferred reply plus
// follow-up messages, each inside a code fence.
func (b *Bot) sendChunked(ic *discordgo.InteractionCreate, output string) {
	chunks := chunkOutput(output, maxChunkRunes)
	if len(chunks) == 0 {
		b.editReply(ic, "(no output)")
		return
	}
	b.editReply(ic, fence(chunks[0]))
	for _, c := range chunks[1:] {
		b.followUp(ic, fence(c))
	}
}

var progressInterval = 15 * time.Second

// startProgress begins periodic elapsed-time edits of the deferred reply.
// The returned stop function blocks until the updater has fully exited, so a
// final reply written after stop returns can never be overwritten by an
// in-flight progress edit.
func (b *Bot) startProgress(ic *discordgo.InteractionCreate, label string) (stop func()) {
	return progressLoop(progressInterval, func(elapsed time.Duration) {
		b.editReply(ic, fmt.Sprintf("%s (%.0fs elapsed)", label, elapsed.Seconds()))
	})
}

// progressLoop invokes edit every interval until the returned stop function
// is called; stop waits for the loop goroutine to finish.
func progressLoop(interval time.Duration, edit func(elapsed time.Duration)) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	start := time.Now()

	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				edit(time.Since(start))
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}
