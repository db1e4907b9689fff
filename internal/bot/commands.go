package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/kaodean/monco/internal/sessions"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	taskOption := []*discordgo.ApplicationCommandOption{{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "task",
		Description: "What to do",
		Required:    true,
	}}

	one := 1.0

	return []*discordgo.ApplicationCommand{
		{Name: "help", Description: "Show available commands"},
		{Name: "run", Description: "Run a task in your workspace", Options: taskOption},
		{
			Name:        "code",
			Description: "Generate a project and publish it to GitHub",
			Options: append(taskOption, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "max_iterations",
				Description: "Turn budget for the generation phase",
				MinValue:    &one,
			}),
		},
		{Name: "reset", Description: "Start a fresh session with an empty workspace"},
		{Name: "status", Description: "Show your session and workspace status"},
		{
			Name:        "cleanup",
			Description: "Delete workspace files, keeping configuration and memory",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "delete_all",
				Description: "Delete everything and start a fresh session",
			}},
		},
	}
}

const helpText = `**Monco Commands**

` + "`/run task:<text>`" + ` run a task in your personal workspace
` + "`/code task:<text>`" + ` generate a full project and publish it to GitHub
` + "`/status`" + ` show your session, workspace size, and usage totals
` + "`/cleanup`" + ` delete workspace files (keeps configuration and memory)
` + "`/reset`" + ` start over with a brand-new workspace
` + "`/help`" + ` show this message

Each user gets an isolated workspace. Idle sessions expire automatically.`

func (b *Bot) handleHelp(_ context.Context, ic *discordgo.InteractionCreate) error {
	b.editReply(ic, helpText)
	return nil
}

func (b *Bot) handleRun(ctx context.Context, ic *discordgo.InteractionCreate) error {
	task := option(ic, "task")
	if strings.TrimSpace(task) == "" {
		b.editReply(ic, "Please provide a task.")
		return nil
	}

	s, err := b.registry.GetOrCreate(ctx, userID(ic))
	if err != nil {
		return err
	}
	s.Touch()

	stop := b.startProgress(ic, "Working on your task...")
	result := s.Agent.Execute(ctx, task, true)
	stop()

	if !result.Success {
		b.editReply(ic, formatErrors(result.Output))
		return nil
	}
	b.sendChunked(ic, result.Output)
	return nil
}

func (b *Bot) handleReset(ctx context.Context, ic *discordgo.InteractionCreate) error {
	s, oldUUID, err := b.registry.Reset(ctx, userID(ic))
	if err != nil {
		return err
	}
	if oldUUID == "" {
		b.editReply(ic, fmt.Sprintf("New session created.\nSession UUID: `%s`", s.UUID))
		return nil
	}
	b.editReply(ic, fmt.Sprintf(
		"Session reset.\nOld session: `%s` (files kept on disk)\nNew session: `%s`",
		oldUUID, s.UUID))
	return nil
}

func (b *Bot) handleStatus(_ context.Context, ic *discordgo.InteractionCreate) error {
	s, ok := b.registry.Lookup(userID(ic))
	if !ok {
		b.editReply(ic, "No active session. Use `/run` to start one.")
		return nil
	}
	b.editReply(ic, b.statusMessage(s))
	return nil
}

// statusMessage renders the /status reply: session, workspace band, and the
// session's totals, plus lifetime totals from the ledger when available.
func (b *Bot) statusMessage(s *sessions.Session) string {
	limits := b.cfg.Limits()
	sizeMB := b.ws.SizeMB(s.Path)
	files := b.ws.FileCount(s.Path)
	tasks, cost := s.Stats()

	percent := 0.0
	if limits.MaxWorkspaceMB > 0 {
		percent = sizeMB / float64(limits.MaxWorkspaceMB) * 100
	}
	band := "OK"
	switch {
	case percent >= 90:
		band = "CRITICAL"
	case percent >= 70:
		band = "WARNING"
	}

	idle := time.Since(s.LastUsed()).Round(time.Minute)
	expiresIn := limits.SessionExpiry - time.Since(s.LastUsed())
	if expiresIn < 0 {
		expiresIn = 0
	}

	msg := fmt.Sprintf(
		"**Session Status**\n"+
			"Session UUID: `%s`\n"+
			"Created: %s\n"+
			"Idle: %s (expires in %s)\n\n"+
			"**Workspace** [%s]\n"+
			"Size: %.1fMB / %dMB (%.0f%%)\n"+
			"Files: %d\n\n"+
			"**Usage**\n"+
			"Tasks: %d\n"+
			"Total cost: $%.4f USD",
		s.UUID,
		s.CreatedAt.Format("2006-01-02 15:04:05"),
		idle, expiresIn.Round(time.Minute),
		band, sizeMB, limits.MaxWorkspaceMB, percent,
		files,
		tasks, cost)

	if b.usage != nil {
		u, err := b.usage.UserUsage(s.UserID)
		if err != nil {
			b.logger.Warn("usage lookup failed", "user", s.UserID, "error", err)
		} else if u.TotalTasks > 0 {
			msg += fmt.Sprintf("\nLifetime: %d tasks, $%.4f USD", u.TotalTasks, u.TotalCostUSD)
		}
	}
	return msg
}

func (b *Bot) handleCleanup(ctx context.Context, ic *discordgo.InteractionCreate) error {
	msg, err := b.runCleanup(ctx, userID(ic), boolOption(ic, "delete_all"))
	if err != nil {
		return err
	}
	b.editReply(ic, msg)
	return nil
}

// runCleanup implements both cleanup modes. The default deletes user files in
// place, keeping configuration and memory; delete_all swaps in a fresh
// session, the same transition as /reset, and reports the freed size.
func (b *Bot) runCleanup(ctx context.Context, uid string, deleteAll bool) (string, error) {
	s, ok := b.registry.Lookup(uid)
	if !ok {
		return "No active session, nothing to clean.", nil
	}
	s.Touch()
	before := b.ws.SizeMB(s.Path)

	if deleteAll {
		fresh, _, err := b.registry.Reset(ctx, uid)
		if err != nil {
			return "", err
		}
		after := b.ws.SizeMB(fresh.Path)
		return fmt.Sprintf(
			"Workspace fully cleaned.\nFreed: %.1fMB (%.1fMB -> %.1fMB)\nNew session: `%s`",
			before-after, before, after, fresh.UUID), nil
	}

	if err := b.ws.CleanPartial(s.Path); err != nil {
		return "", err
	}
	after := b.ws.SizeMB(s.Path)
	return fmt.Sprintf(
		"Workspace cleaned.\nFreed: %.1fMB (%.1fMB -> %.1fMB)\nConfiguration and memory file kept.",
		before-after, before, after), nil
}

// formatErrors renders a failed execution's output for Discord, keeping the
// tail if the transcript is long.
func formatErrors(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		output = "Task failed with no output."
	}
	runes := []rune(output)
	if len(runes) > maxChunkRunes {
		runes = runes[len(runes)-maxChunkRunes:]
	}
	return fence(string(runes))
}
