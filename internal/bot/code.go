package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/kaodean/monco/internal/naming"
	"github.com/kaodean/monco/internal/sessions"
)

// Prompts for the three phases of the /code flow. The naming phase asks for
// exactly one line so extraction stays simple; the publish phase asks the
// agent to echo the final URL behind a fixed marker.
const (
	generatePromptFmt = `Create a complete, working project for the following request. ` +
		`Write all source files, a README.md, and any build or dependency files into the current workspace. ` +
		`Make sure the project actually runs.

Request: %s`

	namingPrompt = `Based on the project you just created, suggest a short name for its repository. ` +
		`Reply with exactly one line containing only the name, lowercase, using letters, digits, hyphens, or underscores.`

	publishPromptFmt = `Publish the project in the current workspace to GitHub as a new repository named "%s". ` +
		`Use the gh CLI to create the repository and push all files. ` +
		`When finished, output the repository URL on its own line in the form:
REPO_URL: https://github.com/<owner>/<repo>`
)

// handleCode runs the three-phase project flow: generate the project, pick a
// repository name, publish to GitHub. Each phase is one agent task in the
// same session, so later phases see the files earlier ones wrote. The
// max_iterations option caps the generation phase's turn budget.
func (b *Bot) handleCode(ctx context.Context, ic *discordgo.InteractionCreate) error {
	task := option(ic, "task")
	if strings.TrimSpace(task) == "" {
		b.editReply(ic, "Please describe the project to build.")
		return nil
	}
	maxIterations := intOption(ic, "max_iterations")

	s, err := b.registry.GetOrCreate(ctx, userID(ic))
	if err != nil {
		return err
	}
	s.Touch()

	stop := b.startProgress(ic, "Generating your project...")

	generate := s.Agent.ExecuteTurns(ctx, fmt.Sprintf(generatePromptFmt, task), true, maxIterations)
	if !generate.Success {
		stop()
		b.editReply(ic, formatErrors(generate.Output))
		return nil
	}

	name := naming.ProjectName(b.projectNameOutput(ctx, s))
	b.logger.Info("project name chosen", "name", name, "session", s.UUID)

	publish := s.Agent.Execute(ctx, fmt.Sprintf(publishPromptFmt, name), true)
	stop()

	if !publish.Success {
		b.editReply(ic, fmt.Sprintf(
			"Project `%s` was generated, but publishing failed:\n%s",
			name, formatErrors(publish.Output)))
		return nil
	}

	url := naming.RepoURL(publish.Output)
	if url == "" {
		// Publishing reported success but the transcript carried no URL.
		b.editReply(ic, fmt.Sprintf(
			"Project `%s` was generated and publishing succeeded, but no repository URL "+
				"could be found in the output. Check your GitHub account for the new repository.",
			name))
		return nil
	}

	b.editReply(ic, fmt.Sprintf("Project `%s` is ready: %s", name, url))
	b.sendTranscript(ic, generate.Output)
	return nil
}

// projectNameOutput runs the naming phase and returns its raw output. A
// failed naming task returns "", which the normalizer turns into a
// timestamped fallback name.
func (b *Bot) projectNameOutput(ctx context.Context, s *sessions.Session) string {
	result := s.Agent.Execute(ctx, namingPrompt, false)
	if !result.Success {
		b.logger.Warn("naming phase failed, using fallback", "session", s.UUID)
		return ""
	}
	return result.Output
}

// sendTranscript posts the generation transcript as follow-up messages,
// capped to the first few chunks.
func (b *Bot) sendTranscript(ic *discordgo.InteractionCreate, output string) {
	const maxTranscriptChunks = 3
	chunks := chunkOutput(output, maxChunkRunes)
	if len(chunks) > maxTranscriptChunks {
		chunks = chunks[:maxTranscriptChunks]
		chunks[maxTranscriptChunks-1] += "\n... (transcript truncated)"
	}
	for _, c := range chunks {
		b.followUp(ic, fence(c))
	}
}
