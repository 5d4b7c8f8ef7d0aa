package payload

import (
	"context"
	"errors"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"go.uber.org/zap"
)

// WireFormatInstructions tells a model how to answer with a project payload.
const WireFormatInstructions = `Reply with the project files wrapped in ` + StartTag + ` and ` + EndTag + ` tags:
` + StartTag + `
{"files":[{"path":"rel/path","content":"...","executable":false}],"postInstall":"...","start":"..."}
` + EndTag + `
Rules: no prose outside the tags, valid JSON only, forward-slash relative paths, newlines in content escaped as \n, no triple-backtick fences inside the block.`

const repairSystemPrompt = "You convert malformed answers into the strict project payload format. " +
	"Output only the tag-wrapped JSON and nothing else."

// parser extracts a project from text.
type parser interface {
	Parse(text string) (*GeneratedProject, error)
}

// generator is the model used for the repair round trip.
type generator interface {
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
}

// Repairer parses model replies and, on failure, asks the model once to
// rewrite its reply in the wire format.
type Repairer struct {
	model  generator
	parser parser
	logger *zap.Logger
}

// NewRepairer creates a Repairer. A nil p parses with NewDispatcher().
func NewRepairer(model generator, p parser, logger *zap.Logger) *Repairer {
	if model == nil {
		panic("model is required")
	}
	if p == nil {
		p = NewDispatcher()
	}
	return &Repairer{model: model, parser: p, logger: logging.OrNop(logger)}
}

// ParseWithRepair parses raw. If that fails it sends exactly one repair
// request at temperature 0 and parses the reply. A second failure returns an
// *UnparsableError holding raw unchanged.
func (r *Repairer) ParseWithRepair(ctx context.Context, raw string) (*GeneratedProject, error) {
	if p, err := r.parser.Parse(raw); err == nil {
		return p, nil
	}

	r.logger.Info("payload unparsable, requesting repair", zap.Int("rawChars", len(raw)))

	resp, err := r.model.Generate(ctx, &models.Request{
		System:      repairSystemPrompt,
		Messages:    []models.Message{{Role: models.RoleUser, Content: RepairPrompt(raw)}},
		Temperature: models.Float32(0),
	})
	if err != nil && (resp == nil || resp.Message.Content == "") {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		r.logger.Warn("repair request failed", zap.Error(err))
		return nil, &UnparsableError{Raw: raw, Cause: err}
	}

	p, perr := r.parser.Parse(resp.Message.Content)
	if perr != nil {
		r.logger.Warn("repaired payload still unparsable")
		return nil, &UnparsableError{Raw: raw}
	}
	return p, nil
}

// RepairPrompt embeds raw in the instruction to rewrite it.
func RepairPrompt(raw string) string {
	return "Your previous answer could not be parsed. Rewrite it so that it follows this format exactly.\n\n" +
		WireFormatInstructions +
		"\n\nPrevious answer:\n" + raw
}
