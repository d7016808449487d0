package llm

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwebster45206/lifequest/pkg/game"
)

type Verdict string

const (
	VerdictApproved  Verdict = "APPROVED"
	VerdictRejected  Verdict = "REJECTED"
	VerdictUncertain Verdict = "UNCERTAIN"
)

// Verification is the verifier's judgement on submitted evidence.
type Verification struct {
	Verdict        Verdict  `json:"verdict"`
	Reason         string   `json:"reason"`
	DetectedLabels []string `json:"detected_labels,omitempty"`
	FollowUp       string   `json:"follow_up,omitempty"`
}

// Evidence is what the player submitted for a quest.
type Evidence struct {
	Mode       game.VerificationType
	QuestTitle string
	Text       string
	Image      []byte
	ImageMIME  string
	Keywords   []string
}

var verificationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"verdict":         map[string]interface{}{"type": "string", "enum": []string{"APPROVED", "REJECTED", "UNCERTAIN"}},
		"reason":          map[string]interface{}{"type": "string"},
		"detected_labels": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"follow_up":       map[string]interface{}{"type": "string"},
	},
	"required": []string{"verdict", "reason"},
}

const verifierSystemPrompt = `You verify whether a player completed a real-life quest.
Judge only the evidence given. Reply with JSON:
{"verdict": "APPROVED|REJECTED|UNCERTAIN", "reason": "...", "detected_labels": ["..."], "follow_up": "question to ask when UNCERTAIN"}`

// VerifyMultimodal judges TEXT or IMAGE evidence. Unknown verdicts are
// reported as UNCERTAIN.
func (g *Gateway) VerifyMultimodal(ctx context.Context, ev Evidence) (*Verification, error) {
	const op = "llm.verify_multimodal"
	ctx, span := g.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("verification.mode", string(ev.Mode))))
	defer span.End()

	if ev.Mode != game.VerifyText && ev.Mode != game.VerifyImage {
		return nil, game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("unsupported verification mode %q", ev.Mode))
	}
	p := g.provider
	if ev.Mode == game.VerifyImage {
		p = g.vision
	}
	if p == nil {
		return nil, game.NewError(game.ErrAIOffline, op, "no provider configured")
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Quest: %s\n", ev.QuestTitle)
	if len(ev.Keywords) > 0 {
		fmt.Fprintf(&user, "Expected evidence keywords: %s\n", strings.Join(ev.Keywords, ", "))
	}
	if ev.Mode == game.VerifyText {
		fmt.Fprintf(&user, "Player report: %s\n", ev.Text)
	} else {
		user.WriteString("The attached image is the player's proof.\n")
	}

	req := Request{
		System:     verifierSystemPrompt,
		User:       user.String(),
		SchemaName: "verification",
		Schema:     verificationSchema,
	}
	if ev.Mode == game.VerifyImage {
		req.Image = ev.Image
		req.ImageMIME = ev.ImageMIME
	}

	raw, err := g.generate(ctx, p, req, SchemaHint{Name: "verification", Budget: BudgetDefault})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(game.KindOf(err)))
		return nil, err
	}

	var v Verification
	if err := Decode(raw, &v); err != nil {
		return nil, err
	}
	v.Verdict = Verdict(strings.ToUpper(strings.TrimSpace(string(v.Verdict))))
	switch v.Verdict {
	case VerdictApproved, VerdictRejected, VerdictUncertain:
	default:
		v.Verdict = VerdictUncertain
	}
	span.SetAttributes(attribute.String("verification.verdict", string(v.Verdict)))
	return &v, nil
}
