package session

import (
	"context"
	"log/slog"

	"vivavoce/backend/internal/adapter/realtime"
	"vivavoce/backend/internal/retrieval"
	"vivavoce/backend/internal/settings"
)

// bootstrapQuery primes retrieval before the first question is ever asked, so
// uploaded materials make it into the examiner's opening instructions.
const bootstrapQuery = "speaking exam practice topics, example questions and model answers"

const baselineInstructions = `You are a strict but encouraging oral examiner conducting a structured speaking exam.

The exam has three parts:
Part 1 - Introduction and interview: ask short questions about familiar topics (home, work, studies, interests). Keep this part to four or five questions.
Part 2 - Long turn: give the candidate a topic card, allow one minute to prepare, then let them speak for up to two minutes without interruption. Ask one or two follow-up questions.
Part 3 - Discussion: ask more abstract questions connected to the Part 2 topic and probe for extended, reasoned answers.

Speak clearly and at a natural pace. Ask exactly one question at a time and wait for the candidate's answer. Do not explain the exam structure unless asked. When the candidate asks for feedback, give a band score estimate from 1 to 9 with brief reasons, then offer a sample answer at the next band up.`

type Retriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) retrieval.Context
}

type SessionClient interface {
	CreateSession(ctx context.Context, cfg realtime.SessionConfig) (*realtime.Session, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Request is the caller-supplied session configuration; empty fields fall
// back to runtime settings and the baseline exam script.
type Request struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
}

// Negotiator resolves instructions, enriches them with retrieved material
// context and submits the session to the conversational collaborator. Its
// responsibility ends at producing a valid, unexpired credential for one
// session.
type Negotiator struct {
	client    SessionClient
	retriever Retriever
	settings  SettingsService
}

func NewNegotiator(client SessionClient, retriever Retriever, settings SettingsService) *Negotiator {
	return &Negotiator{client: client, retriever: retriever, settings: settings}
}

func (n *Negotiator) CreateSession(ctx context.Context, req Request) (*realtime.Session, error) {
	model := req.Model
	voice := req.Voice
	topK := retrieval.DefaultTopK

	if s, err := n.settings.Get(ctx); err == nil {
		if model == "" {
			model = s.RealtimeModel
		}
		if voice == "" {
			voice = s.RealtimeVoice
		}
		if s.SearchTopK > 0 {
			topK = s.SearchTopK
		}
	} else {
		slog.WarnContext(ctx, "failed to load settings for session defaults", "error", err)
	}

	instructions := req.Instructions
	if instructions == "" {
		instructions = baselineInstructions
	}

	// Context enrichment is best-effort: a failed retrieval must not abort
	// session creation.
	rc := n.retriever.RetrieveContext(ctx, bootstrapQuery, topK)
	if rc.HasContext {
		instructions = instructions + "\n\n" + retrieval.FormatContextForAI(rc)
		slog.InfoContext(ctx, "session instructions enriched with material context", "sources", len(rc.Sources))
	} else if rc.Err != "" {
		slog.WarnContext(ctx, "context enrichment skipped", "error", rc.Err)
	}

	session, err := n.client.CreateSession(ctx, realtime.SessionConfig{
		Model:        model,
		Voice:        voice,
		Instructions: instructions,
	})
	if err != nil {
		return nil, err
	}

	// The client secret is single-use and short-lived; it is returned to the
	// caller and never logged.
	slog.InfoContext(ctx, "realtime session created", "session_id", session.ID, "model", model)
	return session, nil
}
