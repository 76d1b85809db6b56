// Package agent routes each conversation turn through a per-turn state
// machine: classify the input, dispatch to search, chat or try-on handling,
// and compose the reply. Orchestrator logic is shared across sessions; all
// per-conversation state lives in the Session entity.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modaio/stylist/compose"
	"github.com/modaio/stylist/core"
	"github.com/modaio/stylist/fusion"
	"github.com/modaio/stylist/session"
)

// turnState is the orchestrator's per-turn position. Every turn runs
// Idle -> Classifying -> handler -> Responding synchronously; no intermediate
// state is observable to the caller.
type turnState string

const (
	stateIdle                turnState = "idle"
	stateClassifying         turnState = "classifying"
	stateSearching           turnState = "searching"
	stateChatting            turnState = "chatting"
	stateAwaitingTryOnUpload turnState = "awaiting_tryon_upload"
	stateGeneratingTryOn     turnState = "generating_tryon"
	stateResponding          turnState = "responding"
)

// transitions is the exhaustive legal-move table for the turn state machine.
var transitions = map[turnState][]turnState{
	stateIdle:                {stateClassifying},
	stateClassifying:         {stateSearching, stateChatting, stateAwaitingTryOnUpload, stateGeneratingTryOn, stateResponding},
	stateSearching:           {stateResponding},
	stateChatting:            {stateResponding},
	stateAwaitingTryOnUpload: {stateResponding},
	stateGeneratingTryOn:     {stateResponding, stateAwaitingTryOnUpload},
	stateResponding:          {stateIdle},
}

// Config tunes orchestrator behavior.
type Config struct {
	// MaxChatTurns bounds the history forwarded to the chat collaborator.
	MaxChatTurns int `yaml:"max_chat_turns" json:"max_chat_turns"`

	// RefineTextWeight / RefineImageWeight are the fusion weights for
	// "this but X" refinements, where the anchor image dominates.
	RefineTextWeight  float32 `yaml:"refine_text_weight" json:"refine_text_weight"`
	RefineImageWeight float32 `yaml:"refine_image_weight" json:"refine_image_weight"`

	// Decomposition selects compound-query handling: "independent" (default)
	// late-fuses each sub-query into its own group; early fusion applies only
	// to explicit refinement phrasing regardless of this setting.
	Decomposition string `yaml:"decomposition" json:"decomposition"`

	// TurnTimeout bounds one full turn including collaborator calls.
	TurnTimeout time.Duration `yaml:"turn_timeout" json:"turn_timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxChatTurns:      10,
		RefineTextWeight:  0.4,
		RefineImageWeight: 0.6,
		Decomposition:     "independent",
		TurnTimeout:       60 * time.Second,
	}
}

// TurnInput is one incoming turn.
type TurnInput struct {
	SessionID    string
	Text         string
	Image        []byte
	GenderFilter core.Gender
}

// TurnOutput is the composed result of one turn.
type TurnOutput struct {
	SessionID string        `json:"session_id"`
	Intent    core.Intent   `json:"intent"`
	Reply     compose.Reply `json:"reply"`
	// Degraded names a modality that failed but was compensated for
	// ("text" or "image"), empty on a clean turn.
	Degraded string `json:"degraded,omitempty"`
}

// Orchestrator coordinates one turn end to end. It is safe for concurrent use
// across sessions; turns on the same session are serialized by the store.
type Orchestrator struct {
	sessions   *session.Store
	engine     *fusion.Engine
	index      core.VectorIndex
	embedder   core.Embedder
	chat       core.ChatModel
	tryon      core.TryOnRenderer
	classifier *Classifier
	composer   *compose.Composer
	cfg        Config
	logger     *slog.Logger
}

// NewOrchestrator wires the orchestrator. chat and tryon may be nil when the
// deployment has no such collaborator; turns needing them fail with
// ErrCollaborator.
func NewOrchestrator(sessions *session.Store, engine *fusion.Engine, index core.VectorIndex,
	embedder core.Embedder, chat core.ChatModel, tryon core.TryOnRenderer,
	classifier *Classifier, cfg Config, logger *slog.Logger) *Orchestrator {

	def := DefaultConfig()
	if cfg.MaxChatTurns <= 0 {
		cfg.MaxChatTurns = def.MaxChatTurns
	}
	if cfg.RefineTextWeight <= 0 && cfg.RefineImageWeight <= 0 {
		cfg.RefineTextWeight = def.RefineTextWeight
		cfg.RefineImageWeight = def.RefineImageWeight
	}
	if cfg.Decomposition == "" {
		cfg.Decomposition = def.Decomposition
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = def.TurnTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:   sessions,
		engine:     engine,
		index:      index,
		embedder:   embedder,
		chat:       chat,
		tryon:      tryon,
		classifier: classifier,
		composer:   compose.NewComposer(),
		cfg:        cfg,
		logger:     logger,
	}
}

func (o *Orchestrator) advance(from, to turnState) turnState {
	for _, legal := range transitions[from] {
		if legal == to {
			return to
		}
	}
	// A bad transition is a programming error, not a runtime condition.
	panic(fmt.Sprintf("agent: illegal transition %s -> %s", from, to))
}

// HandleTurn runs one turn. The session is mutated only after the whole
// pipeline succeeds; any error leaves it at its pre-turn state.
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	sess, release, err := o.sessions.Checkout(in.SessionID)
	if err != nil {
		return TurnOutput{SessionID: in.SessionID}, err
	}
	defer release()

	st := o.advance(stateIdle, stateClassifying)
	cls := o.classifier.Classify(in.Text, len(in.Image) > 0, sess)
	o.resolveGender(&cls, in.GenderFilter, sess)

	out := TurnOutput{SessionID: sess.ID, Intent: cls.Intent}

	switch cls.Intent {
	case core.IntentGreeting:
		st = o.advance(st, stateResponding)
		out.Reply = o.composer.Greeting()

	case core.IntentUnknown:
		st = o.advance(st, stateResponding)
		out.Reply = o.composer.Redirect()

	case core.IntentChat:
		st = o.advance(st, stateChatting)
		reply, chatErr := o.handleChat(ctx, sess, in.Text)
		if chatErr != nil {
			return out, chatErr
		}
		st = o.advance(st, stateResponding)
		out.Reply = reply

	case core.IntentTryOn:
		st = o.advance(st, stateAwaitingTryOnUpload)
		reply, tryErr := o.handleTryOnSelect(sess, cls)
		if tryErr != nil {
			return out, tryErr
		}
		st = o.advance(st, stateResponding)
		out.Reply = reply

	case core.IntentSearch:
		st = o.advance(st, stateSearching)
		groups, degraded, searchErr := o.handleSearch(ctx, sess, cls, in)
		if searchErr != nil {
			return out, searchErr
		}
		st = o.advance(st, stateResponding)
		out.Degraded = degraded
		out.Reply = o.composer.Compose(groups, "")
		sess.LastResults = groups
		if cls.ItemType != "" {
			sess.LastItemType = cls.ItemType
		}
	}

	_ = o.advance(st, stateIdle)

	if in.Text != "" {
		sess.Turns = append(sess.Turns, core.Turn{Role: core.RoleUser, Content: in.Text})
	}
	sess.Turns = append(sess.Turns, core.Turn{Role: core.RoleAssistant, Content: out.Reply.FinalResponse})

	if err := o.sessions.Save(sess); err != nil {
		return out, err
	}
	return out, nil
}

// resolveGender applies the priority order: query text, then the caller's
// explicit filter, then everything.
func (o *Orchestrator) resolveGender(cls *Classification, selected core.Gender, sess *core.Session) {
	switch {
	case cls.GenderFromText:
		sess.ActiveFilter.Gender = cls.Gender
	case selected == core.GenderMale || selected == core.GenderFemale:
		sess.ActiveFilter.Gender = selected
	default:
		sess.ActiveFilter.Gender = core.GenderBoth
	}
}

func (o *Orchestrator) handleChat(ctx context.Context, sess *core.Session, text string) (compose.Reply, error) {
	if o.chat == nil {
		return compose.Reply{}, fmt.Errorf("%w: no chat collaborator configured", core.ErrCollaborator)
	}
	history := sess.Turns
	if len(history) > o.cfg.MaxChatTurns {
		history = history[len(history)-o.cfg.MaxChatTurns:]
	}
	turns := append(append([]core.Turn(nil), history...), core.Turn{Role: core.RoleUser, Content: text})

	reply, err := o.chat.Chat(ctx, turns)
	if err != nil {
		return compose.Reply{}, fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	return o.composer.Compose(nil, reply), nil
}

// handleTryOnSelect records the garment selection and asks for the person
// photo. The garment must exist in last_results or the catalog.
func (o *Orchestrator) handleTryOnSelect(sess *core.Session, cls Classification) (compose.Reply, error) {
	var garmentID, title string

	if cls.Refinement != nil {
		garmentID = cls.Refinement.ProductID
	} else if len(sess.LastResults) > 0 {
		results := sess.LastResults[len(sess.LastResults)-1].Results
		if len(results) > 0 {
			garmentID = results[0].ProductID
		}
	}
	if garmentID == "" {
		return compose.Reply{}, fmt.Errorf("%w: no garment selected for try-on", core.ErrValidation)
	}
	if p, ok := o.index.Get(garmentID); ok {
		title = p.Metadata.Title
	} else if r, found := resultByID(sess, garmentID); found {
		title = r.Metadata.Title
	} else {
		return compose.Reply{}, fmt.Errorf("%w: unknown garment %q", core.ErrValidation, garmentID)
	}

	sess.PendingTryOn = &core.PendingTryOn{GarmentID: garmentID, State: core.TryOnAwaitingUpload}
	return o.composer.TryOnPrompt(title), nil
}

func resultByID(sess *core.Session, id string) (core.SearchResult, bool) {
	for _, g := range sess.LastResults {
		for _, r := range g.Results {
			if r.ProductID == id {
				return r, true
			}
		}
	}
	return core.SearchResult{}, false
}

// garmentRef resolves a garment's render image from the catalog or, for
// products no longer indexed, from the session's last results.
func (o *Orchestrator) garmentRef(sess *core.Session, id string) (string, bool) {
	if id == "" {
		return "", false
	}
	if p, ok := o.index.Get(id); ok {
		return p.Metadata.ImageRef, true
	}
	if r, ok := resultByID(sess, id); ok {
		return r.Metadata.ImageRef, true
	}
	return "", false
}

// handleSearch runs the classified sub-queries through the fusion engine.
// Sub-queries fan out in parallel; group order follows classification order.
func (o *Orchestrator) handleSearch(ctx context.Context, sess *core.Session, cls Classification, in TurnInput) ([]core.QueryGroup, string, error) {
	filter := sess.ActiveFilter

	// Refinement: anchor on the referenced product's embedding and early-fuse
	// it with the refinement text.
	if cls.Refinement != nil && cls.Refinement.Text != "" {
		anchor, ok := o.index.Get(cls.Refinement.ProductID)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", core.ErrProductNotFound, cls.Refinement.ProductID)
		}
		q := core.Query{
			Text:        cls.Refinement.Text,
			ImageVector: anchor.Embedding,
			Filter:      filter,
			WeightText:  o.cfg.RefineTextWeight,
			WeightImage: o.cfg.RefineImageWeight,
			Mode:        core.FusionEarly,
		}
		label := cls.Refinement.Text + " (like " + anchor.Metadata.Title + ")"
		res, err := o.engine.Run(ctx, q, label, "")
		if err != nil {
			return nil, "", err
		}
		return []core.QueryGroup{res.Group}, res.DegradedModality, nil
	}

	var imageVec []float32
	var degraded string
	if len(in.Image) > 0 {
		vec, err := o.embedder.EmbedImage(ctx, in.Image)
		if err != nil {
			if len(cls.SubQueries) == 0 || cls.SubQueries[0].Text == "" {
				// Image was the only signal.
				return nil, "", fmt.Errorf("%w: image embedding: %v", core.ErrEmbeddingFailure, err)
			}
			o.logger.Warn("image embedding failed, degrading to text only", "error", err)
			degraded = "image"
		} else {
			imageVec = vec
		}
	}

	// A single coherent query with an upload fuses the modalities before the
	// lookup; late fusion is reserved for decomposed sub-queries.
	mode := core.FusionLate
	if imageVec != nil && len(cls.SubQueries) == 1 && cls.SubQueries[0].Text != "" {
		mode = core.FusionEarly
	}

	groups := make([]core.QueryGroup, len(cls.SubQueries))
	degradedMods := make([]string, len(cls.SubQueries))

	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range cls.SubQueries {
		g.Go(func() error {
			q := core.Query{
				Text:        sq.Text,
				ImageVector: imageVec,
				Filter:      filter,
				Mode:        mode,
			}
			if sq.Category != "" {
				q.Filter.Category = sq.Category
			}
			res, err := o.engine.Run(gctx, q, sq.Label, sq.Category)
			if err != nil {
				return err
			}
			groups[i] = res.Group
			degradedMods[i] = res.DegradedModality
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	for _, d := range degradedMods {
		if d != "" && degraded == "" {
			degraded = d
		}
	}
	return groups, degraded, nil
}

// TryOn renders the pending garment on the supplied person photo. On
// collaborator failure the garment selection is kept and the error is
// retryable; an unknown garment is a validation error and clears nothing
// beyond the invalid selection.
func (o *Orchestrator) TryOn(ctx context.Context, sessionID string, personImage []byte, garmentID string, randomizeSeed bool) ([]byte, error) {
	if len(personImage) == 0 {
		return nil, fmt.Errorf("%w: person image is required", core.ErrValidation)
	}
	if o.tryon == nil {
		return nil, fmt.Errorf("%w: no try-on collaborator configured", core.ErrCollaborator)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	sess, release, err := o.sessions.Checkout(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if garmentID == "" && sess.PendingTryOn != nil {
		garmentID = sess.PendingTryOn.GarmentID
	}
	ref, known := o.garmentRef(sess, garmentID)
	if !known || ref == "" {
		// Either way the selection is unusable; drop it so the next attempt
		// starts clean.
		sess.PendingTryOn = nil
		if saveErr := o.sessions.Save(sess); saveErr != nil {
			o.logger.Warn("session save failed", "error", saveErr)
		}
		if !known {
			return nil, fmt.Errorf("%w: unknown garment %q", core.ErrValidation, garmentID)
		}
		return nil, fmt.Errorf("%w: garment %q has no image to render", core.ErrValidation, garmentID)
	}

	sess.PendingTryOn = &core.PendingTryOn{GarmentID: garmentID, State: core.TryOnGenerating}

	req := core.TryOnRequest{
		PersonImage:   personImage,
		GarmentRef:    ref,
		RandomizeSeed: randomizeSeed,
	}

	rendered, err := o.tryon.Render(ctx, req)
	if err != nil {
		// Keep the selection so the caller can retry without re-picking.
		sess.PendingTryOn = &core.PendingTryOn{GarmentID: garmentID, State: core.TryOnAwaitingUpload}
		if saveErr := o.sessions.Save(sess); saveErr != nil {
			o.logger.Warn("session save failed", "error", saveErr)
		}
		return nil, fmt.Errorf("%w: try-on render: %v", core.ErrCollaborator, err)
	}

	sess.PendingTryOn = nil
	if err := o.sessions.Save(sess); err != nil {
		return nil, err
	}
	return rendered, nil
}

// Transcribe converts a voice clip to text via the transcription collaborator.
func (o *Orchestrator) Transcribe(ctx context.Context, tr core.Transcriber, audio []byte, filename string) (string, error) {
	if tr == nil {
		return "", fmt.Errorf("%w: no transcription collaborator configured", core.ErrCollaborator)
	}
	text, err := tr.Transcribe(ctx, audio, filename)
	if err != nil {
		return "", fmt.Errorf("%w: transcription: %v", core.ErrCollaborator, err)
	}
	return text, nil
}
