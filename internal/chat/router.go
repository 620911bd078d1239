package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/amnofal/amar-ai/internal/domain"
	"github.com/amnofal/amar-ai/internal/gemini"
)

// attachedImageMime is the mime type reported for user-attached images. The
// upload path re-encodes everything as JPEG before it reaches the server.
const attachedImageMime = "image/jpeg"

// Turn is one user input handed to the router: text and/or an image, plus
// the recent history (already capped by the caller) and the resolution hint.
type Turn struct {
	Text      string
	Image     string // base64, possibly with a data-URI prefix
	History   []domain.Message
	ImageSize domain.ImageSize
}

// Reply is the normalized response shape. Callers never need to know which
// mode produced it.
type Reply struct {
	Text           string
	GeneratedImage string // base64 data URI, empty when no image came back
}

// Models names the model used for each call shape.
type Models struct {
	Text     string
	Generate string
	Edit     string
}

// ContentClient is the transport dependency of the router.
type ContentClient interface {
	GenerateContent(ctx context.Context, model string, req *gemini.GenerateContentRequest) (*gemini.GenerateContentResponse, error)
}

// Router builds the mode-specific Gemini request for a turn and normalizes
// the heterogeneous reply shapes into a single Reply.
type Router struct {
	client ContentClient
	models Models
}

// NewRouter creates a router over the given transport client.
func NewRouter(client ContentClient, models Models) *Router {
	return &Router{client: client, models: models}
}

// Send classifies the turn, performs the matching API call and normalizes
// the result. Transport and API errors propagate unmodified; a reply missing
// text or image fields is recovered with mode-specific defaults.
func (r *Router) Send(ctx context.Context, turn Turn) (Reply, error) {
	prompt := strings.TrimSpace(turn.Text)
	mode := Classify(prompt, turn.Image != "")

	slog.Debug("routing turn", "mode", mode.String(), "has_image", turn.Image != "", "history_len", len(turn.History))

	switch mode {
	case ModeGenerate:
		return r.generate(ctx, prompt, turn.ImageSize)
	case ModeEdit:
		return r.edit(ctx, prompt, turn.Image)
	default:
		if turn.Image != "" {
			return r.converseWithImage(ctx, prompt, turn.Image)
		}
		return r.converse(ctx, prompt, turn.History)
	}
}

// generate performs the text-to-image call. An image-free reply is a valid
// outcome, not an error.
func (r *Router) generate(ctx context.Context, prompt string, size domain.ImageSize) (Reply, error) {
	req := &gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Parts: []gemini.Part{{Text: prompt}},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			ImageConfig: &gemini.ImageConfig{ImageSize: string(size)},
		},
	}

	resp, err := r.client.GenerateContent(ctx, r.models.Generate, req)
	if err != nil {
		return Reply{}, err
	}
	return normalizeImageReply(resp, fallbackGenerate), nil
}

// edit performs the image+instruction call against the editing model.
func (r *Router) edit(ctx context.Context, prompt, image string) (Reply, error) {
	req := &gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Parts: []gemini.Part{
				{InlineData: &gemini.InlineData{MimeType: attachedImageMime, Data: gemini.StripDataURI(image)}},
				{Text: prompt},
			},
		}},
	}

	resp, err := r.client.GenerateContent(ctx, r.models.Edit, req)
	if err != nil {
		return Reply{}, err
	}
	return normalizeImageReply(resp, fallbackEdit), nil
}

// converseWithImage performs a single-shot multimodal call: the attached
// image and the prompt together with the persona instruction. No image is
// expected back.
func (r *Router) converseWithImage(ctx context.Context, prompt, image string) (Reply, error) {
	req := &gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Parts: []gemini.Part{
				{InlineData: &gemini.InlineData{MimeType: attachedImageMime, Data: gemini.StripDataURI(image)}},
				{Text: prompt},
			},
		}},
		SystemInstruction: systemContent(),
	}

	resp, err := r.client.GenerateContent(ctx, r.models.Text, req)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: textOrFallback(resp, fallbackAnalyze)}, nil
}

// converse reconstructs the chat from the recent history plus the persona
// instruction and sends the new prompt. Only text parts travel in history.
func (r *Router) converse(ctx context.Context, prompt string, history []domain.Message) (Reply, error) {
	contents := make([]gemini.Content, 0, len(history)+1)
	for _, msg := range history {
		contents = append(contents, gemini.Content{
			Role:  string(msg.Role),
			Parts: []gemini.Part{{Text: msg.Text}},
		})
	}
	contents = append(contents, gemini.Content{
		Role:  gemini.RoleUser,
		Parts: []gemini.Part{{Text: prompt}},
	})

	req := &gemini.GenerateContentRequest{
		Contents:          contents,
		SystemInstruction: systemContent(),
	}

	resp, err := r.client.GenerateContent(ctx, r.models.Text, req)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: textOrFallback(resp, fallbackChat)}, nil
}

func systemContent() *gemini.Content {
	return &gemini.Content{Parts: []gemini.Part{{Text: SystemInstruction}}}
}

// normalizeImageReply collects at most one inline image and any text from
// the candidate parts, substituting the given fallback when no text came
// back.
func normalizeImageReply(resp *gemini.GenerateContentResponse, fallback string) Reply {
	reply := Reply{Text: fallback}
	for _, part := range resp.FirstCandidateParts() {
		switch {
		case part.InlineData != nil:
			reply.GeneratedImage = gemini.DataURI(part.InlineData.Data)
		case part.Text != "":
			reply.Text = part.Text
		}
	}
	return reply
}

// textOrFallback concatenates the candidate's text parts, or returns the
// fallback when the reply carries none.
func textOrFallback(resp *gemini.GenerateContentResponse, fallback string) string {
	var b strings.Builder
	for _, part := range resp.FirstCandidateParts() {
		b.WriteString(part.Text)
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}
