// Package gemini provides a client for the Google Generative Language REST
// API. It covers the single generateContent call shape used by this
// application: role-tagged contents with text and inline-image parts, an
// optional system instruction, and an optional image resolution hint.
package gemini

import "strings"

// Message roles on the wire.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// generateContentPath is the request path template; the model name is
// interpolated between the prefix and the suffix.
const (
	apiPathPrefix = "/v1beta/models/"
	apiPathSuffix = ":generateContent"
)

// Part is one piece of a content turn: either text or inline binary data,
// never both.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64-encoded binary data, typically an image.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Content is one role-tagged turn of a conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// ImageConfig carries the resolution hint for image generation.
type ImageConfig struct {
	ImageSize string `json:"imageSize,omitempty"`
}

// GenerationConfig holds optional generation parameters.
type GenerationConfig struct {
	ImageConfig *ImageConfig `json:"imageConfig,omitempty"`
}

// GenerateContentRequest is the request body for the generateContent call.
type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// GenerateContentResponse is the response body for the generateContent call.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// FirstCandidateParts returns the parts of the first candidate, or nil when
// the reply carries none. A reply without parts is not an error here; the
// caller decides what a missing field means for its mode.
func (r *GenerateContentResponse) FirstCandidateParts() []Part {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

// apiError mirrors the error envelope returned by the API on non-200 status.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// StripDataURI removes a leading "data:<mime>;base64," prefix from a base64
// payload. Images cross the API boundary as bare base64; the prefix belongs
// to the display side only.
func StripDataURI(data string) string {
	if !strings.HasPrefix(data, "data:") {
		return data
	}
	if i := strings.IndexByte(data, ','); i >= 0 {
		return data[i+1:]
	}
	return data
}

// DataURI re-adds the display prefix to base64 image data received from the
// API. Generated images are PNG.
func DataURI(base64Data string) string {
	return "data:image/png;base64," + base64Data
}
