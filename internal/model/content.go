package model

// RawContent is what the fetch and extract stages recover from a post.
// TextContent is non-empty on success.
type RawContent struct {
	TextContent string  `json:"text_content"`
	ImageURL    *string `json:"image_url,omitempty"`
	VideoURL    *string `json:"video_url,omitempty"`
	SourceURL   string  `json:"source_url"`
	Strategy    string  `json:"strategy"`
}

// AugmentedContent is RawContent plus an optional video transcription.
// A nil Transcription is an expected state, not an error.
type AugmentedContent struct {
	RawContent
	Transcription *string `json:"transcription,omitempty"`
}

// HasTranscription reports whether a non-empty transcription is attached.
func (c AugmentedContent) HasTranscription() bool {
	return c.Transcription != nil && *c.Transcription != ""
}
