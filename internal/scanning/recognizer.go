package scanning

import (
	"context"
	"strings"

	"github.com/zombor/scantrack/internal/extraction"
)

// Recognizer turns a document image into raw text
type Recognizer interface {
	// Recognize reads all text in a receipt image or PDF. Failures,
	// including cancellation of ctx, are reported through the returned
	// result rather than an error.
	Recognize(ctx context.Context, imageData []byte, contentType string) extraction.TextResult
	// Close releases any resources held by the recognizer
	Close() error
}

// transcribePrompt is the instruction shared by the LLM-backed recognizers
const transcribePrompt = `You are an OCR engine. Transcribe every line of text printed on this receipt or invoice, top to bottom, exactly as it appears.

Rules:
- Keep one printed line per output line
- Keep numbers, prices, currency symbols and dates exactly as printed
- Do not summarize, translate, correct spelling or add commentary
- Do not use markdown code blocks
- If the image contains no readable text, return an empty response`

// cleanTranscript strips the wrapping a model sometimes adds around a
// transcription and normalizes line endings.
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		// Drop the opening fence line, which may carry a language tag
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		} else {
			text = ""
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
