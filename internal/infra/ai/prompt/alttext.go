package prompt

import "fmt"

// GetSystemPrompt directs the model to answer with alt-text only.
func GetSystemPrompt() string {
	return `You write alternative text for images on websites. Respond with the alt text only: no quotes, no markdown, no commentary.

Requirements:
- Describe what the image shows, not that it is an image ("photo of" and "image of" are redundant).
- One sentence, at most 125 characters.
- Plain language. No keyword stuffing.
- If the image is decorative or cannot be described, respond with a short neutral description of its visible content anyway.`
}

// GetUserPrompt builds the text part that accompanies the image.
func GetUserPrompt(imageURL string) string {
	return fmt.Sprintf("Write alt text for this image: %s", imageURL)
}
