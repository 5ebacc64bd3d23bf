package vlm

import "fmt"

// chatMessage is a single OpenAI-style chat message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the non-streaming chat completions payload.
type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// instruction embeds the base64 JPEG inline after the prompt text.
func instruction(prompt, imageB64 string) string {
	return fmt.Sprintf(`%s Here is the image: <img src="data:image/jpeg;base64,%s" />`, prompt, imageB64)
}

func (cfg Config) buildRequest(prompt, imageB64 string) chatRequest {
	return chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: instruction(prompt, imageB64)}},
		MaxTokens:   cfg.MaxTokens,
		Temperature: *cfg.Temperature,
		TopP:        *cfg.TopP,
		Stream:      false,
	}
}

// firstContent extracts the first choice's message content.
func (r chatResponse) firstContent() (string, error) {
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == nil {
		return "", ErrMalformedResponse
	}
	return *r.Choices[0].Message.Content, nil
}
