package api

// GenerateRequest is the body of POST /v1/generate. Unset fields take the
// server defaults.
type GenerateRequest struct {
	Prompt      string   `json:"prompt,omitempty"`
	Words       *int     `json:"words,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	Store       *bool    `json:"store,omitempty"`
}

type GenerateResponse struct {
	ID          string          `json:"id"`
	Object      string          `json:"object"`
	CreatedAt   int64           `json:"created_at"`
	Model       string          `json:"model"`
	Prompt      string          `json:"prompt,omitempty"`
	Temperature float64         `json:"temperature"`
	Seed        int64           `json:"seed"`
	Text        string          `json:"text"`
	Words       int             `json:"words"`
	Dropped     []string        `json:"dropped"`
	Forced      int             `json:"forced"`
	Stats       GenerationStats `json:"stats"`
}

type GenerationStats struct {
	DurationMS int64   `json:"duration_ms"`
	WPS        float64 `json:"words_per_second"`
}

// ModelResponse describes the loaded checkpoint.
type ModelResponse struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	Type      string            `json:"type"`
	Kind      string            `json:"kind"`
	Digest    string            `json:"digest"`
	VocabSize int               `json:"vocab_size"`
	Metadata  map[string]string `json:"metadata"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}
