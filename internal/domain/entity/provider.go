package entity

import "time"

type ProviderKind string

const (
	ProviderPicsum  ProviderKind = "picsum"
	ProviderRunware ProviderKind = "runware"
	ProviderOpenAI  ProviderKind = "openai"
	ProviderLocal   ProviderKind = "local"
	ProviderGemini  ProviderKind = "gemini"
)

// ProviderConfig selects and configures the single image provider used by the process.
type ProviderConfig struct {
	Kind       ProviderKind
	Credential string
	Endpoint   string
	ModelID    string

	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}
