package api

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Message is one turn of a chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelDetails is the parameter metadata the backend reports per model
type ModelDetails struct {
	ParentModel       string   `json:"parent_model,omitempty"`
	Format            string   `json:"format,omitempty"`
	Family            string   `json:"family,omitempty"`
	Families          []string `json:"families,omitempty"`
	ParameterSize     string   `json:"parameter_size,omitempty"`
	QuantizationLevel string   `json:"quantization_level,omitempty"`
}

// ModelSummary is one entry of GET /api/tags
type ModelSummary struct {
	Name       string       `json:"name"`
	Model      string       `json:"model,omitempty"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetail is the response of POST /api/show
type ModelDetail struct {
	License      string         `json:"license,omitempty"`
	Modelfile    string         `json:"modelfile,omitempty"`
	Parameters   string         `json:"parameters,omitempty"`
	Template     string         `json:"template,omitempty"`
	System       string         `json:"system,omitempty"`
	Details      ModelDetails   `json:"details"`
	ModelInfo    map[string]any `json:"model_info,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	ModifiedAt   time.Time      `json:"modified_at,omitempty"`
}

// GenerateRequest is the input of Generate
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// ChatRequest is the input of Chat. System, when set, is sent as a leading
// system message unless Messages already starts with one.
type ChatRequest struct {
	Model    string
	Messages []Message
	System   string
	Options  map[string]any
}

// GenerateResult is a fully drained generate stream
type GenerateResult struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     Done   `json:"done"`
}

// ChatResult is a fully drained chat stream
type ChatResult struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    Done    `json:"done"`
}

// wire bodies

type generateBody struct {
	GenerateRequest
	Stream bool `json:"stream"`
}

type chatBody struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Options  map[string]any `json:"options,omitempty"`
	Stream   bool           `json:"stream"`
}

type modelBody struct {
	Model    string `json:"model"`
	Name     string `json:"name,omitempty"`
	Insecure bool   `json:"insecure,omitempty"`
	Stream   *bool  `json:"stream,omitempty"`
}

type tagsResponse struct {
	Models []ModelSummary `json:"models"`
}

type embedBody struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type versionResponse struct {
	Version string `json:"version"`
}

var modelNamePattern = regexp.MustCompile(`^[a-z0-9._:/-]+$`)

// ValidateModelName rejects names the backend would never accept so that
// typos fail locally. Names are compared lowercased.
func ValidateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if !modelNamePattern.MatchString(strings.ToLower(name)) {
		return fmt.Errorf("%w: %q", ErrInvalidModelName, name)
	}
	return nil
}
