package locator

import (
	"fmt"

	"github.com/menta2k/headshot/pkg/llamacpp"
	"github.com/menta2k/headshot/pkg/ollama"
)

// Config selects and configures a backend
type Config struct {
	Kind          Kind
	CascadePath   string
	ServerURL     string
	Model         string
	MinConfidence float64
	Pigo          PigoParams
	Vision        VisionOptions
}

// Open returns the Opener for cfg
func Open(cfg Config) Opener {
	switch cfg.Kind {
	case KindPigo:
		params := cfg.Pigo
		if params == (PigoParams{}) {
			params = DefaultPigoParams()
		}
		return OpenPigo(cfg.CascadePath, params)
	case KindOllama:
		return func() (Backend, error) {
			if cfg.Model == "" {
				return nil, fmt.Errorf("ollama backend needs a model")
			}
			c, err := ollama.NewClient(cfg.ServerURL)
			if err != nil {
				return nil, err
			}
			return NewVisionBackend(c, cfg.Model, cfg.Vision), nil
		}
	case KindLlamaCpp:
		return func() (Backend, error) {
			c, err := llamacpp.NewClient(cfg.ServerURL)
			if err != nil {
				return nil, err
			}
			return NewVisionBackend(c, cfg.Model, cfg.Vision), nil
		}
	default:
		return None
	}
}

// NewFromConfig creates a FaceLocator for cfg
func NewFromConfig(cfg Config, opts ...Option) *FaceLocator {
	if cfg.MinConfidence > 0 {
		opts = append([]Option{WithMinConfidence(cfg.MinConfidence)}, opts...)
	}
	return New(Open(cfg), opts...)
}
