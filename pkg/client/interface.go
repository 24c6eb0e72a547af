package client

import (
	"context"

	"github.com/menta2k/headshot/pkg/types"
)

// VisionClient is a multimodal model server able to locate faces in an image
type VisionClient interface {
	LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceReport, error)
}
