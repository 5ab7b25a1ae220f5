package rekognition

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"

	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// mockDetectFacesAPI is a mock implementation of DetectFacesAPI for testing
type mockDetectFacesAPI struct {
	detectFacesFunc func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	calls           int
}

func (m *mockDetectFacesAPI) DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	m.calls++
	if m.detectFacesFunc != nil {
		return m.detectFacesFunc(ctx, params, optFns...)
	}
	return &rekognition.DetectFacesOutput{}, nil
}

// stubGate returns a fixed local verdict.
type stubGate bool

func (s stubGate) HasUsableFace(context.Context, *provider.Frame) bool {
	return bool(s)
}
