package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	audioChannelCount     = 1
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
	FastModel       string
}

type recognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// CloudSpeechModel holds one Speech client for the lifetime of the server.
type CloudSpeechModel struct {
	client     recognizeClient
	recognizer string
	language   string
	model      string
	fastModel  string
}

// LoadCloudSpeech dials the Speech API once. Callers must Shutdown the model.
func LoadCloudSpeech(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeechModel, error) {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	slog.Info("cloud speech model loaded", "location", location, "model", cfg.Model, "fast_model", cfg.FastModel, "language", cfg.Language)

	return newCloudSpeechModel(client, cfg, location), nil
}

func newCloudSpeechModel(client recognizeClient, cfg CloudSpeechConfig, location string) *CloudSpeechModel {
	model := strings.TrimSpace(cfg.Model)
	fastModel := strings.TrimSpace(cfg.FastModel)
	if fastModel == "" {
		fastModel = model
	}
	return &CloudSpeechModel{
		client:     client,
		recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, location),
		language:   cfg.Language,
		model:      model,
		fastModel:  fastModel,
	}
}

func (m *CloudSpeechModel) Name() string {
	return "cloud-speech/" + m.model
}

func (m *CloudSpeechModel) ConcurrencySafe() bool {
	return true
}

func (m *CloudSpeechModel) Transcribe(ctx context.Context, samples []float32, useFastPath bool) (string, error) {
	model := m.model
	if useFastPath {
		model = m.fastModel
	}
	req := &speechpb.RecognizeRequest{
		Recognizer: m.recognizer,
		Config: &speechpb.RecognitionConfig{
			Model:         model,
			LanguageCodes: []string{m.language},
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   audio.TargetSampleRate,
					AudioChannelCount: audioChannelCount,
				},
			},
			Features: &speechpb.RecognitionFeatures{},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{
			Content: audio.EncodePCM16LE(samples),
		},
	}

	// One call per block. A failed block is dropped, never re-sent.
	resp, err := m.client.Recognize(ctx, req)
	if err != nil {
		code := status.Code(err)
		if isTransientRecognizeError(code) {
			slog.Warn("cloud speech unavailable; dropping block", "grpc_code", code.String(), "model", model)
		}
		return "", fmt.Errorf("recognize (%s): %w", code, err)
	}
	return joinTranscripts(resp.GetResults()), nil
}

func (m *CloudSpeechModel) Shutdown() error {
	return m.client.Close()
}

func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		text := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript())
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func isTransientRecognizeError(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
