package transcription

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// speechRecognizer runs a long-running recognition to completion
type speechRecognizer interface {
	Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

type speechClient struct {
	client *speech.Client
}

func (c *speechClient) Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := c.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (c *speechClient) Close() error {
	return c.client.Close()
}

// CloudSpeechTranscriber transcribes uploaded audio objects with Cloud Speech-to-Text
type CloudSpeechTranscriber struct {
	recognizer   speechRecognizer
	languageCode string
}

// NewCloudSpeechTranscriber dials Cloud Speech-to-Text
func NewCloudSpeechTranscriber(ctx context.Context, languageCode string, opts ...option.ClientOption) (*CloudSpeechTranscriber, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return newCloudSpeechTranscriber(&speechClient{client: c}, languageCode), nil
}

func newCloudSpeechTranscriber(recognizer speechRecognizer, languageCode string) *CloudSpeechTranscriber {
	if languageCode == "" {
		languageCode = "en-US"
	}
	return &CloudSpeechTranscriber{recognizer: recognizer, languageCode: languageCode}
}

// Close releases the underlying client
func (t *CloudSpeechTranscriber) Close() error {
	if t == nil || t.recognizer == nil {
		return nil
	}
	return t.recognizer.Close()
}

// Transcribe recognizes speech in a gs:// audio object
func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, source Source) (*Result, error) {
	if !strings.HasPrefix(source.Reference, "gs://") {
		return nil, errors.New(errors.CodeGenerationFailure, "cloud speech needs a gs:// audio object")
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               t.languageCode,
			EnableAutomaticPunctuation: true,
			Encoding:                   speechEncoding(source.Reference),
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: source.Reference}},
	}

	resp, err := t.recognizer.Recognize(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGenerationFailure, "cloud speech: "+describeRPCError(err))
	}

	var parts []string
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return nil, errors.New(errors.CodeGenerationFailure, "no speech detected in audio")
	}
	return &Result{Text: strings.Join(parts, " "), Origin: model.OriginSpeechModel}, nil
}

func speechEncoding(uri string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// videoAnnotator runs a video annotation to completion
type videoAnnotator interface {
	Annotate(ctx context.Context, req *vipb.AnnotateVideoRequest) (*vipb.AnnotateVideoResponse, error)
	Close() error
}

type videoClient struct {
	client *videointelligence.Client
}

func (c *videoClient) Annotate(ctx context.Context, req *vipb.AnnotateVideoRequest) (*vipb.AnnotateVideoResponse, error) {
	op, err := c.client.AnnotateVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (c *videoClient) Close() error {
	return c.client.Close()
}

// VideoIntelligenceTranscriber transcribes uploaded video objects with the Video Intelligence API
type VideoIntelligenceTranscriber struct {
	annotator    videoAnnotator
	languageCode string
}

// NewVideoIntelligenceTranscriber dials the Video Intelligence API
func NewVideoIntelligenceTranscriber(ctx context.Context, languageCode string, opts ...option.ClientOption) (*VideoIntelligenceTranscriber, error) {
	c, err := videointelligence.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return newVideoIntelligenceTranscriber(&videoClient{client: c}, languageCode), nil
}

func newVideoIntelligenceTranscriber(annotator videoAnnotator, languageCode string) *VideoIntelligenceTranscriber {
	if languageCode == "" {
		languageCode = "en-US"
	}
	return &VideoIntelligenceTranscriber{annotator: annotator, languageCode: languageCode}
}

// Close releases the underlying client
func (t *VideoIntelligenceTranscriber) Close() error {
	if t == nil || t.annotator == nil {
		return nil
	}
	return t.annotator.Close()
}

// Transcribe runs speech transcription over a gs:// video object
func (t *VideoIntelligenceTranscriber) Transcribe(ctx context.Context, source Source) (*Result, error) {
	if !strings.HasPrefix(source.Reference, "gs://") {
		return nil, errors.New(errors.CodeGenerationFailure, "video intelligence needs a gs:// video object")
	}

	req := &vipb.AnnotateVideoRequest{
		InputUri: source.Reference,
		Features: []vipb.Feature{vipb.Feature_SPEECH_TRANSCRIPTION},
		VideoContext: &vipb.VideoContext{
			SpeechTranscriptionConfig: &vipb.SpeechTranscriptionConfig{
				LanguageCode:               t.languageCode,
				EnableAutomaticPunctuation: true,
			},
		},
	}

	resp, err := t.annotator.Annotate(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGenerationFailure, "video intelligence: "+describeRPCError(err))
	}

	var parts []string
	for _, ar := range resp.GetAnnotationResults() {
		if ar.GetError() != nil {
			return nil, errors.New(errors.CodeGenerationFailure, "video intelligence: "+ar.GetError().GetMessage())
		}
		for _, st := range ar.GetSpeechTranscriptions() {
			alts := st.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
				parts = append(parts, text)
			}
		}
	}
	if len(parts) == 0 {
		return nil, errors.New(errors.CodeGenerationFailure, "no speech detected in video")
	}
	return &Result{Text: strings.Join(parts, " "), Origin: model.OriginAIModel}, nil
}

// describeRPCError turns a gRPC status into a short message
func describeRPCError(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	switch st.Code() {
	case codes.DeadlineExceeded, codes.Canceled:
		return "provider timed out"
	case codes.ResourceExhausted:
		return "provider quota exhausted"
	case codes.PermissionDenied, codes.Unauthenticated:
		return "provider rejected the credentials"
	case codes.InvalidArgument, codes.NotFound:
		return "provider could not read the media: " + st.Message()
	case codes.Unavailable:
		return "provider is unavailable"
	default:
		return st.Message()
	}
}
