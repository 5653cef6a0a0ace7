package upload

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/logger"
)

const (
	uploadPrefix = "uploads/"

	// object metadata written by the transcoding pipeline
	metaDurationSeconds = "duration-seconds"
	metaTranscodeStatus = "transcode-status"
	metaTranscodeError  = "transcode-error"
)

// bucket is the subset of *storage.BucketHandle used by GCSProvider
type bucket interface {
	SignedURL(object string, opts *storage.SignedURLOptions) (string, error)
	Attrs(ctx context.Context, object string) (*storage.ObjectAttrs, error)
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b *gcsBucket) SignedURL(object string, opts *storage.SignedURLOptions) (string, error) {
	return b.handle.SignedURL(object, opts)
}

func (b *gcsBucket) Attrs(ctx context.Context, object string) (*storage.ObjectAttrs, error) {
	return b.handle.Object(object).Attrs(ctx)
}

// GCSProvider implements Provider on Google Cloud Storage signed uploads
type GCSProvider struct {
	bucket     bucket
	bucketName string
	expiry     time.Duration
	newID      func() string
	log        *logger.Logger
	closeFn    func() error
}

// ClientOptionsFromEnv reads service account credentials from the environment
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// NewGCSProvider creates a GCSProvider backed by a real storage client
func NewGCSProvider(ctx context.Context, bucketName string, expiry time.Duration, log *logger.Logger) (*GCSProvider, error) {
	if bucketName == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "upload bucket is not configured")
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeExternal, "failed to create storage client")
	}
	p := NewGCSProviderWithBucket(&gcsBucket{handle: client.Bucket(bucketName)}, bucketName, expiry, log)
	p.closeFn = client.Close
	return p, nil
}

// NewGCSProviderWithBucket creates a GCSProvider with a custom bucket (for testing)
func NewGCSProviderWithBucket(b bucket, bucketName string, expiry time.Duration, log *logger.Logger) *GCSProvider {
	if log == nil {
		log = logger.NewNop()
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &GCSProvider{
		bucket:     b,
		bucketName: bucketName,
		expiry:     expiry,
		newID:      uuid.NewString,
		log:        log.With("service", "GCSProvider", "bucket", bucketName),
	}
}

// Close releases the storage client
func (p *GCSProvider) Close() error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn()
}

// CreateUploadSession signs a V4 PUT URL for a fresh object under uploads/
func (p *GCSProvider) CreateUploadSession(ctx context.Context, owner string) (*Session, error) {
	sessionID := p.newID()
	uploadURL, err := p.bucket.SignedURL(uploadPrefix+sessionID, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "PUT",
		Expires: time.Now().Add(p.expiry),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePreparation, "failed to sign upload URL")
	}

	p.log.Debug("upload session created", "owner", owner, "session", sessionID, "upload_url", uploadURL)
	return &Session{SessionID: sessionID, UploadURL: uploadURL}, nil
}

// ConfirmAsset checks the uploaded object and the transcoder's verdict
func (p *GCSProvider) ConfirmAsset(ctx context.Context, sessionID string) (*Asset, error) {
	if sessionID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "upload session is required")
	}

	object := uploadPrefix + sessionID
	attrs, err := p.bucket.Attrs(ctx, object)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, apperrors.Wrap(err, apperrors.CodeUploadFailure, "uploaded object not found")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeUploadFailure, "failed to read uploaded object")
	}
	if attrs.Size == 0 {
		return nil, apperrors.New(apperrors.CodeUploadFailure, "uploaded object is empty")
	}
	if strings.EqualFold(attrs.Metadata[metaTranscodeStatus], "failed") {
		msg := "transcoding failed"
		if detail := attrs.Metadata[metaTranscodeError]; detail != "" {
			msg += ": " + detail
		}
		return nil, apperrors.New(apperrors.CodeUploadFailure, msg)
	}

	asset := &Asset{PlaybackHandle: "gs://" + p.bucketName + "/" + object}
	if raw := attrs.Metadata[metaDurationSeconds]; raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 {
			d := int(f + 0.5)
			asset.DurationSeconds = &d
		}
	}
	return asset, nil
}
