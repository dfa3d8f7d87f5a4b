package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aurora/backend/internal/content"
	"aurora/backend/internal/graph"
	apperrors "aurora/backend/pkg/errors"
	"aurora/backend/pkg/logger"
)

// RealmLookup resolves realm rules
type RealmLookup interface {
	Realm(ctx context.Context, name string) (*graph.Realm, error)
}

// Presigner is the part of the S3 presign client the signer uses
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// SignedUpload is a time-limited direct upload target
type SignedUpload struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
	FileKey   string `json:"file_key"`
}

// Signer issues presigned S3 PUT URLs for realm uploads
type Signer struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration
	realms    RealmLookup
	logger    *zap.Logger
	now       func() time.Time
}

// NewSigner creates a signer around an existing presign client
func NewSigner(presigner Presigner, bucket string, ttl time.Duration, realms RealmLookup) *Signer {
	return &Signer{
		presigner: presigner,
		bucket:    bucket,
		ttl:       ttl,
		realms:    realms,
		logger:    logger.Named("storage"),
		now:       time.Now,
	}
}

// NewS3Signer loads the default AWS credential chain for region and builds a signer
func NewS3Signer(ctx context.Context, region, bucket string, ttl time.Duration, realms RealmLookup) (*Signer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSigner(s3.NewPresignClient(s3.NewFromConfig(cfg)), bucket, ttl, realms), nil
}

// Sign validates the upload against the realm and returns a presigned PUT URL.
// Keys look like uploads/<realm>/<YYYY-MM-DD>/<uuid>.<ext>.
func (s *Signer) Sign(ctx context.Context, filename, contentType, realmName string) (*SignedUpload, error) {
	if filename == "" {
		return nil, apperrors.NewValidation("filename", "is required")
	}
	realm, err := s.realms.Realm(ctx, realmName)
	if err != nil {
		return nil, err
	}
	kind := content.DetectMediaKind(contentType)
	if !realm.Allows(kind) {
		return nil, apperrors.NewValidation("file_type", fmt.Sprintf("%s not allowed in %s", contentType, realm.Name))
	}

	key := fmt.Sprintf("uploads/%s/%s/%s%s", realm.Name, s.now().UTC().Format("2006-01-02"), uuid.NewString(), extension(filename))

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.logger.Error("Failed to presign upload", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &SignedUpload{
		UploadURL: req.URL,
		PublicURL: fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key),
		FileKey:   key,
	}, nil
}

func extension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "." {
		return ""
	}
	return ext
}
