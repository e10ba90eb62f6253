package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxFileSize is the maximum allowed size for direct uploads (20MB).
	MaxFileSize = 20 * 1024 * 1024
	// FolderFiles is the S3 prefix for organization file objects.
	FolderFiles = "files"
)

// ErrBlobNotFound is returned by DeleteBlob when the object no longer exists.
var ErrBlobNotFound = errors.New("blob not found")

// Allowed upload MIME types and extensions, mapped to file categories.
var (
	AllowedFileTypes = map[string]string{
		"image/jpeg":      "image",
		"image/jpg":       "image",
		"image/png":       "image",
		"image/webp":      "image",
		"image/gif":       "image",
		"text/csv":        "csv",
		"application/csv": "csv",
		"application/pdf": "pdf",
	}
	AllowedFileExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
		".csv":  "text/csv",
		".pdf":  "application/pdf",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	FilesBucket          string
	PresignExpireMinutes int
}

// UploadTarget is where a client should PUT file bytes, and the storage ref to register afterwards.
type UploadTarget struct {
	UploadURL   string `json:"upload_url"`
	StorageRef  string `json:"storage_ref"`
	ContentType string `json:"content_type"`
	FileType    string `json:"file_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// S3 provides S3 operations with validation and pre-signed URLs.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using credentials from .env/config", zap.String("region", cfg.Region), zap.String("files_bucket", cfg.FilesBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	return &S3{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// FileTypeForUpload returns the file category ("image", "csv", "pdf") for a content type and/or
// filename extension, or false if neither is allowed.
func FileTypeForUpload(contentType, filename string) (string, bool) {
	if contentType != "" {
		if ft, ok := AllowedFileTypes[strings.ToLower(contentType)]; ok {
			return ft, true
		}
	}
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := AllowedFileExtensions[ext]; ok {
		return AllowedFileTypes[ct], true
	}
	return "", false
}

// ContentTypeForFilename returns the MIME type for a filename extension.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := AllowedFileExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// FileKey returns a fresh S3 object key for an organization file: files/{organization_id}/{uuid}{ext}.
// The original filename is not part of the key so two uploads with the same name never collide.
func FileKey(organizationID, filename string) string {
	return FilePrefix(organizationID) + uuid.New().String() + strings.ToLower(path.Ext(filename))
}

// FilePrefix returns the key prefix under which all of an organization's objects live.
func FilePrefix(organizationID string) string {
	return FolderFiles + "/" + organizationID + "/"
}

// IsFileKey reports whether ref is a key FileKey could have issued for the organization: directly
// under its prefix, already clean, with no further path segments.
func IsFileKey(organizationID, ref string) bool {
	prefix := FilePrefix(organizationID)
	if organizationID == "" || !strings.HasPrefix(ref, prefix) || path.Clean(ref) != ref {
		return false
	}
	name := strings.TrimPrefix(ref, prefix)
	return name != "" && !strings.Contains(name, "/") && name != "." && name != ".."
}

// RegisterUpload issues a pre-signed PUT target for a new organization file.
func (s *S3) RegisterUpload(ctx context.Context, organizationID uuid.UUID, filename, contentType string) (*UploadTarget, error) {
	fileType, ok := FileTypeForUpload(contentType, filename)
	if !ok {
		return nil, fmt.Errorf("unsupported upload type %q", contentType)
	}
	if _, allowed := AllowedFileTypes[strings.ToLower(contentType)]; !allowed {
		contentType = ContentTypeForFilename(filename)
	}
	key := FileKey(organizationID.String(), filename)
	expire := s.PresignExpire()
	url, err := s.GeneratePresignedUploadURL(ctx, s.cfg.FilesBucket, key, contentType, expire)
	if err != nil {
		return nil, err
	}
	return &UploadTarget{
		UploadURL:   url,
		StorageRef:  key,
		ContentType: contentType,
		FileType:    fileType,
		ExpiresIn:   int(expire.Seconds()),
	}, nil
}

// ResolveURL returns a pre-signed GET URL for a stored file.
func (s *S3) ResolveURL(ctx context.Context, storageRef string) (string, error) {
	if storageRef == "" {
		return "", fmt.Errorf("empty storage ref")
	}
	return s.GeneratePresignedDownloadURL(ctx, s.cfg.FilesBucket, storageRef, s.PresignExpire())
}

// DeleteBlob removes a stored file. It returns ErrBlobNotFound when the object is already gone.
func (s *S3) DeleteBlob(ctx context.Context, storageRef string) error {
	if _, err := s.HeadObject(ctx, s.cfg.FilesBucket, storageRef); err != nil {
		if isNotFound(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("head object: %w", err)
	}
	return s.DeleteObject(ctx, s.cfg.FilesBucket, storageRef)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

// GeneratePresignedUploadURL returns a pre-signed PUT URL for direct upload.
func (s *S3) GeneratePresignedUploadURL(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

// GeneratePresignedDownloadURL returns a pre-signed GET URL for download.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// Upload streams a reader into the files bucket (server-side uploads) and returns the object key.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.FilesBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	s.logger.Debug("file uploaded", zap.String("bucket", s.cfg.FilesBucket), zap.String("key", key))
	return key, nil
}

// DeleteObject removes an object from S3.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// HeadObject returns object metadata if it exists.
func (s *S3) HeadObject(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	return s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}
