package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	fig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/techagentng/chatly/config"
	"github.com/techagentng/chatly/models"
)

const thumbnailMaxDim = 320

type AttachmentKind string

const (
	AttachmentKindImage    AttachmentKind = "image"
	AttachmentKindDocument AttachmentKind = "document"
)

type UploadAttachmentParams struct {
	Attachment     models.AttachmentInput
	Kind           AttachmentKind
	UserID         uuid.UUID
	ConversationID uuid.UUID
	IsGroup        bool
}

// UploadResult is what the messaging core keeps about a stored
// attachment. ExternalID is the storage key used for later deletion.
type UploadResult struct {
	ExternalID   string
	URL          string
	ThumbnailURL string
	FileName     string
	FileType     string
	Size         int64
	Width        int
	Height       int
}

// AttachmentUploader is the storage collaborator of the message
// factory. Implementations own durability; the core only keeps the
// returned URL and external id.
type AttachmentUploader interface {
	UploadAttachment(ctx context.Context, params UploadAttachmentParams) (*UploadResult, error)
	DeleteAttachment(ctx context.Context, externalID string) error
}

type s3Uploader struct {
	Config *config.Config
	client *s3.Client
}

func NewS3Uploader(conf *config.Config) (AttachmentUploader, error) {
	cfg, err := fig.LoadDefaultConfig(context.TODO(),
		fig.WithRegion(conf.AWSRegion),
		fig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AWSAccessKeyID, conf.AWSSecretKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load AWS config")
	}
	return &s3Uploader{Config: conf, client: s3.NewFromConfig(cfg)}, nil
}

// UploadAttachment decodes the client's data URL, sniffs the real
// content type, uploads the object (plus a thumbnail for images), and
// returns the stable URL and storage key.
func (u *s3Uploader) UploadAttachment(ctx context.Context, params UploadAttachmentParams) (*UploadResult, error) {
	data, declaredMime, err := decodeDataURL(params.Attachment.DataURL)
	if err != nil {
		return nil, err
	}

	contentType := declaredMime
	if detected := mimetype.Detect(data); detected != nil {
		contentType = detected.String()
	}

	scope := "private"
	if params.IsGroup {
		scope = "group"
	}
	ext := filepath.Ext(params.Attachment.Name)
	key := fmt.Sprintf("%s/%s/%s/%d_%s%s",
		scope, params.ConversationID, params.Kind, time.Now().UnixNano(), uuid.New(), ext)

	result := &UploadResult{
		ExternalID: key,
		FileName:   params.Attachment.Name,
		FileType:   contentType,
		Size:       int64(len(data)),
	}

	if params.Kind == AttachmentKindImage {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode image attachment")
		}
		bounds := img.Bounds()
		result.Width = bounds.Dx()
		result.Height = bounds.Dy()

		thumb := resize.Thumbnail(thumbnailMaxDim, thumbnailMaxDim, img, resize.Lanczos3)
		var thumbBuf bytes.Buffer
		if err := imaging.Encode(&thumbBuf, thumb, imaging.JPEG); err != nil {
			return nil, errors.Wrap(err, "failed to encode thumbnail")
		}
		thumbKey := key + "_thumb.jpg"
		thumbURL, err := u.putObject(ctx, thumbKey, thumbBuf.Bytes(), "image/jpeg")
		if err != nil {
			return nil, err
		}
		result.ThumbnailURL = thumbURL
	}

	url, err := u.putObject(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}
	result.URL = url
	return result, nil
}

func (u *s3Uploader) putObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	bucket := u.Config.AWSBucket
	if bucket == "" {
		return "", errors.New("S3 bucket name is not configured")
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         "public-read",
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to upload file to S3")
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, u.Config.AWSRegion, key), nil
}

func (u *s3Uploader) DeleteAttachment(ctx context.Context, externalID string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.Config.AWSBucket),
		Key:    aws.String(externalID),
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete file from S3")
	}
	return nil
}

// decodeDataURL splits a "data:<mime>;base64,<payload>" URL into raw
// bytes and the declared mime type.
func decodeDataURL(dataURL string) ([]byte, string, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", errors.New("attachment is not a data URL")
	}
	comma := strings.Index(dataURL, ",")
	if comma < 0 {
		return nil, "", errors.New("malformed data URL")
	}
	meta := dataURL[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", errors.New("data URL is not base64 encoded")
	}
	declaredMime := strings.TrimSuffix(meta, ";base64")

	data, err := base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to decode data URL payload")
	}
	return data, declaredMime, nil
}
