// Package bulkupload issues presigned URLs for jurisdictions to upload
// license files to the bulk bucket.
package bulkupload

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"compact-connect-backend/internal/config"
	apperrors "compact-connect-backend/internal/errors"
)

// DefaultExpiry is how long an upload URL stays valid.
const DefaultExpiry = 15 * time.Minute

// PresignPutAPI is the part of the S3 presign client the presigner uses.
type PresignPutAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a presigned PUT for one object in the bulk bucket.
type Upload struct {
	URL          string
	Method       string
	Key          string
	SignedHeader http.Header
	Expires      time.Time
}

type Presigner struct {
	client PresignPutAPI
	cfg    *config.Config
	expiry time.Duration
	logger *zap.Logger
}

func NewPresigner(client PresignPutAPI, cfg *config.Config, logger *zap.Logger) *Presigner {
	return &Presigner{
		client: client,
		cfg:    cfg,
		expiry: DefaultExpiry,
		logger: logger.Named("bulkupload"),
	}
}

// ObjectKey is where a jurisdiction's upload lands. The bucket's ingest
// trigger reads compact and jurisdiction back out of the key.
func ObjectKey(compact, jurisdiction, id string) string {
	return compact + "/" + jurisdiction + "/" + id
}

// UploadURL presigns a PUT of a new object under {compact}/{jurisdiction}/.
func (p *Presigner) UploadURL(ctx context.Context, compact, jurisdiction string) (*Upload, error) {
	if !p.cfg.IsCompact(compact) || !p.cfg.IsJurisdiction(jurisdiction) {
		return nil, apperrors.Validation(apperrors.CodeInvalidRequest, "invalid compact or jurisdiction").
			WithDetailsf("compact %q, jurisdiction %q", compact, jurisdiction).
			Build()
	}

	key := ObjectKey(compact, jurisdiction, uuid.NewString())
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.BulkBucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return nil, apperrors.FromAWS(err, apperrors.CodePresignFailed, "PresignPutObject")
	}

	p.logger.Info("Issued bulk upload URL",
		zap.String("compact", compact),
		zap.String("jurisdiction", jurisdiction),
		zap.String("key", key),
	)
	return &Upload{
		URL:          req.URL,
		Method:       req.Method,
		Key:          key,
		SignedHeader: req.SignedHeader,
		Expires:      p.cfg.Now().Add(p.expiry),
	}, nil
}
