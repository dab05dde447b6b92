// ABOUTME: Object-store adapter for profile pictures, scoped to one federated session
// ABOUTME: Uploads under an identity-keyed prefix and issues presigned GET URLs

package store

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oakledger/oakledger/internal/federate"
)

// presignedURLTTL is how long issued picture URLs remain valid.
const presignedURLTTL = time.Hour

// objectAPI is the subset of the object-store client Media uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// presignAPI issues presigned requests for reads.
type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error)
}

// v4PresignedRequest is the part of the presigner's result Media consumes.
type v4PresignedRequest struct {
	URL string
}

// Media stores profile pictures. Objects are keyed by the pool-assigned
// identity id, so the object store's own policy can fence users into their
// own prefix.
type Media struct {
	api     objectAPI
	presign presignAPI
	bucket  string
	prefix  string
}

// NewMedia creates a Media adapter over already-built clients.
func NewMedia(api objectAPI, presign presignAPI, bucket, prefix string) *Media {
	return &Media{api: api, presign: presign, bucket: bucket, prefix: prefix}
}

// NewMediaFromSession builds a Media adapter whose clients sign with the
// session's temporary credentials.
func NewMediaFromSession(region string, s *federate.Session, bucket, prefix string) *Media {
	client := s3.New(s3.Options{
		Region:      region,
		Credentials: sessionCredentials(s),
	})
	return NewMedia(client, &s3Presigner{inner: s3.NewPresignClient(client)}, bucket, prefix)
}

// pictureKey builds the object key for a user's profile picture.
func (m *Media) pictureKey(identityID, ext string) string {
	return fmt.Sprintf("%s/%s/profile_pic.%s", m.prefix, identityID, ext)
}

// UploadProfilePicture stores the picture and returns its object key.
// Only image content types are accepted.
func (m *Media) UploadProfilePicture(ctx context.Context, identityID, ext, contentType string, body io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("store: content type %q is not an image", contentType)
	}

	key := m.pictureKey(identityID, ext)
	_, err := m.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading profile picture: %w", err)
	}
	return key, nil
}

// ProfilePictureURL returns a presigned, time-limited URL for the picture.
func (m *Media) ProfilePictureURL(ctx context.Context, identityID, ext string) (string, error) {
	req, err := m.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.pictureKey(identityID, ext)),
	}, s3.WithPresignExpires(presignedURLTTL))
	if err != nil {
		return "", fmt.Errorf("presigning picture url: %w", err)
	}
	return req.URL, nil
}

// s3Presigner adapts the SDK presign client to the narrow presignAPI.
type s3Presigner struct {
	inner *s3.PresignClient
}

func (p *s3Presigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error) {
	req, err := p.inner.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &v4PresignedRequest{URL: req.URL}, nil
}
