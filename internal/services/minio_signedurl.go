package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

const DefaultSignedURLTTL = 1 * time.Hour

// ImageSigner génère des URLs signées MinIO pour les images produits.
type ImageSigner struct {
	client   *minio.Client
	bucket   string
	duration time.Duration
}

func NewImageSigner(client *minio.Client, bucket string, duration time.Duration) *ImageSigner {
	if duration <= 0 {
		duration = DefaultSignedURLTTL
	}
	return &ImageSigner{client: client, bucket: bucket, duration: duration}
}

// SignImage accepte une clé d'objet ou une URL complète vers le bucket.
// Les URLs externes sont retournées telles quelles.
func (s *ImageSigner) SignImage(ctx context.Context, ref string) (string, error) {
	key, ok := s.objectKey(ref)
	if !ok {
		return ref, nil
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.duration, make(url.Values))
	if err != nil {
		return "", err
	}
	return presignedURL.String(), nil
}

func (s *ImageSigner) objectKey(ref string) (string, bool) {
	if !strings.Contains(ref, "://") {
		return strings.TrimPrefix(ref, "/"), ref != ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host != s.client.EndpointURL().Host {
		return "", false
	}
	key, found := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), s.bucket+"/")
	return key, found && key != ""
}
