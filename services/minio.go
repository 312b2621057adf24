package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// MinIOService keeps generated images in durable object storage, addressed by
// a deterministic path per user and generation so a provider's expiring URL
// never has to be the record of truth.
type MinIOService struct {
	appContext.DefaultService
	client *minio.Client

	bucketName   string
	endpoint     string
	accessKey    string
	secretKey    string
	useSSL       bool
	publicURL    string
	folderPrefix string

	httpClient *http.Client
}

const MINIO_SVC = "minio_svc"

func (svc MinIOService) Id() string {
	return MINIO_SVC
}

func (svc *MinIOService) Configure(ctx *appContext.Context) error {
	svc.endpoint = os.Getenv("MINIO_ENDPOINT")
	if svc.endpoint == "" {
		svc.endpoint = "localhost:9000"
	}

	svc.accessKey = os.Getenv("MINIO_ACCESS_KEY")
	if svc.accessKey == "" {
		svc.accessKey = "admin"
	}

	svc.secretKey = os.Getenv("MINIO_SECRET_KEY")
	if svc.secretKey == "" {
		svc.secretKey = "password123"
	}

	svc.useSSL = os.Getenv("MINIO_USE_SSL") == "true"

	svc.bucketName = os.Getenv("MINIO_BUCKET_NAME")
	if svc.bucketName == "" {
		svc.bucketName = "ai-generated-images"
	}

	svc.publicURL = strings.TrimRight(os.Getenv("MINIO_PUBLIC_URL"), "/")

	svc.folderPrefix = os.Getenv("MINIO_FOLDER_PREFIX")
	if svc.folderPrefix == "" {
		svc.folderPrefix = "generations"
	}

	svc.httpClient = &http.Client{Timeout: 60 * time.Second}

	return svc.DefaultService.Configure(ctx)
}

func (svc *MinIOService) Start() error {
	client, err := minio.New(svc.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(svc.accessKey, svc.secretKey, ""),
		Secure: svc.useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %v", err)
	}

	svc.client = client

	if err := svc.ensureBucket(); err != nil {
		return fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	log.Printf("MinIO service started successfully with endpoint: %s", svc.endpoint)
	return nil
}

func (svc *MinIOService) ensureBucket() error {
	ctx := context.Background()

	exists, err := svc.client.BucketExists(ctx, svc.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = svc.client.MakeBucket(ctx, svc.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("Created MinIO bucket: %s", svc.bucketName)
	}

	return nil
}

// GenerationObjectName builds the deterministic storage path for a
// generation's result. One asset per generation, overwritable.
func (svc *MinIOService) GenerationObjectName(userID, generationID string) string {
	return fmt.Sprintf("%s/%s/%s.png", svc.folderPrefix, userID, generationID)
}

// TransferFromURL downloads the provider's output and stores it under the
// generation's object path, returning the durable URL.
func (svc *MinIOService) TransferFromURL(ctx context.Context, sourceURL, userID, generationID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %v", err)
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download source image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source image download returned status %d", resp.StatusCode)
	}

	objectName := svc.GenerationObjectName(userID, generationID)
	_, err = svc.client.PutObject(ctx, svc.bucketName, objectName, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to MinIO: %v", err)
	}

	return svc.ObjectURL(objectName)
}

// ObjectURL returns a stable public URL when MINIO_PUBLIC_URL is configured,
// otherwise a long-lived presigned URL.
func (svc *MinIOService) ObjectURL(objectName string) (string, error) {
	if svc.publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", svc.publicURL, svc.bucketName, objectName), nil
	}

	presignedURL, err := svc.client.PresignedGetObject(context.Background(), svc.bucketName, objectName, 7*24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %v", err)
	}

	return presignedURL.String(), nil
}

func (svc *MinIOService) DeleteGenerationAsset(ctx context.Context, userID, generationID string) error {
	objectName := svc.GenerationObjectName(userID, generationID)

	err := svc.client.RemoveObject(ctx, svc.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file from MinIO: %v", err)
	}

	return nil
}

func (svc *MinIOService) Healthy(ctx context.Context) error {
	_, err := svc.client.BucketExists(ctx, svc.bucketName)
	return err
}
