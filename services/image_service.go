package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/cafe-orders-api/utils"
)

const imageURLTTL = time.Hour

// MenuImageService validates and stores menu item images
type MenuImageService struct {
	storage ObjectStorage
}

// NewMenuImageService creates an image service backed by storage
func NewMenuImageService(storage ObjectStorage) *MenuImageService {
	return &MenuImageService{storage: storage}
}

// Upload validates the file and stores it, returning the storage key
func (s *MenuImageService) Upload(ctx context.Context, menuItemID uint, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}
	contentType, _ := utils.ImageContentType(fileHeader.Filename)

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	key := fmt.Sprintf("menu/%d/%s%s", menuItemID, uuid.NewString(), utils.ImageExtension(fileHeader.Filename))
	if err := s.storage.PutObject(ctx, key, file, contentType); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

// URL returns a short-lived URL for key
func (s *MenuImageService) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	url, err := s.storage.PresignGet(ctx, key, imageURLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

// Delete removes a previously uploaded image
func (s *MenuImageService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.storage.DeleteObject(ctx, key); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
