package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/muraselchat/murasel-backend/internal/models"
)

// MediaService uploads message attachments to Cloudinary and returns the
// unencrypted reference carried by image/video/audio/file messages.
type MediaService struct {
	cld *cloudinary.Cloudinary
}

func NewMediaService(cloudName, apiKey, apiSecret string) (*MediaService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &MediaService{cld: cld}, nil
}

// Upload stores the file under the given folder and returns its media reference.
func (s *MediaService) Upload(ctx context.Context, file multipart.File, folder string) (*models.Media, error) {
	result, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}

	return &models.Media{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
	}, nil
}

// UploadFromHeader opens a multipart file header and uploads it, filling in
// the original file metadata.
func (s *MediaService) UploadFromHeader(ctx context.Context, fh *multipart.FileHeader, folder string) (*models.Media, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	media, err := s.Upload(ctx, file, folder)
	if err != nil {
		return nil, err
	}
	media.FileName = fh.Filename
	media.FileSize = fh.Size
	media.MimeType = fh.Header.Get("Content-Type")
	return media, nil
}
