package models

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/disintegration/imaging"
	"gorm.io/gorm"
)

type Image struct {
	ID            int    `gorm:"primary_key" json:"id"`
	ImageUrl      string `json:"image_url"`
	ThumbnailUrl  string `json:"thumbnail_url"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   int    `json:"reference_id"`
}

type NewImage struct {
	Id           int    `json:"id"`
	IsDeleted    bool   `json:"is_deleted"`
	ImageUrl     string `json:"image_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

type UploadResponse struct {
	ImageUrl     string `json:"image_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

// UploadImage stores the original and a 200px thumbnail, returning both URLs.
func UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, string, error) {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	if fileHeader == nil {
		return "", "", errors.New("nil file provided")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", err
	}

	imageData := base64.StdEncoding.EncodeToString(data)

	ext := filepath.Ext(fileHeader.Filename)
	if ext == "" {
		return "", "", errors.New("file has no extension")
	}
	storagePath := "products/"
	uniqueFilename := businessId + " " + utils.GenerateUniqueFilename() + ext
	originalImageObjectURL := filepath.Join(storagePath, uniqueFilename)
	thumbnailImageObjectURL := filepath.Join(storagePath, "thumbnails", uniqueFilename)

	err = utils.SaveImageToGCS(ctx, originalImageObjectURL, imageData)
	if err != nil {
		return "", "", err
	}

	thumbnailData, err := generateThumbnail(data)
	if err != nil {
		return "", "", err
	}

	thumbnailImageData := base64.StdEncoding.EncodeToString(thumbnailData)
	err = utils.SaveImageToGCS(ctx, thumbnailImageObjectURL, thumbnailImageData)
	if err != nil {
		return "", "", err
	}

	originalCloudURL := utils.BuildObjectAccessURL(originalImageObjectURL)
	thumbnailCloudURL := utils.BuildObjectAccessURL(thumbnailImageObjectURL)

	return originalCloudURL, thumbnailCloudURL, nil
}

func UploadSingleImage(ctx context.Context, fileHeader *multipart.FileHeader) (*UploadResponse, error) {
	originalCloudURL, thumbnailCloudURL, err := UploadImage(ctx, fileHeader)
	if err != nil {
		return nil, err
	}

	return &UploadResponse{
		ImageUrl:     originalCloudURL,
		ThumbnailUrl: thumbnailCloudURL,
	}, nil
}

func UploadMultipleImages(ctx context.Context, fileHeaders []*multipart.FileHeader) ([]*UploadResponse, error) {
	var responseData []*UploadResponse

	for _, fileHeader := range fileHeaders {
		originalCloudURL, thumbnailCloudURL, err := UploadImage(ctx, fileHeader)
		if err != nil {
			return nil, err
		}
		responseData = append(responseData, &UploadResponse{
			ImageUrl:     originalCloudURL,
			ThumbnailUrl: thumbnailCloudURL,
		})
	}

	return responseData, nil
}

// remove single image, including thumbnail
func RemoveImage(ctx context.Context, fullUrl string) (*UploadResponse, error) {
	// only remove image if not used in database
	var count int64
	db := config.GetDB()
	if err := db.Model(&Image{}).WithContext(ctx).Where("image_url = ?", fullUrl).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cannot delete image associated with database")
	}

	objectName := utils.ExtractObjectKeyFromURL(fullUrl)
	if objectName == "" {
		return nil, errors.New("invalid url")
	}
	if ok, err := utils.ObjectExistsInGCS(ctx, objectName); !ok || err != nil {
		return nil, errors.New("object does not exist")
	}

	if err := utils.DeleteFileFromGCS(ctx, objectName); err != nil {
		return nil, err
	}
	storagePath := strings.Split(objectName, "/")[0]
	filename := strings.Split(objectName, "/")[1]
	thumbnailObjectName := filepath.Join(storagePath, "thumbnails", filename)
	if err := utils.DeleteFileFromGCS(ctx, thumbnailObjectName); err != nil {
		return nil, err
	}

	return &UploadResponse{
		ImageUrl:     utils.BuildObjectAccessURL(objectName),
		ThumbnailUrl: utils.BuildObjectAccessURL(thumbnailObjectName),
	}, nil
}

func generateThumbnail(originalData []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(originalData))
	if err != nil {
		return nil, err
	}

	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var thumbnailBuffer bytes.Buffer
	err = imaging.Encode(&thumbnailBuffer, thumbnail, imaging.JPEG)
	if err != nil {
		return nil, err
	}

	return thumbnailBuffer.Bytes(), nil
}

func createImages(tx *gorm.DB, ctx context.Context, businessId string, referenceId int, referenceType string, inputs []*NewImage) error {
	for _, input := range inputs {
		if input == nil || input.IsDeleted {
			continue
		}
		image := Image{
			ImageUrl:      input.ImageUrl,
			ThumbnailUrl:  input.ThumbnailUrl,
			ReferenceType: referenceType,
			ReferenceID:   referenceId,
		}
		if err := tx.WithContext(ctx).Create(&image).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpsertImages reconciles a product's image set against the input list:
// new rows are created, rows flagged is_deleted are removed.
func UpsertImages(ctx context.Context, tx *gorm.DB, inputImages []*NewImage, referenceType string, referenceId int) ([]*Image, error) {
	var images []*Image
	for _, input := range inputImages {
		if input == nil {
			continue
		}
		if input.Id > 0 && input.IsDeleted {
			if err := tx.WithContext(ctx).
				Where("id = ? AND reference_type = ? AND reference_id = ?", input.Id, referenceType, referenceId).
				Delete(&Image{}).Error; err != nil {
				return nil, err
			}
			continue
		}
		if input.Id == 0 {
			image := Image{
				ImageUrl:      input.ImageUrl,
				ThumbnailUrl:  input.ThumbnailUrl,
				ReferenceType: referenceType,
				ReferenceID:   referenceId,
			}
			if err := tx.WithContext(ctx).Create(&image).Error; err != nil {
				return nil, err
			}
			images = append(images, &image)
		}
	}
	return images, nil
}
