package main

import (
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/models"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/gin-gonic/gin"
)

// 10 MB per image keeps thumbnails cheap to generate in-process.
const maxUploadBytes = 10 << 20

func uploadSingleImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		resp, err := models.UploadSingleImage(c.Request.Context(), fileHeader)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func uploadMultipleImagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
			return
		}
		fileHeaders := form.File["files"]
		if len(fileHeaders) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "files are required"})
			return
		}
		for _, fh := range fileHeaders {
			if fh.Size > maxUploadBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large: " + fh.Filename})
				return
			}
		}
		resp, err := models.UploadMultipleImages(c.Request.Context(), fileHeaders)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func removeImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Url string `json:"url" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}
		resp, err := models.RemoveImage(c.Request.Context(), req.Url)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// signUploadHandler hands the client a short-lived signed URL so large
// files go straight to object storage instead of through this server.
func signUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ObjectKey   string `json:"object_key" binding:"required"`
			ContentType string `json:"content_type" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "object_key and content_type are required"})
			return
		}
		signed, err := utils.SignUpload(c.Request.Context(), req.ObjectKey, req.ContentType, 15*time.Minute)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, signed)
	}
}
