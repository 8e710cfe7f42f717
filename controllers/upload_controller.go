package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/novodent/novodent-manufacturing-api/config"
	"github.com/novodent/novodent-manufacturing-api/models"
	"github.com/novodent/novodent-manufacturing-api/services"
	"github.com/novodent/novodent-manufacturing-api/utils"
)

// UploadInspectionPhoto handles POST
// /api/v1/manufacturing-orders/:id/inspection-photo - attaches a QC photo to
// an order under inspection. The file is stored in S3 and the key recorded on
// the order.
func UploadInspectionPhoto(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var order models.ManufacturingOrder
	if err := db.First(&order, id).Error; err != nil {
		respondTransitionError(c, err)
		return
	}

	// Photos document the QC checklist, so only orders under inspection
	// accept them.
	if order.Status != models.StatusInspection {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_TRANSITION",
				"message": "Inspection photos can only be added while the order is under inspection",
			},
		})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "A photo file is required",
			},
		})
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORAGE_UNAVAILABLE",
				"message": "Photo storage is not configured",
			},
		})
		return
	}

	s3Key, err := imageService.UploadImage(fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    uploadErr.Code,
					"message": uploadErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": "Failed to store inspection photo",
			},
		})
		return
	}

	if err := db.Model(&order).Update("inspection_photo_s3_key", s3Key).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to record inspection photo",
			},
		})
		return
	}

	url, err := imageService.GetImageURL(s3Key)
	if err != nil {
		url = ""
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"inspectionPhotoS3Key": s3Key,
			"inspectionPhotoUrl":   url,
		},
	})
}

// GetInspectionPhoto handles GET
// /api/v1/manufacturing-orders/:id/inspection-photo - returns a presigned URL
// for the order's QC photo.
func GetInspectionPhoto(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var order models.ManufacturingOrder
	if err := db.First(&order, id).Error; err != nil {
		respondTransitionError(c, err)
		return
	}

	if order.InspectionPhotoS3Key == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "No inspection photo exists for this order",
			},
		})
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORAGE_UNAVAILABLE",
				"message": "Photo storage is not configured",
			},
		})
		return
	}

	url, err := imageService.GetImageURL(*order.InspectionPhotoS3Key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORAGE_ERROR",
				"message": "Failed to generate photo URL",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"inspectionPhotoUrl": url,
		},
	})
}
