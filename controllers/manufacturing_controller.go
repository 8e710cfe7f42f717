package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/novodent/novodent-manufacturing-api/config"
	"github.com/novodent/novodent-manufacturing-api/middleware"
	"github.com/novodent/novodent-manufacturing-api/models"
	"github.com/novodent/novodent-manufacturing-api/services"
)

// CreateManufacturingOrderRequest represents the request body for creating a
// manufacturing order from a converted lab script. Field names match the
// persisted contract.
type CreateManufacturingOrderRequest struct {
	PatientName           string  `json:"patientName" binding:"required"`
	ArchType              string  `json:"archType" binding:"required,oneof=upper lower dual"`
	UpperApplianceType    *string `json:"upperApplianceType"`
	LowerApplianceType    *string `json:"lowerApplianceType"`
	UpperApplianceNumber  *string `json:"upperApplianceNumber"`
	LowerApplianceNumber  *string `json:"lowerApplianceNumber"`
	IsNightguardNeeded    string  `json:"isNightguardNeeded" binding:"omitempty,oneof=yes no"`
	UpperNightguardNumber *string `json:"upperNightguardNumber"`
	LowerNightguardNumber *string `json:"lowerNightguardNumber"`
	Shade                 string  `json:"shade" binding:"required"`
	Material              *string `json:"material"`
	ScrewType             *string `json:"screwType"`
	ManufacturingMethod   string  `json:"manufacturingMethod" binding:"required,oneof=printing milling"`
}

// StartMillingRequest carries the milling instructions for the Start Milling
// transition.
type StartMillingRequest struct {
	MillingLocation  string  `json:"millingLocation"`
	GingivaColor     *string `json:"gingivaColor"`
	StainedAndGlazed *string `json:"stainedAndGlazed" binding:"omitempty,oneof=yes no"`
	Cementation      *string `json:"cementation" binding:"omitempty,oneof=yes no"`
	AdditionalNotes  *string `json:"additionalNotes"`
}

// ShipOrderRequest carries carrier tracking data for the Shipped by Lab
// transition.
type ShipOrderRequest struct {
	TrackingNumber string  `json:"trackingNumber"`
	TrackingLink   *string `json:"trackingLink"`
}

// CompletePrintingRequest carries the completion timestamp for the Complete
// Printing transition. Attribution comes from the authenticated user.
type CompletePrintingRequest struct {
	CompletionDate string `json:"completionDate" binding:"required"`
	CompletionTime string `json:"completionTime" binding:"required"`
}

// CompleteInspectionRequest carries the four checklist results plus the
// completion timestamp for the Complete Inspection transition.
type CompleteInspectionRequest struct {
	PrintQuality       string `json:"printQuality" binding:"required"`
	PhysicalDefects    string `json:"physicalDefects" binding:"required"`
	ScrewAccessChannel string `json:"screwAccessChannel" binding:"required"`
	MuaPlatform        string `json:"muaPlatform" binding:"required"`
	CompletionDate     string `json:"completionDate" binding:"required"`
	CompletionTime     string `json:"completionTime" binding:"required"`
}

// currentUser resolves the authenticated user's profile. On failure it writes
// the error response and returns false.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return nil, false
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User profile not found. Please create a profile first.",
			},
		})
		return nil, false
	}
	return &user, true
}

// orderIDParam parses the :id URL parameter. On failure it writes the error
// response and returns false.
func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Order ID must be a positive integer",
			},
		})
		return 0, false
	}
	return uint(id), true
}

// respondTransitionError maps service-layer errors onto the API error
// envelope: illegal transitions are conflicts, payload problems are bad
// requests, unknown orders are 404s, anything else is a store failure.
func respondTransitionError(c *gin.Context, err error) {
	var invalid *services.InvalidTransitionError
	var validation *services.ValidationError
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_TRANSITION",
				"message": invalid.Error(),
			},
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_REQUIRED_FIELD",
				"message": validation.Error(),
				"field":   validation.Field,
			},
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Manufacturing order not found",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update manufacturing order",
			},
		})
	}
}

// CreateManufacturingOrder handles POST /api/v1/manufacturing-orders -
// creates an order from a converted lab script (technicians only). The
// initial status is derived from the manufacturing method.
func CreateManufacturingOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if user.Role != models.RoleTechnician {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only technicians can create manufacturing orders",
			},
		})
		return
	}

	var req CreateManufacturingOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	nightguard := req.IsNightguardNeeded
	if nightguard == "" {
		nightguard = models.NoValue
	}

	order := models.ManufacturingOrder{
		PatientName:           req.PatientName,
		ArchType:              req.ArchType,
		UpperApplianceType:    req.UpperApplianceType,
		LowerApplianceType:    req.LowerApplianceType,
		UpperApplianceNumber:  req.UpperApplianceNumber,
		LowerApplianceNumber:  req.LowerApplianceNumber,
		IsNightguardNeeded:    nightguard,
		UpperNightguardNumber: req.UpperNightguardNumber,
		LowerNightguardNumber: req.LowerNightguardNumber,
		Shade:                 req.Shade,
		Material:              req.Material,
		ScrewType:             req.ScrewType,
		ManufacturingMethod:   req.ManufacturingMethod,
		Status:                models.InitialStatus(req.ManufacturingMethod),
	}

	db := config.GetDB()
	if err := db.Create(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create manufacturing order",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// parseFilterSpec builds the view filter from list query parameters.
// Multi-value categories are comma separated, e.g. ?status=printing,milling.
func parseFilterSpec(c *gin.Context) services.FilterSpec {
	multi := func(name string) []string {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		return values
	}
	return services.FilterSpec{
		Status:              multi("status"),
		ArchType:            multi("archType"),
		ApplianceType:       multi("applianceType"),
		Material:            multi("material"),
		Shade:               multi("shade"),
		ManufacturingMethod: multi("manufacturingMethod"),
		MillingLocation:     multi("millingLocation"),
		InspectionStatus:    multi("inspectionStatus"),
		Search:              c.Query("search"),
	}
}

// ListManufacturingOrders handles GET /api/v1/manufacturing-orders - lists
// orders with compound filters and a single-field sort.
func ListManufacturingOrders(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	db := config.GetDB()
	var orders []models.ManufacturingOrder
	if err := db.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load manufacturing orders",
			},
		})
		return
	}

	sortSpec := services.SortSpec{
		Field:      c.DefaultQuery("sortBy", services.SortByCreatedAt),
		Descending: c.Query("sortDir") == "desc",
	}
	visible := services.FilterAndSort(orders, parseFilterSpec(c), sortSpec)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    visible,
		"total":   len(visible),
	})
}

// GetManufacturingOrderCounts handles GET /api/v1/manufacturing-orders/counts
// - returns the eight dashboard bucket counts, recomputed from the live
// collection.
func GetManufacturingOrderCounts(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	db := config.GetDB()
	var orders []models.ManufacturingOrder
	if err := db.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load manufacturing orders",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    services.CountByBucket(orders),
	})
}

// GetManufacturingOrder handles GET /api/v1/manufacturing-orders/:id
func GetManufacturingOrder(c *gin.Context) {
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

	// Attach a presigned URL when a QC photo exists
	if order.InspectionPhotoS3Key != nil {
		if imageService := services.GetImageService(); imageService != nil {
			if url, err := imageService.GetImageURL(*order.InspectionPhotoS3Key); err == nil && url != "" {
				order.InspectionPhotoURL = &url
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// StartPrinting handles POST /api/v1/manufacturing-orders/:id/start-printing
func StartPrinting(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := services.StartPrinting(config.GetDB(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

// StartMilling handles POST /api/v1/manufacturing-orders/:id/start-milling -
// advances the order to milling and records the immutable milling form.
func StartMilling(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req StartMillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	order, err := services.StartMilling(config.GetDB(), id, services.MillingDetails{
		MillingLocation:  req.MillingLocation,
		GingivaColor:     req.GingivaColor,
		StainedAndGlazed: req.StainedAndGlazed,
		Cementation:      req.Cementation,
		AdditionalNotes:  req.AdditionalNotes,
	})
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

// CompletePrinting handles POST
// /api/v1/manufacturing-orders/:id/complete-printing - closes the printing
// path. Attribution is taken from the authenticated user.
func CompletePrinting(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req CompletePrintingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	order, err := services.CompletePrinting(config.GetDB(), id, services.CompletionDetails{
		Date:            req.CompletionDate,
		Time:            req.CompletionTime,
		CompletedBy:     user.Auth0ID,
		CompletedByName: user.Name,
	})
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

// ShipOrder handles POST /api/v1/manufacturing-orders/:id/ship - records
// tracking data when the milling lab ships the appliance back.
func ShipOrder(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req ShipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	order, err := services.ShipFromLab(config.GetDB(), id, services.ShippingDetails{
		TrackingNumber: req.TrackingNumber,
		TrackingLink:   req.TrackingLink,
	})
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

// StartInspection handles POST
// /api/v1/manufacturing-orders/:id/start-inspection
func StartInspection(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := services.StartInspection(config.GetDB(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

// CompleteInspection handles POST
// /api/v1/manufacturing-orders/:id/complete-inspection - records the QC
// checklist and closes the milling path. Attribution is taken from the
// authenticated user.
func CompleteInspection(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req CompleteInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	checklist := services.InspectionChecklist{
		PrintQuality:       req.PrintQuality,
		PhysicalDefects:    req.PhysicalDefects,
		ScrewAccessChannel: req.ScrewAccessChannel,
		MuaPlatform:        req.MuaPlatform,
	}
	completion := services.CompletionDetails{
		Date:            req.CompletionDate,
		Time:            req.CompletionTime,
		CompletedBy:     user.Auth0ID,
		CompletedByName: user.Name,
	}
	order, err := services.CompleteInspection(config.GetDB(), id, checklist, completion)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

// GetMillingForm handles GET /api/v1/manufacturing-orders/:id/milling-form -
// returns the immutable milling instruction snapshot for an order.
func GetMillingForm(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	form, err := services.GetMillingForm(config.GetDB(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MILLING_FORM_NOT_FOUND",
					"message": "No milling form exists for this order",
				},
			})
			return
		}
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": form})
}

// GetFabricationReport handles GET /api/v1/manufacturing-orders/:id/report -
// returns the joined printing/inspection completion record for display or
// export.
func GetFabricationReport(c *gin.Context) {
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

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    services.BuildFabricationReport(&order),
	})
}
