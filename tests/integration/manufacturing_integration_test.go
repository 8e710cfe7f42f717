package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/novodent/novodent-manufacturing-api/config"
	"github.com/novodent/novodent-manufacturing-api/controllers"
	"github.com/novodent/novodent-manufacturing-api/middleware"
	"github.com/novodent/novodent-manufacturing-api/models"
	"github.com/novodent/novodent-manufacturing-api/services"
	"github.com/novodent/novodent-manufacturing-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ManufacturingIntegrationTestSuite exercises the order lifecycle through the
// HTTP layer: controllers, transition engine and database together.
type ManufacturingIntegrationTestSuite struct {
	suite.Suite
	router *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
}

// SetupSuite runs once before all tests
func (suite *ManufacturingIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	testutil.MustSetTestEnvironment(suite.T())
	os.Setenv("AUTH0_DOMAIN", "test.auth0.com")
	os.Setenv("AUTH0_AUDIENCE", "https://api.test.com")
	os.Setenv("PORT", "8080")
	os.Setenv("AWS_REGION", "us-east-1")
	os.Setenv("AWS_S3_BUCKET", "test-bucket")
	os.Setenv("AWS_ACCESS_KEY_ID", "test-key")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "test-secret")

	cfg, err := config.Load()
	suite.NoError(err)
	suite.cfg = cfg
}

// SetupTest runs before each test
func (suite *ManufacturingIntegrationTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.NoError(err)
	suite.db = db

	err = db.AutoMigrate(&models.User{}, &models.ManufacturingOrder{}, &models.MillingForm{}, &models.OrderMessage{})
	suite.NoError(err)

	config.SetDB(db)

	mockS3 := services.NewMockS3Service()
	mockS3.SetAsMockForTesting()
	services.InitImageService(mockS3)

	suite.router = gin.New()

	v1 := suite.router.Group("/api/v1")
	{
		tech := suite.mockAuthMiddleware("auth0|technician", models.RoleTechnician)
		orders := v1.Group("/manufacturing-orders")
		{
			orders.POST("", tech, controllers.CreateManufacturingOrder)
			orders.GET("", tech, controllers.ListManufacturingOrders)
			orders.GET("/counts", tech, controllers.GetManufacturingOrderCounts)
			orders.GET("/:id", tech, controllers.GetManufacturingOrder)
			orders.POST("/:id/start-printing", tech, controllers.StartPrinting)
			orders.POST("/:id/start-milling", tech, controllers.StartMilling)
			orders.POST("/:id/complete-printing", tech, controllers.CompletePrinting)
			orders.POST("/:id/ship", tech, controllers.ShipOrder)
			orders.POST("/:id/start-inspection", tech, controllers.StartInspection)
			orders.POST("/:id/complete-inspection", tech, controllers.CompleteInspection)
			orders.GET("/:id/milling-form", tech, controllers.GetMillingForm)
			orders.GET("/:id/report", tech, controllers.GetFabricationReport)
		}
		dentist := suite.mockAuthMiddleware("auth0|dentist", models.RoleDentist)
		v1.POST("/dentist/manufacturing-orders", dentist, controllers.CreateManufacturingOrder)
	}

	// The profiles the mock tokens resolve to
	suite.createUser("auth0|technician", "Alex Rivera", "alex@novodent.io", models.RoleTechnician)
	suite.createUser("auth0|dentist", "Dr. Patel", "patel@example.com", models.RoleDentist)
}

// TearDownTest runs after each test
func (suite *ManufacturingIntegrationTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

// mockAuthMiddleware creates a middleware that simulates authentication
func (suite *ManufacturingIntegrationTestSuite) mockAuthMiddleware(auth0ID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", "mock-token")

		customClaims := &middleware.CustomClaims{
			Role: role,
		}
		c.Set("custom_claims", customClaims)

		c.Next()
	}
}

func (suite *ManufacturingIntegrationTestSuite) createUser(auth0ID, name, email, role string) models.User {
	user := models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   email,
		Role:    role,
	}
	suite.NoError(suite.db.Create(&user).Error)
	return user
}

// request performs a JSON request against the suite router
func (suite *ManufacturingIntegrationTestSuite) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *ManufacturingIntegrationTestSuite) parse(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func (suite *ManufacturingIntegrationTestSuite) createOrderRequest(patient, method string) map[string]interface{} {
	return map[string]interface{}{
		"patientName":         patient,
		"archType":            models.ArchUpper,
		"upperApplianceType":  "full-arch-fixed",
		"shade":               "A2",
		"manufacturingMethod": method,
	}
}

// TestPrintingLifecycle_EndToEnd walks a printed appliance from lab script
// conversion to completion.
func (suite *ManufacturingIntegrationTestSuite) TestPrintingLifecycle_EndToEnd() {
	w := suite.request(http.MethodPost, "/api/v1/manufacturing-orders", suite.createOrderRequest("Jordan Smith", models.MethodPrinting))
	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	data := suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusPendingPrinting, data["status"])
	orderID := int(data["id"].(float64))
	basePath := fmt.Sprintf("/api/v1/manufacturing-orders/%d", orderID)

	w = suite.request(http.MethodPost, basePath+"/start-printing", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data = suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusPrinting, data["status"])

	w = suite.request(http.MethodPost, basePath+"/complete-printing", map[string]interface{}{
		"completionDate": "2025-03-10",
		"completionTime": "14:30",
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data = suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusCompleted, data["status"])
	assert.Equal(suite.T(), "Alex Rivera", data["printingCompletedByName"])
	assert.Equal(suite.T(), "auth0|technician", data["printingCompletedBy"])

	// Terminal: no further transition is accepted
	w = suite.request(http.MethodPost, basePath+"/start-printing", nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	errorData := suite.parse(w)["error"].(map[string]interface{})
	assert.Equal(suite.T(), "INVALID_TRANSITION", errorData["code"])

	// The report reflects the printing completion only
	w = suite.request(http.MethodGet, basePath+"/report", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	report := suite.parse(w)["data"].(map[string]interface{})
	printing := report["printing"].(map[string]interface{})
	assert.Equal(suite.T(), true, printing["applicable"])
	inspection := report["inspection"].(map[string]interface{})
	assert.Equal(suite.T(), false, inspection["applicable"])
}

// TestMillingLifecycle_EndToEnd walks a milled appliance through the outsourced
// fabrication path: milling, shipping, inspection, completion.
func (suite *ManufacturingIntegrationTestSuite) TestMillingLifecycle_EndToEnd() {
	w := suite.request(http.MethodPost, "/api/v1/manufacturing-orders", suite.createOrderRequest("Casey Jones", models.MethodMilling))
	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	data := suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusPendingMilling, data["status"])
	orderID := int(data["id"].(float64))
	basePath := fmt.Sprintf("/api/v1/manufacturing-orders/%d", orderID)

	// Milling forms do not exist before the transition
	w = suite.request(http.MethodGet, basePath+"/milling-form", nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w = suite.request(http.MethodPost, basePath+"/start-milling", map[string]interface{}{
		"millingLocation": "Apex Milling Center",
		"gingivaColor":    "light-pink",
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data = suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusMilling, data["status"])
	assert.Equal(suite.T(), "Apex Milling Center", data["millingLocation"])

	// The transition recorded an immutable snapshot of the instructions
	w = suite.request(http.MethodGet, basePath+"/milling-form", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	form := suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), "Casey Jones", form["patientName"])
	assert.Equal(suite.T(), "Apex Milling Center", form["millingLocation"])
	assert.Equal(suite.T(), float64(orderID), form["manufacturingItemId"])

	w = suite.request(http.MethodPost, basePath+"/ship", map[string]interface{}{
		"trackingNumber": "1Z999AA10123456784",
		"trackingLink":   "https://track.example.com/1Z999AA10123456784",
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data = suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusInTransit, data["status"])
	assert.Equal(suite.T(), "1Z999AA10123456784", data["trackingNumber"])

	w = suite.request(http.MethodPost, basePath+"/start-inspection", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data = suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusInspection, data["status"])

	w = suite.request(http.MethodPost, basePath+"/complete-inspection", map[string]interface{}{
		"printQuality":       models.ChecklistPass,
		"physicalDefects":    models.ChecklistPass,
		"screwAccessChannel": models.ChecklistPass,
		"muaPlatform":        models.ChecklistPass,
		"completionDate":     "2025-03-12",
		"completionTime":     "09:15",
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data = suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusCompleted, data["status"])
	assert.Equal(suite.T(), models.InspectionApproved, data["inspectionStatus"])
	assert.Equal(suite.T(), "Alex Rivera", data["inspectionCompletedByName"])

	w = suite.request(http.MethodGet, basePath+"/report", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	report := suite.parse(w)["data"].(map[string]interface{})
	inspection := report["inspection"].(map[string]interface{})
	assert.Equal(suite.T(), true, inspection["applicable"])
	assert.Equal(suite.T(), models.InspectionApproved, inspection["inspectionStatus"])
}

// TestMillingLifecycle_RejectedInspection verifies a failed checklist closes
// the order as rejected but still completed.
func (suite *ManufacturingIntegrationTestSuite) TestMillingLifecycle_RejectedInspection() {
	order := models.ManufacturingOrder{
		PatientName:         "Morgan Lee",
		ArchType:            models.ArchLower,
		Shade:               "B1",
		IsNightguardNeeded:  models.NoValue,
		ManufacturingMethod: models.MethodMilling,
		Status:              models.StatusInspection,
	}
	suite.NoError(suite.db.Create(&order).Error)
	basePath := fmt.Sprintf("/api/v1/manufacturing-orders/%d", order.ID)

	w := suite.request(http.MethodPost, basePath+"/complete-inspection", map[string]interface{}{
		"printQuality":       models.ChecklistPass,
		"physicalDefects":    models.ChecklistFail,
		"screwAccessChannel": models.ChecklistPass,
		"muaPlatform":        models.ChecklistPass,
		"completionDate":     "2025-03-12",
		"completionTime":     "16:45",
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusCompleted, data["status"])
	assert.Equal(suite.T(), models.InspectionRejected, data["inspectionStatus"])
}

// TestStartMilling_TiBarRequiresCementation covers the conditional milling
// field: ti-bar superstructures must carry a cementation decision.
func (suite *ManufacturingIntegrationTestSuite) TestStartMilling_TiBarRequiresCementation() {
	tiBar := models.ApplianceTiBarSuperstructure
	order := models.ManufacturingOrder{
		PatientName:         "Riley Chen",
		ArchType:            models.ArchUpper,
		UpperApplianceType:  &tiBar,
		Shade:               "A3",
		IsNightguardNeeded:  models.NoValue,
		ManufacturingMethod: models.MethodMilling,
		Status:              models.StatusPendingMilling,
	}
	suite.NoError(suite.db.Create(&order).Error)
	basePath := fmt.Sprintf("/api/v1/manufacturing-orders/%d", order.ID)

	w := suite.request(http.MethodPost, basePath+"/start-milling", map[string]interface{}{
		"millingLocation": "Apex Milling Center",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	errorData := suite.parse(w)["error"].(map[string]interface{})
	assert.Equal(suite.T(), "MISSING_REQUIRED_FIELD", errorData["code"])
	assert.Equal(suite.T(), "cementation", errorData["field"])

	// The order is untouched by the failed transition
	var persisted models.ManufacturingOrder
	suite.NoError(suite.db.First(&persisted, order.ID).Error)
	assert.Equal(suite.T(), models.StatusPendingMilling, persisted.Status)
	assert.Nil(suite.T(), persisted.MillingLocation)

	w = suite.request(http.MethodPost, basePath+"/start-milling", map[string]interface{}{
		"millingLocation": "Apex Milling Center",
		"cementation":     models.YesValue,
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := suite.parse(w)["data"].(map[string]interface{})
	assert.Equal(suite.T(), models.StatusMilling, data["status"])
	assert.Equal(suite.T(), models.YesValue, data["cementation"])
}

// TestShip_MissingTrackingNumber verifies shipping without carrier data is
// rejected without advancing the order.
func (suite *ManufacturingIntegrationTestSuite) TestShip_MissingTrackingNumber() {
	order := models.ManufacturingOrder{
		PatientName:         "Sam Field",
		ArchType:            models.ArchDual,
		Shade:               "A1",
		IsNightguardNeeded:  models.NoValue,
		ManufacturingMethod: models.MethodMilling,
		Status:              models.StatusMilling,
	}
	suite.NoError(suite.db.Create(&order).Error)

	w := suite.request(http.MethodPost, fmt.Sprintf("/api/v1/manufacturing-orders/%d/ship", order.ID), map[string]interface{}{
		"trackingNumber": "   ",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	errorData := suite.parse(w)["error"].(map[string]interface{})
	assert.Equal(suite.T(), "MISSING_REQUIRED_FIELD", errorData["code"])
	assert.Equal(suite.T(), "trackingNumber", errorData["field"])

	var persisted models.ManufacturingOrder
	suite.NoError(suite.db.First(&persisted, order.ID).Error)
	assert.Equal(suite.T(), models.StatusMilling, persisted.Status)
}

// TestCrossPathTransitionsRejected verifies printing triggers cannot fire on a
// milled order and vice versa.
func (suite *ManufacturingIntegrationTestSuite) TestCrossPathTransitionsRejected() {
	w := suite.request(http.MethodPost, "/api/v1/manufacturing-orders", suite.createOrderRequest("Jamie Ortiz", models.MethodMilling))
	assert.Equal(suite.T(), http.StatusCreated, w.Code)
	orderID := int(suite.parse(w)["data"].(map[string]interface{})["id"].(float64))
	basePath := fmt.Sprintf("/api/v1/manufacturing-orders/%d", orderID)

	w = suite.request(http.MethodPost, basePath+"/start-printing", nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	w = suite.request(http.MethodPost, basePath+"/ship", map[string]interface{}{"trackingNumber": "TRACK1"})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	w = suite.request(http.MethodPost, basePath+"/complete-inspection", map[string]interface{}{
		"printQuality":       models.ChecklistPass,
		"physicalDefects":    models.ChecklistPass,
		"screwAccessChannel": models.ChecklistPass,
		"muaPlatform":        models.ChecklistPass,
		"completionDate":     "2025-03-12",
		"completionTime":     "10:00",
	})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

// TestDentistCannotCreateOrder ensures only technicians convert lab scripts
// into manufacturing orders.
func (suite *ManufacturingIntegrationTestSuite) TestDentistCannotCreateOrder() {
	w := suite.request(http.MethodPost, "/api/v1/dentist/manufacturing-orders", suite.createOrderRequest("Pat Doe", models.MethodPrinting))
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	errorData := suite.parse(w)["error"].(map[string]interface{})
	assert.Equal(suite.T(), "FORBIDDEN", errorData["code"])
}

// TestListOrders_FiltersAndSort seeds a mixed collection and checks the view
// query parameters.
func (suite *ManufacturingIntegrationTestSuite) TestListOrders_FiltersAndSort() {
	zirconia := "zirconia"
	seed := []models.ManufacturingOrder{
		{PatientName: "Avery Brook", ArchType: models.ArchUpper, Shade: "A1", IsNightguardNeeded: models.NoValue, ManufacturingMethod: models.MethodPrinting, Status: models.StatusPrinting},
		{PatientName: "Blake Stone", ArchType: models.ArchLower, Shade: "A2", IsNightguardNeeded: models.NoValue, ManufacturingMethod: models.MethodMilling, Status: models.StatusMilling, Material: &zirconia},
		{PatientName: "Cameron Hale", ArchType: models.ArchDual, Shade: "B1", IsNightguardNeeded: models.NoValue, ManufacturingMethod: models.MethodMilling, Status: models.StatusInTransit},
	}
	for i := range seed {
		suite.NoError(suite.db.Create(&seed[i]).Error)
	}

	w := suite.request(http.MethodGet, "/api/v1/manufacturing-orders?status=milling,in-transit", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	response := suite.parse(w)
	assert.Equal(suite.T(), float64(2), response["total"])

	w = suite.request(http.MethodGet, "/api/v1/manufacturing-orders?material=zirconia", nil)
	response = suite.parse(w)
	orders := response["data"].([]interface{})
	suite.Len(orders, 1)
	assert.Equal(suite.T(), "Blake Stone", orders[0].(map[string]interface{})["patientName"])

	w = suite.request(http.MethodGet, "/api/v1/manufacturing-orders?search=brook", nil)
	response = suite.parse(w)
	orders = response["data"].([]interface{})
	suite.Len(orders, 1)
	assert.Equal(suite.T(), "Avery Brook", orders[0].(map[string]interface{})["patientName"])

	w = suite.request(http.MethodGet, "/api/v1/manufacturing-orders?sortBy=patientName&sortDir=desc", nil)
	response = suite.parse(w)
	orders = response["data"].([]interface{})
	suite.Len(orders, 3)
	assert.Equal(suite.T(), "Cameron Hale", orders[0].(map[string]interface{})["patientName"])
	assert.Equal(suite.T(), "Avery Brook", orders[2].(map[string]interface{})["patientName"])
}

// TestCounts_CoverAllBuckets verifies the dashboard counts endpoint returns
// every bucket, including empty ones.
func (suite *ManufacturingIntegrationTestSuite) TestCounts_CoverAllBuckets() {
	seed := []models.ManufacturingOrder{
		{PatientName: "Avery Brook", ArchType: models.ArchUpper, Shade: "A1", IsNightguardNeeded: models.NoValue, ManufacturingMethod: models.MethodPrinting, Status: models.StatusPendingPrinting},
		{PatientName: "Blake Stone", ArchType: models.ArchLower, Shade: "A2", IsNightguardNeeded: models.NoValue, ManufacturingMethod: models.MethodMilling, Status: models.StatusPendingMilling},
		{PatientName: "Cameron Hale", ArchType: models.ArchDual, Shade: "B1", IsNightguardNeeded: models.NoValue, ManufacturingMethod: models.MethodMilling, Status: models.StatusMilling},
	}
	for i := range seed {
		suite.NoError(suite.db.Create(&seed[i]).Error)
	}

	w := suite.request(http.MethodGet, "/api/v1/manufacturing-orders/counts", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	counts := suite.parse(w)["data"].(map[string]interface{})

	assert.Equal(suite.T(), float64(2), counts[services.BucketNewScript])
	assert.Equal(suite.T(), float64(1), counts[services.BucketMilling])
	assert.Equal(suite.T(), float64(0), counts[services.BucketPrinting])
	assert.Equal(suite.T(), float64(0), counts[services.BucketCompleted])
	assert.Equal(suite.T(), float64(3), counts[services.BucketAll])
	suite.Len(counts, 8)
}

// TestGetOrder_NotFound covers the 404 path
func (suite *ManufacturingIntegrationTestSuite) TestGetOrder_NotFound() {
	w := suite.request(http.MethodGet, "/api/v1/manufacturing-orders/99999", nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	errorData := suite.parse(w)["error"].(map[string]interface{})
	assert.Equal(suite.T(), "ORDER_NOT_FOUND", errorData["code"])
}

func TestManufacturingIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ManufacturingIntegrationTestSuite))
}
