package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novodent/novodent-manufacturing-api/config"
	"github.com/novodent/novodent-manufacturing-api/models"
)

func TestSendAndListMessages(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	technician := seedTestUser(t, db, "auth0|tech123", "Alex", models.RoleTechnician)
	order := seedTestOrder(t, db, models.StatusPendingMilling)

	router := setupTestRouter()
	auth := mockAuthMiddleware(technician.Auth0ID, technician.Role, "mock-token")
	router.POST("/manufacturing-orders/:id/messages", auth, SendMessage)
	router.GET("/manufacturing-orders/:id/messages", auth, ListMessages)

	idPath := "/manufacturing-orders/" + itoa(order.ID)

	t.Run("Send message on order", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, idPath+"/messages", map[string]interface{}{
			"text": "Shade confirmed with the dentist, proceed.",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		data := parseResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "Shade confirmed with the dentist, proceed.", data["text"])
		sender := data["sender"].(map[string]interface{})
		assert.Equal(t, "Alex", sender["name"])
	})

	t.Run("Empty message is rejected", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, idPath+"/messages", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List returns the thread in order", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, idPath+"/messages", map[string]interface{}{
			"text": "Mill is booked for tomorrow.",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = performJSON(router, http.MethodGet, idPath+"/messages", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		data := parseResponse(t, w)["data"].([]interface{})
		require.Len(t, data, 2)
		first := data[0].(map[string]interface{})
		assert.Equal(t, "Shade confirmed with the dentist, proceed.", first["text"])
	})

	t.Run("Unknown order returns 404", func(t *testing.T) {
		w := performJSON(router, http.MethodGet, "/manufacturing-orders/99999/messages", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
