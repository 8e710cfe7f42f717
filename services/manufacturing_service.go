package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/novodent/novodent-manufacturing-api/models"
)

// fetchOrder loads an order by ID. Returns gorm.ErrRecordNotFound (wrapped)
// when the ID does not exist.
func fetchOrder(db *gorm.DB, id uint) (*models.ManufacturingOrder, error) {
	var order models.ManufacturingOrder
	if err := db.First(&order, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load manufacturing order %d: %w", id, err)
	}
	return &order, nil
}

// StartPrinting moves a pending-printing order onto the printer.
func StartPrinting(db *gorm.DB, id uint) (*models.ManufacturingOrder, error) {
	order, err := fetchOrder(db, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(db, order, TransitionRequest{Trigger: TriggerStartPrinting}); err != nil {
		return nil, err
	}
	return order, nil
}

// StartMilling moves a pending-milling order to the mill and records the
// immutable MillingForm snapshot of the instructions it was sent with. Both
// writes run in one transaction, and the form's primary key is derived from
// the order ID, so a retried request after a partial failure cannot leave a
// milling order without a form or create a duplicate.
func StartMilling(db *gorm.DB, id uint, details MillingDetails) (*models.ManufacturingOrder, error) {
	order, err := fetchOrder(db, id)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ApplyTransition(tx, order, TransitionRequest{Trigger: TriggerStartMilling, Milling: &details}); err != nil {
			return err
		}

		form := models.MillingForm{
			ID:                   models.MillingFormID(order.ID),
			ManufacturingItemID:  order.ID,
			PatientName:          order.PatientName,
			ArchType:             order.ArchType,
			UpperApplianceType:   order.UpperApplianceType,
			LowerApplianceType:   order.LowerApplianceType,
			UpperApplianceNumber: order.UpperApplianceNumber,
			LowerApplianceNumber: order.LowerApplianceNumber,
			Shade:                order.Shade,
			Material:             order.Material,
			ScrewType:            order.ScrewType,
			MillingLocation:      details.MillingLocation,
			GingivaColor:         details.GingivaColor,
			StainedAndGlazed:     details.StainedAndGlazed,
			Cementation:          details.Cementation,
			AdditionalNotes:      details.AdditionalNotes,
		}
		if err := tx.Create(&form).Error; err != nil {
			return fmt.Errorf("failed to create milling form for order %d: %w", order.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CompletePrinting records who finished the print run and when, and closes
// the order. Completion data lives directly on the order; no secondary
// record exists on the printing path.
func CompletePrinting(db *gorm.DB, id uint, completion CompletionDetails) (*models.ManufacturingOrder, error) {
	order, err := fetchOrder(db, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(db, order, TransitionRequest{Trigger: TriggerCompletePrinting, Completion: &completion}); err != nil {
		return nil, err
	}
	return order, nil
}

// ShipFromLab records the carrier tracking data for a milled appliance and
// moves the order into transit. A blank tracking number is rejected here,
// before the transition engine runs, so the caller gets a field-level error.
func ShipFromLab(db *gorm.DB, id uint, details ShippingDetails) (*models.ManufacturingOrder, error) {
	if strings.TrimSpace(details.TrackingNumber) == "" {
		return nil, missingField("trackingNumber")
	}
	order, err := fetchOrder(db, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(db, order, TransitionRequest{Trigger: TriggerShip, Shipping: &details}); err != nil {
		return nil, err
	}
	return order, nil
}

// StartInspection begins QC on an appliance that arrived back from the mill.
func StartInspection(db *gorm.DB, id uint) (*models.ManufacturingOrder, error) {
	order, err := fetchOrder(db, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(db, order, TransitionRequest{Trigger: TriggerStartInspection}); err != nil {
		return nil, err
	}
	return order, nil
}

// CompleteInspection records the four checklist results, derives the
// approved/rejected outcome, and closes the order.
func CompleteInspection(db *gorm.DB, id uint, checklist InspectionChecklist, completion CompletionDetails) (*models.ManufacturingOrder, error) {
	order, err := fetchOrder(db, id)
	if err != nil {
		return nil, err
	}
	req := TransitionRequest{
		Trigger:    TriggerCompleteInspection,
		Checklist:  &checklist,
		Completion: &completion,
	}
	if err := ApplyTransition(db, order, req); err != nil {
		return nil, err
	}
	return order, nil
}

// GetMillingForm returns the immutable milling snapshot for an order.
func GetMillingForm(db *gorm.DB, orderID uint) (*models.MillingForm, error) {
	var form models.MillingForm
	if err := db.Where("manufacturing_item_id = ?", orderID).First(&form).Error; err != nil {
		return nil, fmt.Errorf("failed to load milling form for order %d: %w", orderID, err)
	}
	return &form, nil
}
