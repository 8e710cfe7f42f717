package services

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/novodent/novodent-manufacturing-api/models"
)

// Trigger identifies one of the six user actions that move an order through
// its lifecycle.
type Trigger string

const (
	TriggerStartPrinting      Trigger = "start-printing"
	TriggerStartMilling       Trigger = "start-milling"
	TriggerCompletePrinting   Trigger = "complete-printing"
	TriggerShip               Trigger = "ship"
	TriggerStartInspection    Trigger = "start-inspection"
	TriggerCompleteInspection Trigger = "complete-inspection"
)

// MillingDetails carries the milling instructions captured when an order is
// sent to the mill.
type MillingDetails struct {
	MillingLocation  string  `json:"millingLocation"`
	GingivaColor     *string `json:"gingivaColor,omitempty"`
	StainedAndGlazed *string `json:"stainedAndGlazed,omitempty"` // yes, no
	Cementation      *string `json:"cementation,omitempty"`      // yes, no
	AdditionalNotes  *string `json:"additionalNotes,omitempty"`
}

// ShippingDetails carries the carrier tracking data recorded when the milling
// lab ships an appliance back.
type ShippingDetails struct {
	TrackingNumber string  `json:"trackingNumber"`
	TrackingLink   *string `json:"trackingLink,omitempty"`
}

// CompletionDetails attributes a completion step to a user at a point in time.
// Date is "2006-01-02" and Time is "15:04".
type CompletionDetails struct {
	Date            string `json:"completionDate"`
	Time            string `json:"completionTime"`
	CompletedBy     string `json:"completedBy"`
	CompletedByName string `json:"completedByName"`
}

// At parses the date and time fields into a single timestamp.
func (c CompletionDetails) At() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", c.Date+" "+c.Time)
}

// InspectionChecklist holds the four pass/fail criteria evaluated during QC.
type InspectionChecklist struct {
	PrintQuality       string `json:"printQuality"`
	PhysicalDefects    string `json:"physicalDefects"`
	ScrewAccessChannel string `json:"screwAccessChannel"`
	MuaPlatform        string `json:"muaPlatform"`
}

// DeriveInspectionStatus returns approved only when every checklist entry
// passed; a single failure rejects the appliance.
func DeriveInspectionStatus(cl InspectionChecklist) string {
	results := []string{cl.PrintQuality, cl.PhysicalDefects, cl.ScrewAccessChannel, cl.MuaPlatform}
	for _, r := range results {
		if r != models.ChecklistPass {
			return models.InspectionRejected
		}
	}
	return models.InspectionApproved
}

// TransitionRequest bundles a trigger with the payload sections the various
// transitions consume. Sections not relevant to the trigger are ignored.
type TransitionRequest struct {
	Trigger    Trigger
	Milling    *MillingDetails
	Shipping   *ShippingDetails
	Completion *CompletionDetails
	Checklist  *InspectionChecklist
}

// transitionRule describes one row of the lifecycle table: where the trigger
// may fire from, where it lands, how its payload is validated, and how the
// order is patched.
type transitionRule struct {
	Source   string
	Target   string
	Validate func(order *models.ManufacturingOrder, req TransitionRequest) error
	Apply    func(order *models.ManufacturingOrder, req TransitionRequest) error
}

func noValidation(*models.ManufacturingOrder, TransitionRequest) error { return nil }
func noPatch(*models.ManufacturingOrder, TransitionRequest) error     { return nil }

// transitionTable is the explicit lifecycle state machine. Every trigger the
// API exposes must have exactly one row here; init below enforces that.
var transitionTable = map[Trigger]transitionRule{
	TriggerStartPrinting: {
		Source:   models.StatusPendingPrinting,
		Target:   models.StatusPrinting,
		Validate: noValidation,
		Apply:    noPatch,
	},
	TriggerStartMilling: {
		Source:   models.StatusPendingMilling,
		Target:   models.StatusMilling,
		Validate: validateMilling,
		Apply:    applyMilling,
	},
	TriggerCompletePrinting: {
		Source:   models.StatusPrinting,
		Target:   models.StatusCompleted,
		Validate: validateCompletion,
		Apply:    applyPrintingCompletion,
	},
	TriggerShip: {
		Source:   models.StatusMilling,
		Target:   models.StatusInTransit,
		Validate: validateShipping,
		Apply:    applyShipping,
	},
	TriggerStartInspection: {
		Source:   models.StatusInTransit,
		Target:   models.StatusInspection,
		Validate: noValidation,
		Apply:    noPatch,
	},
	TriggerCompleteInspection: {
		Source:   models.StatusInspection,
		Target:   models.StatusCompleted,
		Validate: validateInspectionCompletion,
		Apply:    applyInspectionCompletion,
	},
}

// allTriggers is the set of triggers the service layer dispatches on.
var allTriggers = []Trigger{
	TriggerStartPrinting,
	TriggerStartMilling,
	TriggerCompletePrinting,
	TriggerShip,
	TriggerStartInspection,
	TriggerCompleteInspection,
}

func init() {
	// An unmapped trigger is a programming error; fail at startup rather than
	// silently no-op at request time.
	for _, trigger := range allTriggers {
		if _, ok := transitionTable[trigger]; !ok {
			panic(fmt.Sprintf("transition table is missing a rule for trigger %q", trigger))
		}
	}
}

func validateMilling(order *models.ManufacturingOrder, req TransitionRequest) error {
	if req.Milling == nil || req.Milling.MillingLocation == "" {
		return missingField("millingLocation")
	}
	if order.NeedsCementation() && (req.Milling.Cementation == nil || *req.Milling.Cementation == "") {
		return missingField("cementation")
	}
	return nil
}

func applyMilling(order *models.ManufacturingOrder, req TransitionRequest) error {
	m := req.Milling
	order.MillingLocation = &m.MillingLocation
	order.GingivaColor = m.GingivaColor
	order.StainedAndGlazed = m.StainedAndGlazed
	order.Cementation = m.Cementation
	order.AdditionalNotes = m.AdditionalNotes
	return nil
}

func validateCompletion(_ *models.ManufacturingOrder, req TransitionRequest) error {
	c := req.Completion
	if c == nil {
		return missingField("completion")
	}
	switch {
	case c.Date == "":
		return missingField("completionDate")
	case c.Time == "":
		return missingField("completionTime")
	case c.CompletedBy == "":
		return missingField("completedBy")
	case c.CompletedByName == "":
		return missingField("completedByName")
	}
	if _, err := c.At(); err != nil {
		return &ValidationError{Field: "completionDate", Message: "must be YYYY-MM-DD with HH:MM time"}
	}
	return nil
}

func applyPrintingCompletion(order *models.ManufacturingOrder, req TransitionRequest) error {
	at, err := req.Completion.At()
	if err != nil {
		return &ValidationError{Field: "completionDate", Message: "must be YYYY-MM-DD with HH:MM time"}
	}
	order.PrintingCompletedAt = &at
	order.PrintingCompletedBy = &req.Completion.CompletedBy
	order.PrintingCompletedByName = &req.Completion.CompletedByName
	return nil
}

func validateShipping(_ *models.ManufacturingOrder, req TransitionRequest) error {
	if req.Shipping == nil || strings.TrimSpace(req.Shipping.TrackingNumber) == "" {
		return missingField("trackingNumber")
	}
	return nil
}

func applyShipping(order *models.ManufacturingOrder, req TransitionRequest) error {
	order.TrackingNumber = &req.Shipping.TrackingNumber
	order.TrackingLink = req.Shipping.TrackingLink
	return nil
}

func validateInspectionCompletion(order *models.ManufacturingOrder, req TransitionRequest) error {
	cl := req.Checklist
	if cl == nil {
		return missingField("checklist")
	}
	checks := []struct {
		field string
		value string
	}{
		{"printQuality", cl.PrintQuality},
		{"physicalDefects", cl.PhysicalDefects},
		{"screwAccessChannel", cl.ScrewAccessChannel},
		{"muaPlatform", cl.MuaPlatform},
	}
	for _, check := range checks {
		if check.value == "" {
			return missingField(check.field)
		}
		if check.value != models.ChecklistPass && check.value != models.ChecklistFail {
			return &ValidationError{Field: check.field, Message: "must be pass or fail"}
		}
	}
	return validateCompletion(order, req)
}

func applyInspectionCompletion(order *models.ManufacturingOrder, req TransitionRequest) error {
	at, err := req.Completion.At()
	if err != nil {
		return &ValidationError{Field: "completionDate", Message: "must be YYYY-MM-DD with HH:MM time"}
	}
	cl := req.Checklist
	status := DeriveInspectionStatus(*cl)
	order.PrintQuality = &cl.PrintQuality
	order.PhysicalDefects = &cl.PhysicalDefects
	order.ScrewAccessChannel = &cl.ScrewAccessChannel
	order.MuaPlatform = &cl.MuaPlatform
	order.InspectionStatus = &status
	order.InspectionCompletedAt = &at
	order.InspectionCompletedBy = &req.Completion.CompletedBy
	order.InspectionCompletedByName = &req.Completion.CompletedByName
	return nil
}

// ApplyTransition validates the request against the transition table and, on
// success, writes the full patch (new status plus all supplied fields) to the
// store in a single update. The order struct is mutated to reflect the
// persisted state. No partial patch is ever written: validation failures leave
// both the struct and the store untouched.
func ApplyTransition(db *gorm.DB, order *models.ManufacturingOrder, req TransitionRequest) error {
	rule, ok := transitionTable[req.Trigger]
	if !ok {
		return fmt.Errorf("unknown transition trigger %q", req.Trigger)
	}
	if order.Status != rule.Source {
		return &InvalidTransitionError{Status: order.Status, Trigger: req.Trigger}
	}
	if err := rule.Validate(order, req); err != nil {
		return err
	}

	// Patch a copy first so a failed store write leaves the caller's struct
	// showing the last persisted state.
	patched := *order
	if err := rule.Apply(&patched, req); err != nil {
		return err
	}
	patched.Status = rule.Target

	if err := db.Save(&patched).Error; err != nil {
		return fmt.Errorf("failed to persist transition %q: %w", req.Trigger, err)
	}
	*order = patched
	return nil
}
