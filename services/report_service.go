package services

import (
	"time"

	"github.com/novodent/novodent-manufacturing-api/models"
)

// PrintingReportSection summarizes the printing completion of an order.
// Applicable is false for orders that went down the milling path.
type PrintingReportSection struct {
	Applicable      bool       `json:"applicable"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CompletedBy     *string    `json:"completedBy,omitempty"`
	CompletedByName *string    `json:"completedByName,omitempty"`
}

// InspectionReportSection summarizes the QC inspection of an order.
// Applicable is false for orders that went down the printing path and never
// saw inspection.
type InspectionReportSection struct {
	Applicable         bool       `json:"applicable"`
	PrintQuality       *string    `json:"printQuality,omitempty"`
	PhysicalDefects    *string    `json:"physicalDefects,omitempty"`
	ScrewAccessChannel *string    `json:"screwAccessChannel,omitempty"`
	MuaPlatform        *string    `json:"muaPlatform,omitempty"`
	InspectionStatus   *string    `json:"inspectionStatus,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CompletedBy        *string    `json:"completedBy,omitempty"`
	CompletedByName    *string    `json:"completedByName,omitempty"`
}

// FabricationReport is the read-only join of an order's completion evidence,
// used for display and export.
type FabricationReport struct {
	OrderID             uint                    `json:"orderId"`
	PatientName         string                  `json:"patientName"`
	ManufacturingMethod string                  `json:"manufacturingMethod"`
	Status              string                  `json:"status"`
	Printing            PrintingReportSection   `json:"printing"`
	Inspection          InspectionReportSection `json:"inspection"`
}

// BuildFabricationReport assembles the report for a single order. Orders that
// completed via the printing path simply have no inspection data; that is
// rendered as not applicable, never as an error.
func BuildFabricationReport(order *models.ManufacturingOrder) FabricationReport {
	report := FabricationReport{
		OrderID:             order.ID,
		PatientName:         order.PatientName,
		ManufacturingMethod: order.ManufacturingMethod,
		Status:              order.Status,
	}

	if order.PrintingCompletedAt != nil {
		report.Printing = PrintingReportSection{
			Applicable:      true,
			CompletedAt:     order.PrintingCompletedAt,
			CompletedBy:     order.PrintingCompletedBy,
			CompletedByName: order.PrintingCompletedByName,
		}
	}

	if order.InspectionStatus != nil {
		report.Inspection = InspectionReportSection{
			Applicable:         true,
			PrintQuality:       order.PrintQuality,
			PhysicalDefects:    order.PhysicalDefects,
			ScrewAccessChannel: order.ScrewAccessChannel,
			MuaPlatform:        order.MuaPlatform,
			InspectionStatus:   order.InspectionStatus,
			CompletedAt:        order.InspectionCompletedAt,
			CompletedBy:        order.InspectionCompletedBy,
			CompletedByName:    order.InspectionCompletedByName,
		}
	}

	return report
}
