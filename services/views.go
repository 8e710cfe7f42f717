package services

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/novodent/novodent-manufacturing-api/models"
)

// Dashboard bucket names. new-script groups both pending states; incomplete
// is every non-terminal order; all is the whole collection.
const (
	BucketNewScript  = "new-script"
	BucketPrinting   = "printing"
	BucketMilling    = "milling"
	BucketInTransit  = "in-transit"
	BucketInspection = "inspection"
	BucketIncomplete = "incomplete"
	BucketCompleted  = "completed"
	BucketAll        = "all"
)

// Sort fields
const (
	SortByPatientName = "patientName"
	SortByCreatedAt   = "createdAt"
)

// FilterSpec describes which orders are visible. Each category holds a set of
// accepted values; an empty set imposes no constraint. Categories combine
// with AND, values within a category with OR. Search is matched
// case-insensitively against the patient name.
type FilterSpec struct {
	Status              []string
	ArchType            []string
	ApplianceType       []string
	Material            []string
	Shade               []string
	ManufacturingMethod []string
	MillingLocation     []string
	InspectionStatus    []string
	Search              string
}

// SortSpec picks the single field and direction the visible set is ordered by.
type SortSpec struct {
	Field      string // patientName or createdAt
	Descending bool
}

// CountByBucket partitions the collection into the eight dashboard buckets.
// Counts are recomputed from the collection on every call; nothing is cached.
func CountByBucket(orders []models.ManufacturingOrder) map[string]int {
	counts := map[string]int{
		BucketNewScript:  0,
		BucketPrinting:   0,
		BucketMilling:    0,
		BucketInTransit:  0,
		BucketInspection: 0,
		BucketIncomplete: 0,
		BucketCompleted:  0,
		BucketAll:        0,
	}
	for _, order := range orders {
		counts[BucketAll]++
		switch order.Status {
		case models.StatusPendingPrinting, models.StatusPendingMilling:
			counts[BucketNewScript]++
		case models.StatusPrinting:
			counts[BucketPrinting]++
		case models.StatusMilling:
			counts[BucketMilling]++
		case models.StatusInTransit:
			counts[BucketInTransit]++
		case models.StatusInspection:
			counts[BucketInspection]++
		}
		if order.Status == models.StatusCompleted {
			counts[BucketCompleted]++
		} else {
			counts[BucketIncomplete]++
		}
	}
	return counts
}

// contains reports set membership; an empty set means "no constraint".
func matchesCategory(accepted []string, value string) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, v := range accepted {
		if v == value {
			return true
		}
	}
	return false
}

// matchesNullable treats a nil field as an empty string for matching.
func matchesNullable(accepted []string, value *string) bool {
	if value == nil {
		return len(accepted) == 0
	}
	return matchesCategory(accepted, *value)
}

// matchesApplianceType accepts an order when either arch's appliance type is
// in the accepted set.
func matchesApplianceType(accepted []string, order *models.ManufacturingOrder) bool {
	if len(accepted) == 0 {
		return true
	}
	if order.UpperApplianceType != nil && matchesCategory(accepted, *order.UpperApplianceType) {
		return true
	}
	if order.LowerApplianceType != nil && matchesCategory(accepted, *order.LowerApplianceType) {
		return true
	}
	return false
}

// Matches reports whether an order passes every category constraint in the
// filter plus the free-text patient-name search.
func (f FilterSpec) Matches(order *models.ManufacturingOrder) bool {
	if !matchesCategory(f.Status, order.Status) {
		return false
	}
	if !matchesCategory(f.ArchType, order.ArchType) {
		return false
	}
	if !matchesApplianceType(f.ApplianceType, order) {
		return false
	}
	if !matchesNullable(f.Material, order.Material) {
		return false
	}
	if !matchesCategory(f.Shade, order.Shade) {
		return false
	}
	if !matchesCategory(f.ManufacturingMethod, order.ManufacturingMethod) {
		return false
	}
	if !matchesNullable(f.MillingLocation, order.MillingLocation) {
		return false
	}
	if !matchesNullable(f.InspectionStatus, order.InspectionStatus) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(order.PatientName), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// patientNameCollator gives locale-aware name ordering so e.g. accented names
// sort the way a receptionist expects rather than by code point.
var patientNameCollator = collate.New(language.English, collate.IgnoreCase)

// FilterAndSort returns the orders passing the filter, stably sorted by the
// sort spec. The input slice is never mutated. An unrecognized sort field
// falls back to creation time.
func FilterAndSort(orders []models.ManufacturingOrder, filter FilterSpec, sortSpec SortSpec) []models.ManufacturingOrder {
	result := make([]models.ManufacturingOrder, 0, len(orders))
	for i := range orders {
		if filter.Matches(&orders[i]) {
			result = append(result, orders[i])
		}
	}

	less := func(i, j int) bool {
		var cmp int
		switch sortSpec.Field {
		case SortByPatientName:
			cmp = patientNameCollator.CompareString(result[i].PatientName, result[j].PatientName)
		default:
			switch {
			case result[i].CreatedAt.Before(result[j].CreatedAt):
				cmp = -1
			case result[i].CreatedAt.After(result[j].CreatedAt):
				cmp = 1
			}
		}
		if sortSpec.Descending {
			return cmp > 0
		}
		return cmp < 0
	}
	sort.SliceStable(result, less)
	return result
}
