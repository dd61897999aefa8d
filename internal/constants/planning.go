package constants

// Order statuses as the management app writes them.
const (
	StatusPlanned       = "planned"
	StatusInPreparation = "in_preparation"
	StatusLaunched      = "launched"
	StatusInProgress    = "in_progress"
	StatusSuspended     = "suspended"
	StatusShipped       = "shipped"
	StatusPaid          = "paid"
)

// ActiveStatuses are the statuses the planner still schedules.
// Shipped and paid orders are done, the calendar never touches them.
var ActiveStatuses = map[string]bool{
	StatusPlanned:       true,
	StatusInPreparation: true,
	StatusLaunched:      true,
	StatusInProgress:    true,
	StatusSuspended:     true,
}

// Summary counter types, keyed per time slot.
const (
	SummaryAbsences       = "ABSENCES"
	SummarySupervisors    = "SUPERVISORS"
	SummaryWarehouseStaff = "WAREHOUSE_STAFF"
)

var SummaryTypes = map[string]bool{
	SummaryAbsences:       true,
	SummarySupervisors:    true,
	SummaryWarehouseStaff: true,
}

// SummaryDefaults is the value a counter resets to.
var SummaryDefaults = map[string]int{
	SummaryAbsences:       0,
	SummarySupervisors:    0,
	SummaryWarehouseStaff: 0,
}

// Planning cell provenance.
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
)
