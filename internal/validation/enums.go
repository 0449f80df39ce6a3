package validation

// Enum values. These MUST match the CHECK constraints in the store schema.
var (
	ValidRFQStatuses      = []string{"draft", "pending", "approved", "rejected"}
	ValidCommodityTypes   = []string{"provided_data", "service", "transport"}
	ValidDecisionStatuses = []string{"in_progress", "approved", "rejected"}
	ValidOutcomes         = []string{"approved", "rejected"}
	ValidRoles            = []string{"super_admin", "admin", "manager", "user", "viewer", "pricing_team"}
)
