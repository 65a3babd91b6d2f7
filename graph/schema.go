package graph

// Node labels.
const (
	LabelClient     = "Client"
	LabelAdviser    = "Adviser"
	LabelDependant  = "Dependant"
	LabelProperty   = "Property"
	LabelPension    = "Pension"
	LabelInvestment = "Investment"
	LabelGoal       = "Goal"
)

// Relationship types.
const (
	RelAdvises    = "ADVISES"
	RelParentOf   = "PARENT_OF"
	RelOwns       = "OWNS"
	RelHasAccount = "HAS_ACCOUNT"
	RelHasGoal    = "HAS_GOAL"
)

// Labels lists every node label in write order.
var Labels = []string{
	LabelAdviser, LabelClient, LabelDependant,
	LabelProperty, LabelPension, LabelInvestment, LabelGoal,
}

// KeyProp returns the property that uniquely identifies nodes of label.
// Clients and advisers are keyed by name, everything else by synthetic id.
func KeyProp(label string) string {
	switch label {
	case LabelClient, LabelAdviser:
		return "name"
	default:
		return "id"
	}
}

// Constraint is a uniqueness constraint on a label's key property.
type Constraint struct {
	Name     string
	Label    string
	Property string
}

// Constraints are the uniqueness constraints the store should enforce.
var Constraints = []Constraint{
	{Name: "client_name", Label: LabelClient, Property: "name"},
	{Name: "dependant_id", Label: LabelDependant, Property: "id"},
	{Name: "property_id", Label: LabelProperty, Property: "id"},
	{Name: "pension_id", Label: LabelPension, Property: "id"},
	{Name: "investment_id", Label: LabelInvestment, Property: "id"},
	{Name: "adviser_name", Label: LabelAdviser, Property: "name"},
	{Name: "goal_id", Label: LabelGoal, Property: "id"},
}
