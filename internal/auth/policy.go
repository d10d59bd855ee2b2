package auth

import (
	"fmt"

	"github.com/librarium/usermanagement/config"
	"github.com/librarium/usermanagement/types"
)

// DeletePolicy decides whether actor may delete the account targetID.
type DeletePolicy interface {
	CanDelete(actor Identity, targetID string) bool
}

// DeletePolicyFunc adapts a function to DeletePolicy.
type DeletePolicyFunc func(actor Identity, targetID string) bool

func (f DeletePolicyFunc) CanDelete(actor Identity, targetID string) bool {
	return f(actor, targetID)
}

// SelfOnly lets an account delete only itself.
var SelfOnly = DeletePolicyFunc(func(actor Identity, targetID string) bool {
	return actor.AccountID != "" && actor.AccountID == targetID
})

// SelfOrAdmin lets an account delete itself and admins delete anyone.
var SelfOrAdmin = DeletePolicyFunc(func(actor Identity, targetID string) bool {
	return actor.Role == types.RoleAdmin || SelfOnly(actor, targetID)
})

// AdminOnly restricts deletion to admins.
var AdminOnly = DeletePolicyFunc(func(actor Identity, _ string) bool {
	return actor.Role == types.RoleAdmin
})

// NewDeletePolicy maps a configured policy name to its implementation.
func NewDeletePolicy(name string) (DeletePolicy, error) {
	switch name {
	case config.DeletePolicySelf:
		return SelfOnly, nil
	case config.DeletePolicySelfOrAdmin:
		return SelfOrAdmin, nil
	case config.DeletePolicyAdmin:
		return AdminOnly, nil
	default:
		return nil, fmt.Errorf("unknown delete policy %q", name)
	}
}
