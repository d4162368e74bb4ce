// Package auth wraps a casbin ACL enforcer for commitlogd's gRPC
// interceptor: every RPC is authorized as (subject, object, action)
// against the configured model/policy pair.
package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New builds an Authorizer from an ACL model and policy file on disk.
func New(model, policy string) (*Authorizer, error) {
	enforcer, err := casbin.NewEnforcer(model, policy)
	if err != nil {
		return nil, fmt.Errorf("load casbin enforcer: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Authorize checks whether subject may perform action on object, per
// the loaded policy. A PermissionDenied status is returned on refusal.
func (a *Authorizer) Authorize(subject, object, action string) error {
	ok, err := a.enforcer.Enforce(subject, object, action)
	if err != nil {
		return status.New(codes.Internal, fmt.Sprintf("enforce acl: %v", err)).Err()
	}
	if !ok {
		msg := fmt.Sprintf("%s not permitted to %s to %s", subject, action, object)
		return status.New(codes.PermissionDenied, msg).Err()
	}
	return nil
}
