package config

import (
	"github.com/skylane/skylane/pkg/remote/grpcport"
	"github.com/skylane/skylane/pkg/saga"
)

// ToDialOptions converts an endpoint config to grpcport connection options.
func (e *EndpointConfig) ToDialOptions() *grpcport.Options {
	opts := grpcport.DefaultOptions(e.Address)
	opts.TLSEnabled = e.TLSEnabled
	opts.ServerName = e.ServerName
	return opts
}

// ToRetryPolicy converts a retry config to a saga retry policy.
func (r *RetryConfig) ToRetryPolicy() saga.RetryPolicy {
	policy := saga.RetryPolicy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: r.InitialBackoff,
		MaxBackoff:     r.MaxBackoff,
		BackoffFactor:  r.BackoffFactor,
	}
	if policy.MaxAttempts <= 0 {
		return saga.DefaultRetryPolicy()
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 2.0
	}
	return policy
}
