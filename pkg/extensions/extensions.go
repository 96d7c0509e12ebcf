// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the pluggable security surface of the
// dashboard server.
//
// # Extension Categories
//
//   - auth.go: Authentication and authorization (AuthProvider, AuthzProvider)
//   - audit.go: Audit logging of mutations and admin actions (AuditLogger)
//
// The server wires a hosted auth provider and the role-based authorizer.
// Self-hosted single-user deployments use the no-op defaults.
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// All fields are optional; nil values are replaced with defaults by
// WithDefaults.
type ServiceOptions struct {
	// AuthProvider validates access tokens.
	// Default: NopAuthProvider (every request is the local admin)
	AuthProvider AuthProvider

	// AuthzProvider checks permissions.
	// Default: RoleAuthzProvider (reads for all, writes for admins)
	AuthzProvider AuthzProvider

	// AuditLogger records mutations and admin actions.
	// Default: NopAuditLogger
	AuditLogger AuditLogger
}

// DefaultOptions returns the single-user defaults.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuthzProvider: &RoleAuthzProvider{},
		AuditLogger:   &NopAuditLogger{},
	}
}

// WithDefaults returns a copy of opts with nil fields filled from
// DefaultOptions.
func (opts ServiceOptions) WithDefaults() ServiceOptions {
	def := DefaultOptions()
	if opts.AuthProvider == nil {
		opts.AuthProvider = def.AuthProvider
	}
	if opts.AuthzProvider == nil {
		opts.AuthzProvider = def.AuthzProvider
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = def.AuditLogger
	}
	return opts
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
