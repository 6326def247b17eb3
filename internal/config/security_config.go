package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
)

// EndpointSecurityConfig maps "METHOD route-template" to its required
// security level.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Operational - Public
	"GET /healthz": SecurityPublic,
	"GET /metrics": SecurityPublic,

	// Event requests - Access Protected
	"POST /api/v1/requests":                       SecurityAccess,
	"GET /api/v1/requests":                        SecurityAccess,
	"GET /api/v1/requests/{id}":                   SecurityAccess,
	"DELETE /api/v1/requests/{id}":                SecurityAccess,
	"PUT /api/v1/requests/{id}/location":          SecurityAccess,
	"POST /api/v1/requests/{id}/claim":            SecurityAccess,
	"POST /api/v1/requests/{id}/release":          SecurityAccess,
	"POST /api/v1/requests/{id}/override":         SecurityAccess,
	"POST /api/v1/requests/{id}/actions/{action}": SecurityAccess,
	"GET /api/v1/requests/{id}/actions":           SecurityAccess,
	"GET /api/v1/requests/{id}/coordinators":      SecurityAccess,
	"GET /api/v1/claimable":                       SecurityAccess,

	// Notifications - Access Protected
	"GET /api/v1/notifications":            SecurityAccess,
	"POST /api/v1/notifications/{id}/read": SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
