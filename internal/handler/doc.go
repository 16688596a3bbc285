// Package handler implements the read-only HTTP status API of a deployment.
//
// The API is served next to the metrics endpoint and never mutates the
// emulation. It reports domain lifecycle states, exported segment-routing
// documents and the live runtime topology.
//
// # Endpoints
//
//	GET /api/domains                    domain ids and states
//	GET /api/domains/{id}/document      document in ?format=netcfg|json|yaml
//	GET /api/topology                   nodes, links and connectivity
//
// Errors are returned as JSON with {error, details} and a status code that
// follows the failure: 404 for unknown domains, 409 for a document
// requested before the domain is stitched.
package handler
