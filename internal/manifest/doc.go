// Package manifest loads the YAML route description served by wayfinderd and
// matches URL paths against it.
package manifest
