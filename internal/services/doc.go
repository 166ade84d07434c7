// Package services defines the shared error taxonomy for pipeline components.
package services
