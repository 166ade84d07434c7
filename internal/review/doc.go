// Package review holds the plain-data contract between the collaborator layer
// (projects, comments, tenants) and the digest pipeline: asset references,
// comment events, camera poses, and per-tenant digest configuration, plus
// file-backed sources for both.
package review
