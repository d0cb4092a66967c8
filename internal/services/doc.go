// Package services defines the shared error taxonomy for external tool
// wrappers and the orchestration pipeline. Sentinel errors classify failures
// (usage, external tool, configuration, transient filesystem, interruption)
// so callers can branch on errors.Is without parsing message text.
package services
