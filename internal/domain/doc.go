// Package domain contains the core types and collaborator interfaces of the
// submission processing pipeline: quotas and period counters, submissions and
// their classification results, persona rules, and close-the-loop (CTL)
// alerts. The package has no dependencies on storage or transport; concrete
// stores live under internal/store and internal/adapter.
package domain
