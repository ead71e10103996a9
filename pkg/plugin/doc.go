// Package plugin is the domain plugin registry: a lookup table from domain id to
// the checklist, domain-specific skills and baseline clause text of one contract
// family. Unknown domains resolve to empty values so the engine can run in a
// generic, domain-less mode.
package plugin
