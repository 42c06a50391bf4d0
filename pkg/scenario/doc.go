// Package scenario models the declarative test document a run consumes.
//
// A document (PRD) holds user stories; each story may declare browser tests,
// which are ordered actions followed by ordered assertions, and semantic tests,
// which are natural-language expectations judged by a verification provider.
//
// Actions and assertions form closed variant sets. Documents decode leniently so
// one malformed test cannot prevent the rest of a story from running; Validate
// rejects unknown variants and missing required fields before any browser side
// effect takes place.
package scenario
