// Package siteclone clones a live website into a navigable local replica.
// It renders the root page, discovers the site's navigation structure
// (including hover-driven dropdown menus), and crawls that structure in
// priority order under page, depth and time budgets while skipping
// near-duplicate pages.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., rod/, goquery/, sqlite/).
package siteclone
