// Package goquery implements HTML analysis on top of goquery: link
// extraction, content normalization for fingerprints, sanitization of
// captured pages, a default main-content extractor and client-side
// framework detection.
package goquery
