// Package sanitizer normalizes user and open-data input before validation and storage.
//
// All functions are idempotent and never return errors: input that cannot be
// normalized comes back empty (phones) or trimmed as-is (text), and the
// validators decide whether it is acceptable.
package sanitizer
