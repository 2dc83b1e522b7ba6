// Package flash defines the flash driver contract the loader programs
// against, plus the geometry constants of the on-package NOR part.
//
// The three primitive operations are sector erase, page program and
// readback. Programming NOR can only clear bits; erase is the only way to
// set them back, a sector at a time. Everything above this package is built
// on those two facts.
//
// MemDevice is a faithful in-memory rendition of those semantics for tests
// and host-side tooling, and Window provides the once-at-boot address
// translation used on parts whose application partition does not start at
// the base of flash.
package flash
