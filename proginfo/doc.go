// Package proginfo manages the two small pieces of state the boot chain
// shares with the application: the persistent program-info record stashed
// in the reserved hole of the application's exception vector table, and the
// volatile boot command passed through reset-surviving scratch words.
//
// The record answers "is there a valid application, and how much flash may
// it use" with a single read at a fixed address. Because it lives inside
// the application's first pages, it is erased the moment an update erases
// the old application and only reappears when the final commit reprograms
// its page, so an interrupted update always reads as "no application".
package proginfo
