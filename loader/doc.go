// Package loader implements the flash orchestrator of the SD-card boot
// chain: it turns an opened UF2 file into a programmed, committed
// application image, or into a clean failure the device can boot past.
//
// # Overview
//
// A load walks a fixed sequence:
//  1. Read the application bound from the target; refuse to touch flash
//     without it.
//  2. Validate blocks one at a time (package uf2), skipping benign ones.
//  3. On the first accepted block, erase exactly the range the image will
//     occupy, preserving the second-stage boot stub when sector 0 is
//     involved.
//  4. Program each accepted page, with the program-info slot masked to
//     all-ones so the device reads "no app" until commit.
//  5. At end of file, check every expected block arrived, then commit the
//     program-info record.
//
// # Basic Usage
//
//	dev := flash.NewMemDevice(flash.XIPBase, 2<<20)
//	dev.Protect(flashEnd)
//
//	l := loader.New(dev, loader.NewRP2040Target(flashEnd),
//	    loader.WithStatus(func(s string) { fmt.Println(s) }),
//	)
//
//	result, err := l.LoadFile(ctx, "FIRMWARE.UF2")
//	switch result {
//	case loader.Loaded:        // run it
//	case loader.WrongPlatform: // tell the user it is for another board
//	case loader.Bad:           // corrupt file; device still boots the UI
//	case loader.Unknown:       // I/O or flash failure; same guarantee
//	}
//
// # Safety
//
// There is no partial-success path and no retry: any rejection or driver
// error aborts the load. Flash may then hold a half-written image, but the
// program-info slot is guaranteed to read as "no app", so the next reset
// brings up the loader UI rather than jumping into garbage. The loader's
// own region is protected twice over: the validator bounds every target
// address below the application limit, and the flash driver refuses
// operations that cross it.
//
// The one residual window is power loss during the commit page-program
// itself, roughly one page-program time on this class of part. The record
// magic is then partially written, which still reads as "no record".
package loader
