// Package servo drives the quiz buzzer: a hobby servo behind a microcontroller
// that listens on a serial line.
//
// # Wire format
//
// Each command is one ASCII line, 'S' followed by the target angle in decimal
// degrees and a newline, e.g. "S90\n". The firmware clamps to [0, 180] and may
// echo a status line, which is never read. See [Encode].
//
// # Session
//
// A [Session] owns the serial transport for its whole life:
//
//	Disconnected --Connect ok--> Connected --Disconnect--> Disconnected
//	Disconnected --Connect err-> Faulted   --Connect-----> ...
//	Connected    --write err---> Faulted
//	any          --Reset-------> Disconnected
//
// [Session.MoveTo] never blocks. Targets go through a rate limiter holding at
// most one pending position: a burst collapses into its latest value and
// writes are strictly serialized with a minimum gap (50ms by default).
//
// [Session.Disconnect] sends [HomePosition] as a courtesy before releasing the
// writer and closing the port. [Session.Reset] is the escape hatch for a wedged
// transport, and [Session.Close] is the teardown path meant for defer.
//
// # Hosts
//
// A [Host] selects and opens devices. [SerialHost] uses go.bug.st/serial and can
// filter USB devices by vendor/product ID or ask a [PortChooser].
package servo
