package fantoccini

import "github.com/sirupsen/logrus"

// defaultLogger is used whenever a Config is built without an explicit
// Logger. Trace gates the verbose per-command logging the actor emits
// (request method and path); it mirrors the teacher's package
// `Trace bool` toggle, just backed by logrus levels instead of a bare
// `log.Logger`.
var defaultLogger logrus.FieldLogger = logrus.StandardLogger()

// Trace enables Debug-level logging of the method and path of every
// WebDriver command request the session actor dispatches. Responses, the
// handshake, the session DELETE and raw requests are not logged. Off by
// default, same as the teacher's Trace.
var Trace = false

func logCommand(log logrus.FieldLogger, method, path string) {
	if !Trace {
		return
	}
	log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("fantoccini: dispatching command")
}
