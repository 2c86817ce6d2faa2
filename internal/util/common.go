package util

import "github.com/sirupsen/logrus"

// ContinueOrFatal exits the process with status 1 when err is set.
func ContinueOrFatal(err error) {
	if err != nil {
		logrus.Fatal(err)
	}
}

// ContinueOrFatalf is ContinueOrFatal with an operator-facing message.
func ContinueOrFatalf(err error, format string, args ...any) {
	if err != nil {
		logrus.WithError(err).Fatalf(format, args...)
	}
}
