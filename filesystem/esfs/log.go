package esfs

import "github.com/sirupsen/logrus"

// defaultLogger is the package-level logger used when MountOptions.Logger is nil,
// mirroring the teacher's own logrus.StandardLogger() default.
var defaultLogger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the package default logger used by Mount calls that do not
// supply MountOptions.Logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	defaultLogger = l
}
