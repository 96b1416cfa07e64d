package logging

import "github.com/sirupsen/logrus"

// Severity of a security event.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
)

// UserAction logs the outcome of something a user did.
// Failed actions are logged as warnings.
func UserAction(logger logrus.FieldLogger, userID int64, action string, success bool, details string) {
	entry := logger.WithFields(logrus.Fields{
		"user_id": userID,
		"action":  action,
		"success": success,
	})
	if details != "" {
		entry = entry.WithField("details", details)
	}
	if success {
		entry.Info("User action")
		return
	}
	entry.Warn("User action failed")
}

// SecurityEvent logs abuse related events such as rate limit bans.
func SecurityEvent(logger logrus.FieldLogger, userID int64, event string, severity Severity) {
	entry := logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"security": event,
	})
	switch severity {
	case SeverityCritical, SeverityError:
		// logrus Fatal exits the process, so critical maps to Error
		entry.Error("Security event")
	default:
		entry.Warn("Security event")
	}
}
