// Package notify provides authcore.Notifier implementations: an SMTP
// mailer, a structured-log notifier for development and a fan-out.
package notify
