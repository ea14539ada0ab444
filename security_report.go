package authcore

import "time"

// SecurityReport is a read-only snapshot of the engine's security posture.
// authd logs it once at startup.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	AccessTTL        time.Duration
	Argon2           PasswordConfigReport
	BcryptAccepted   bool

	CodeLength         int
	CodeExpiry         time.Duration
	CodeMaxAttempts    int
	CodeResendCooldown time.Duration
	IPThrottleActive   bool

	LockoutThreshold int
	LockoutDuration  time.Duration

	DeliveryRequired bool
	AuditActive      bool
}

// PasswordConfigReport is the effective hashing configuration.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport summarizes the effective security posture.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Production,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		BcryptAccepted: e.config.Password.AcceptBcrypt,

		CodeLength:         e.config.OTP.Length,
		CodeExpiry:         e.config.OTP.Expiry,
		CodeMaxAttempts:    e.config.OTP.MaxAttempts,
		CodeResendCooldown: e.config.OTP.ResendCooldown,
		// the limiter exists without Redis but does nothing
		IPThrottleActive: e.throttle.Enabled(),

		LockoutThreshold: e.config.Lockout.Threshold,
		LockoutDuration:  e.config.Lockout.Duration,

		DeliveryRequired: e.config.Notify.RequireDelivery,
		AuditActive:      e.config.Audit.Enabled && e.audit != nil,
	}
}
