package service

import "errors"

// Errores de credenciales y tokens: el mensaje nunca distingue la causa.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Errores de validacion de registro y 2FA.
var (
	ErrInvalidVerificationCode = errors.New("invalid or expired verification code")
	ErrNoPendingRegistration   = errors.New("no pending registration for this email")
	ErrResendTooSoon           = errors.New("please wait at least one minute before requesting a new code")
	ErrTOTPNotInitialized      = errors.New("totp setup not initialized")
	ErrInvalidTOTPCode         = errors.New("invalid totp code")
	ErrTOTPAlreadyEnabled      = errors.New("totp already enabled")
	ErrInvalidEmail            = errors.New("invalid email")
	ErrWeakPassword            = errors.New("password must be at least 8 characters and contain an uppercase letter, a digit and a special character")
	ErrPasswordTooLong         = errors.New("password must be at most 72 bytes")
	ErrInvalidUsername         = errors.New("username must be at least 3 characters of letters, digits or underscore")
	ErrInvalidResetToken       = errors.New("invalid or expired reset token")
	ErrEmailTaken              = errors.New("email already registered")
	ErrEmailSendFailure        = errors.New("email send failed")
	ErrRateLimited             = errors.New("rate limited")
	ErrUserNotFound            = errors.New("user not found")
)

// Errores de candidaturas, documentos y recordatorios.
var (
	ErrJobTrackNotFound = errors.New("job track not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidJobTrack  = errors.New("invalid job track")
	ErrInvalidDocument  = errors.New("only pdf files up to 5MB are accepted")
	ErrDocumentNotFound = errors.New("document not found")
	ErrReminderNotFound = errors.New("reminder not found")
	ErrInvalidReminder  = errors.New("invalid reminder")
	ErrReminderExists   = errors.New("job track already has a reminder")
)
