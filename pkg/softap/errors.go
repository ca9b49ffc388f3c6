package softap

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every error detected before a command is sent.
var ErrValidation = errors.New("validation failed")

// Validation errors.
var (
	ErrMissingSSID      = fmt.Errorf("%w: configuration contains no SSID", ErrValidation)
	ErrMissingClaimCode = fmt.Errorf("%w: claim code is required", ErrValidation)
	ErrUnknownSecurity  = fmt.Errorf("%w: unknown security type", ErrValidation)
	ErrMissingEAP       = fmt.Errorf("%w: enterprise security requires an EAP type", ErrValidation)
	ErrUnknownEAP       = fmt.Errorf("%w: unknown EAP type", ErrValidation)
	ErrPEAPCredentials  = fmt.Errorf("%w: PEAP requires inner identity and password", ErrValidation)
	ErrTLSCredentials   = fmt.Errorf("%w: EAP-TLS requires client certificate and private key", ErrValidation)
	ErrInvalidChannel   = fmt.Errorf("%w: invalid channel", ErrValidation)
	ErrMissingKey       = fmt.Errorf("%w: setting key is required", ErrValidation)
)
