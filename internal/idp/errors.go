// ABOUTME: Identity-provider error taxonomy and API error code mapping
// ABOUTME: Translates provider exception codes into package sentinel errors

package idp

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrUsernameExists indicates a sign-up with a taken username.
	ErrUsernameExists = errors.New("idp: username already exists")

	// ErrInvalidPassword indicates a password that fails the pool policy.
	ErrInvalidPassword = errors.New("idp: password does not meet policy requirements")

	// ErrInvalidParameter indicates a request the provider rejected as malformed.
	ErrInvalidParameter = errors.New("idp: invalid parameter")

	// ErrCodeMismatch indicates a wrong or expired confirmation code.
	ErrCodeMismatch = errors.New("idp: confirmation code mismatch")

	// ErrNotAuthorized indicates wrong credentials or a revoked token.
	ErrNotAuthorized = errors.New("idp: not authorized")

	// ErrThrottled indicates provider-side rate limiting.
	ErrThrottled = errors.New("idp: too many requests")

	// ErrProvider covers every other provider-side failure.
	ErrProvider = errors.New("idp: provider request failed")
)

// mapAPIError translates a provider API error into the package taxonomy.
// Unknown codes and transport failures collapse into ErrProvider.
func mapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}

	switch apiErr.ErrorCode() {
	case "UsernameExistsException":
		return fmt.Errorf("%w: %s", ErrUsernameExists, apiErr.ErrorMessage())
	case "InvalidPasswordException":
		return fmt.Errorf("%w: %s", ErrInvalidPassword, apiErr.ErrorMessage())
	case "InvalidParameterException":
		return fmt.Errorf("%w: %s", ErrInvalidParameter, apiErr.ErrorMessage())
	case "CodeMismatchException", "ExpiredCodeException":
		return fmt.Errorf("%w: %s", ErrCodeMismatch, apiErr.ErrorMessage())
	case "NotAuthorizedException", "UserNotFoundException", "UserNotConfirmedException":
		return fmt.Errorf("%w: %s", ErrNotAuthorized, apiErr.ErrorMessage())
	case "TooManyRequestsException", "LimitExceededException":
		return fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
	default:
		return fmt.Errorf("%w: %s: %s", ErrProvider, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
}
