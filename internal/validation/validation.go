package validation

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"phishguard/internal/constants"
	apperrors "phishguard/internal/errors"
	"phishguard/internal/models"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var phonePattern = regexp.MustCompile(constants.PhoneNumberRegex)

var (
	phoneRule   = ozzo.Match(phonePattern).Error("must be 10 to 15 digits with an optional leading +")
	notBlank    = ozzo.By(rejectBlank)
	messageRule = ozzo.RuneLength(1, constants.MaxMessageLength).Error(fmt.Sprintf("must be at most %d characters", constants.MaxMessageLength))
)

func rejectBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// ValidateIncomingSMS checks an inbound submission. Field failures are reported
// together under the "fields" context key.
func ValidateIncomingSMS(sms models.IncomingSMS) error {
	err := ozzo.ValidateStruct(&sms,
		ozzo.Field(&sms.Sender, ozzo.Required, phoneRule),
		ozzo.Field(&sms.Recipient, ozzo.Required, phoneRule),
		ozzo.Field(&sms.Message, notBlank, messageRule),
	)
	return toAppError(err)
}

// ValidatePhoneNumber validates phone number format and length
func ValidatePhoneNumber(phone string) error {
	if err := ozzo.Validate(phone, ozzo.Required, phoneRule); err != nil {
		return apperrors.NewValidationError("phone", fmt.Sprintf("phone number %s", err.Error()))
	}
	return nil
}

// ValidateMessageID accepts canonical UUIDs only
func ValidateMessageID(messageID string) error {
	if err := ozzo.Validate(messageID, ozzo.Required, is.UUID); err != nil {
		return apperrors.NewValidationError("id", fmt.Sprintf("message ID %s", err.Error()))
	}
	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength > maxSizeBytes {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}
	return nil
}

func toAppError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs ozzo.Errors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, "validation failed")
	}

	fields := make(map[string]string, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for name, fieldErr := range fieldErrs {
		fields[name] = fieldErr.Error()
		names = append(names, name)
	}
	sort.Strings(names)

	return apperrors.New(apperrors.ErrCodeValidationFailed, "invalid fields: "+strings.Join(names, ", ")).
		WithContext("fields", fields).
		WithUserMessage(fieldErrs.Error())
}

// FieldErrors extracts per-field messages from a validation error
func FieldErrors(err error) map[string]string {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Context == nil {
		return nil
	}
	fields, _ := appErr.Context["fields"].(map[string]string)
	return fields
}
