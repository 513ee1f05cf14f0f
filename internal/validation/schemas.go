// Package validation checks JSON request bodies before any identity call is made.
package validation

import (
	"maps"
	"slices"
)

// Schema names, one per API route.
const (
	SchemaRegister        = "register"
	SchemaLogin           = "login"
	SchemaFinalize        = "finalize"
	SchemaPasskeyRegister = "passkey_register"
	SchemaPasskeyVerify   = "passkey_verify"
	SchemaPasskeyStart    = "passkey_start"
	SchemaPasskeyLogin    = "passkey_login"
	SchemaChangePassword  = "change_password"
	SchemaRequestCode     = "request_code"
	SchemaVerifyCode      = "verify_code"
	SchemaExternalStart   = "external_start"
	SchemaExternalLogin   = "external_login"
)

// Required strings must contain a non-whitespace character; optional strings may be empty.
const (
	required = `{"type": "string", "pattern": "\\S"}`
	optional = `{"type": "string"}`
	object   = `{"type": "object"}`
)

func objectSchema(requiredFields []string, properties map[string]string) string {
	s := `{"type": "object", "required": [`
	for i, f := range requiredFields {
		if i > 0 {
			s += ", "
		}
		s += `"` + f + `"`
	}
	s += `], "properties": {`
	for i, name := range slices.Sorted(maps.Keys(properties)) {
		if i > 0 {
			s += ", "
		}
		s += `"` + name + `": ` + properties[name]
	}
	return s + `}}`
}

var routeSchemas = map[string]string{
	SchemaRegister: objectSchema(
		[]string{"username", "email", "givenName", "familyName", "password"},
		map[string]string{
			"orgId":         optional,
			"username":      required,
			"email":         required,
			"givenName":     required,
			"familyName":    required,
			"password":      required,
			"authRequestId": optional,
		}),
	SchemaLogin: objectSchema(
		[]string{"username", "password"},
		map[string]string{
			"username":      required,
			"password":      required,
			"authRequestId": optional,
		}),
	SchemaFinalize: objectSchema(
		[]string{"authRequestId"},
		map[string]string{
			"authRequestId": required,
		}),
	SchemaPasskeyRegister: objectSchema(
		[]string{"orgId", "userId"},
		map[string]string{
			"orgId":  required,
			"userId": required,
		}),
	SchemaPasskeyVerify: objectSchema(
		[]string{"orgId", "userId", "passkeyId", "credential"},
		map[string]string{
			"orgId":       required,
			"userId":      required,
			"passkeyId":   required,
			"credential":  object,
			"passkeyName": optional,
		}),
	SchemaPasskeyStart: objectSchema(
		[]string{"username"},
		map[string]string{
			"username": required,
		}),
	SchemaPasskeyLogin: objectSchema(
		[]string{"webAuthN"},
		map[string]string{
			"webAuthN":      object,
			"authRequestId": optional,
		}),
	SchemaChangePassword: objectSchema(
		[]string{"orgId", "userId", "currentPassword", "newPassword"},
		map[string]string{
			"orgId":           required,
			"userId":          required,
			"currentPassword": required,
			"newPassword":     required,
		}),
	SchemaRequestCode: objectSchema(
		[]string{"username"},
		map[string]string{
			"username": required,
		}),
	SchemaVerifyCode: objectSchema(
		[]string{"orgId", "userId", "verificationCode", "password"},
		map[string]string{
			"orgId":            required,
			"userId":           required,
			"verificationCode": required,
			"password":         required,
		}),
	SchemaExternalStart: objectSchema(
		[]string{"idpId"},
		map[string]string{
			"idpId":         required,
			"orgId":         optional,
			"authRequestId": optional,
		}),
	SchemaExternalLogin: objectSchema(
		[]string{"idpIntentId", "idpIntentToken", "userId"},
		map[string]string{
			"idpIntentId":    required,
			"idpIntentToken": required,
			"userId":         required,
		}),
}
