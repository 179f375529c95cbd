// Package claims turns a user record into the claim set released to a client.
package claims

import "github.com/jrsteele09/go-oauth-frontend/credentials"

// Names of the standard OpenID Connect claims this server can release.
const (
	Subject             = "sub"
	Name                = "name"
	GivenName           = "given_name"
	FamilyName          = "family_name"
	MiddleName          = "middle_name"
	Nickname            = "nickname"
	PreferredUsername   = "preferred_username"
	Profile             = "profile"
	Picture             = "picture"
	Website             = "website"
	Email               = "email"
	EmailVerified       = "email_verified"
	Gender              = "gender"
	Birthdate           = "birthdate"
	Zoneinfo            = "zoneinfo"
	Locale              = "locale"
	PhoneNumber         = "phone_number"
	PhoneNumberVerified = "phone_number_verified"
	Address             = "address"
	UpdatedAt           = "updated_at"
)

type extractor func(u *credentials.User) (any, bool)

func str(get func(u *credentials.User) string) extractor {
	return func(u *credentials.User) (any, bool) {
		v := get(u)
		return v, v != ""
	}
}

func boolean(get func(u *credentials.User) *bool) extractor {
	return func(u *credentials.User) (any, bool) {
		v := get(u)
		if v == nil {
			return nil, false
		}
		return *v, true
	}
}

var extractors = map[string]extractor{
	Name:                str(func(u *credentials.User) string { return u.Name }),
	GivenName:           str(func(u *credentials.User) string { return u.GivenName }),
	FamilyName:          str(func(u *credentials.User) string { return u.FamilyName }),
	MiddleName:          str(func(u *credentials.User) string { return u.MiddleName }),
	Nickname:            str(func(u *credentials.User) string { return u.Nickname }),
	PreferredUsername:   str(func(u *credentials.User) string { return u.PreferredUsername }),
	Profile:             str(func(u *credentials.User) string { return u.Profile }),
	Picture:             str(func(u *credentials.User) string { return u.Picture }),
	Website:             str(func(u *credentials.User) string { return u.Website }),
	Email:               str(func(u *credentials.User) string { return u.Email }),
	EmailVerified:       boolean(func(u *credentials.User) *bool { return u.EmailVerified }),
	Gender:              str(func(u *credentials.User) string { return u.Gender }),
	Birthdate:           str(func(u *credentials.User) string { return u.Birthdate }),
	Zoneinfo:            str(func(u *credentials.User) string { return u.Zoneinfo }),
	Locale:              str(func(u *credentials.User) string { return u.Locale }),
	PhoneNumber:         str(func(u *credentials.User) string { return u.PhoneNumber }),
	PhoneNumberVerified: boolean(func(u *credentials.User) *bool { return u.PhoneNumberVerified }),
	Address: func(u *credentials.User) (any, bool) {
		if u.Address == nil {
			return nil, false
		}
		m, ok := addressClaim(u.Address)
		return m, ok
	},
	UpdatedAt: func(u *credentials.User) (any, bool) {
		return u.UpdatedAt, u.UpdatedAt != 0
	},
}

// Supported returns the claim names Project understands, sub included.
func Supported() []string {
	return []string{
		Subject, Name, GivenName, FamilyName, MiddleName, Nickname, PreferredUsername,
		Profile, Picture, Website, Email, EmailVerified, Gender, Birthdate,
		Zoneinfo, Locale, PhoneNumber, PhoneNumberVerified, Address, UpdatedAt,
	}
}

// Project builds the claims map for user. sub is always present; every other
// claim is included only when it is in permitted and the user has a value.
// Unknown claim names are ignored.
func Project(user *credentials.User, permitted []string) map[string]any {
	out := map[string]any{Subject: user.Subject}
	for _, name := range permitted {
		get, ok := extractors[name]
		if !ok {
			continue
		}
		if v, ok := get(user); ok {
			out[name] = v
		}
	}
	return out
}

func addressClaim(a *credentials.Address) (map[string]any, bool) {
	m := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("formatted", a.Formatted)
	set("street_address", a.StreetAddress)
	set("locality", a.Locality)
	set("region", a.Region)
	set("postal_code", a.PostalCode)
	set("country", a.Country)
	return m, len(m) > 0
}
