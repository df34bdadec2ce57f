package api

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Field limits for registration, counted in characters
const (
	minNameLength     = 2
	maxNameLength     = 200
	maxJobTitleLength = 200
	minPasswordLength = 12
	maxPasswordLength = 128
)

const passwordPolicyMessage = "Password must include upper, lower, digit, and symbol"

// validationErrors collects one message per offending field
type validationErrors map[string]string

func (v validationErrors) add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

// registration is a validated and normalized UserCreate
type registration struct {
	Name        string
	Email       string
	DateOfBirth time.Time
	JobTitle    *string
	Password    string
}

func validateUserCreate(req *UserCreate) (*registration, validationErrors) {
	errs := validationErrors{}
	out := &registration{Password: req.Password}

	out.Name = strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(out.Name); n < minNameLength || n > maxNameLength {
		errs.add("name", "Name must be between 2 and 200 characters")
	}

	if email, ok := normalizeEmail(req.Email); ok {
		out.Email = email
	} else {
		errs.add("email", "Value is not a valid email address")
	}

	if req.DateOfBirth == "" {
		errs.add("date_of_birth", "Field required")
	} else if dob, err := time.Parse(dateLayout, req.DateOfBirth); err != nil {
		errs.add("date_of_birth", "Date must be in YYYY-MM-DD format")
	} else {
		out.DateOfBirth = dob
	}

	if req.JobTitle != nil {
		if utf8.RuneCountInString(*req.JobTitle) > maxJobTitleLength {
			errs.add("job_title", "Job title must be at most 200 characters")
		} else if title := strings.TrimSpace(*req.JobTitle); title != "" {
			out.JobTitle = &title
		}
	}

	if msg := checkPasswordPolicy(req.Password); msg != "" {
		errs.add("password", msg)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func validateLoginRequest(req *LoginRequest) (email string, errs validationErrors) {
	errs = validationErrors{}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		errs.add("email", "Value is not a valid email address")
	}
	if req.Password == nil {
		errs.add("password", "Field required")
	}

	if len(errs) > 0 {
		return "", errs
	}
	return email, nil
}

// checkPasswordPolicy returns a message describing the first rule the
// password breaks, or "" when it is acceptable. Character classes are
// Unicode-aware: any numeric rune (including superscripts) counts as a digit
// and a symbol is anything that is neither a letter nor a number.
func checkPasswordPolicy(password string) string {
	if n := utf8.RuneCountInString(password); n < minPasswordLength || n > maxPasswordLength {
		return "Password must be between 12 and 128 characters"
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsNumber(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return passwordPolicyMessage
	}
	return ""
}

// normalizeEmail accepts a bare addr-spec with a dotted domain and returns
// it lower-cased
func normalizeEmail(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || addr.Address != raw {
		return "", false
	}

	at := strings.LastIndexByte(raw, '@')
	domain := raw[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", false
	}
	return strings.ToLower(raw), true
}
