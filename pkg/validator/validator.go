package validator

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	MaxNameLength   = 100
	MaxBioLength    = 1000
	MaxSkills       = 20
	MaxSkillLength  = 50
	MinPasswordSize = 8
)

func ValidateSignup(email, password, name, role string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)
	validatePassword(password, errs)
	validateName(name, errs)

	if role != "mentor" && role != "mentee" {
		errs.Add("role", "Role must be either mentor or mentee")
	}

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

// ValidateProfile checks already-sanitised profile text.
func ValidateProfile(name, bio string, skills []string) ValidationErrors {
	errs := make(ValidationErrors)

	validateName(name, errs)

	if utf8.RuneCountInString(bio) > MaxBioLength {
		errs.Add("bio", fmt.Sprintf("Bio must be at most %d characters", MaxBioLength))
	}

	if len(skills) > MaxSkills {
		errs.Add("skills", fmt.Sprintf("At most %d skills are allowed", MaxSkills))
	} else {
		for _, s := range skills {
			if utf8.RuneCountInString(s) > MaxSkillLength {
				errs.Add("skills", fmt.Sprintf("Each skill must be at most %d characters", MaxSkillLength))
				break
			}
		}
	}

	return errs
}

func ValidateMessage(message string, max int) ValidationErrors {
	errs := make(ValidationErrors)
	if utf8.RuneCountInString(message) > max {
		errs.Add("message", fmt.Sprintf("Message must be at most %d characters", max))
	}
	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validateName(name string, errs ValidationErrors) {
	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Name is required")
	} else if utf8.RuneCountInString(name) > MaxNameLength {
		errs.Add("name", "Name is too long")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < MinPasswordSize {
		errs.Add("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordSize))
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
