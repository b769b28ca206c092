package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinNameLength        = 2
	MaxNameLength        = 100
	MinCompanyLength     = 1
	MaxCompanyLength     = 200
	MinRoleLength        = 2
	MaxRoleLength        = 200
	MinDescriptionLength = 10
	MaxDescriptionLength = 5000
	MaxSkillLength       = 50
	MaxSkillsCount       = 50
	MinReward            = 0.0
	MaxReward            = 1000000.0
	MinMessageLength     = 1
	MaxMessageLength     = 5000
	MinPasswordLength    = 8
)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	return nil
}

// ValidateSkills проверяет список навыков.
func ValidateSkills(skills []string) error {
	if len(skills) > MaxSkillsCount {
		return fmt.Errorf("навыков не может быть больше %d", MaxSkillsCount)
	}
	for _, skill := range skills {
		if strings.TrimSpace(skill) == "" {
			return fmt.Errorf("навык не может быть пустым")
		}
		if err := ValidateLength("навык", skill, 1, MaxSkillLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidateReward проверяет размер вознаграждения.
func ValidateReward(reward float64) error {
	if reward < MinReward {
		return fmt.Errorf("вознаграждение не может быть отрицательным")
	}
	if reward > MaxReward {
		return fmt.Errorf("вознаграждение не может превышать %.0f", MaxReward)
	}
	return nil
}
